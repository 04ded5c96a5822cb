package ratelimit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
)

// ClientKey identifies the caller of a chat request: the customer email
// when one is given, the client IP otherwise.
func ClientKey(email, ip string) string {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return "email:" + email
	}
	return "ip:" + ip
}

// Gate is the limiter as the chat transports use it. A store failure lets
// the request through, and a denial is published as a rate_limited event.
type Gate struct {
	limiter   *Limiter
	publisher eventbus.Publisher
	logger    *zap.Logger
}

// NewGate returns a gate over limiter. A nil limiter admits every request.
func NewGate(limiter *Limiter, publisher eventbus.Publisher, logger *zap.Logger) *Gate {
	return &Gate{
		limiter:   limiter,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "rate-gate")),
	}
}

func (g *Gate) Allow(ctx context.Context, key string) Decision {
	if g == nil || g.limiter == nil {
		return Decision{Allowed: true}
	}

	d, err := g.limiter.Check(ctx, key)
	if err != nil {
		g.logger.Warn("Rate limit check failed, admitting request", zap.String("key", key), zap.Error(err))
		limit := g.limiter.Config().MaxRequests
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}
	if !d.Allowed && g.publisher != nil {
		g.publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeRateLimited, eventbus.RateLimitedPayload{
			Key:     key,
			ResetAt: d.ResetAt,
		}))
	}
	return d
}
