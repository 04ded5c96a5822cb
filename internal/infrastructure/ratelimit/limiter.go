package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Store keeps fixed-window counters. Hit must check and increment
// atomically per key.
type Store interface {
	Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (Decision, error)
	// Sweep deletes windows that expired before now and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	MaxRequests int           // default 10
	Window      time.Duration // default 60s
}

// Limiter applies a fixed-window limit per opaque client key.
type Limiter struct {
	store  Store
	config Config
	now    func() time.Time
	logger *zap.Logger
}

func NewLimiter(store Store, config Config, logger *zap.Logger) *Limiter {
	if config.MaxRequests <= 0 {
		config.MaxRequests = 10
	}
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	return &Limiter{
		store:  store,
		config: config,
		now:    time.Now,
		logger: logger.With(zap.String("component", "rate-limiter")),
	}
}

// Check counts one request for key. The first request of a window leaves
// MaxRequests-1 remaining; once the window is full requests are denied
// with zero remaining until it expires.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{}, fmt.Errorf("rate limit key is empty")
	}
	d, err := l.store.Hit(ctx, key, l.config.MaxRequests, l.config.Window, l.now())
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}
	d.Limit = l.config.MaxRequests
	if !d.Allowed {
		l.logger.Debug("Request rate limited", zap.String("key", key), zap.Time("reset_at", d.ResetAt))
	}
	return d, nil
}

func (l *Limiter) Config() Config {
	return l.config
}
