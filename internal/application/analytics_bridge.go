package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
)

// analyticsBridge writes bus events to the analytics metric log.
type analyticsBridge struct {
	repo   repository.AnalyticsRepository
	logger *zap.Logger
}

func newAnalyticsBridge(repo repository.AnalyticsRepository, logger *zap.Logger) *analyticsBridge {
	return &analyticsBridge{
		repo:   repo,
		logger: logger.With(zap.String("component", "analytics")),
	}
}

func (b *analyticsBridge) subscribe(bus eventbus.Bus) {
	for _, t := range []string{
		eventbus.EventTypeChatTurn,
		eventbus.EventTypeToolCall,
		eventbus.EventTypeTicketCreated,
		eventbus.EventTypeAgentTransfer,
		eventbus.EventTypeRateLimited,
	} {
		bus.Subscribe(t, b.handle)
	}
}

func (b *analyticsBridge) handle(ctx context.Context, event eventbus.Event) {
	record := analyticsRecordFor(event)
	if record == nil {
		return
	}
	if err := b.repo.Save(ctx, record); err != nil {
		b.logger.Warn("Failed to record analytics",
			zap.String("metric", record.Metric),
			zap.Error(err),
		)
	}
}

// analyticsRecordFor maps an event to its metric log entry. Durations
// are recorded in milliseconds.
func analyticsRecordFor(event eventbus.Event) *entity.AnalyticsRecord {
	rec := &entity.AnalyticsRecord{
		Metric:    event.Type(),
		Value:     1,
		CreatedAt: event.Timestamp().UTC(),
	}

	switch p := event.Payload().(type) {
	case eventbus.ChatTurnPayload:
		rec.Value = float64(p.Duration.Milliseconds())
		rec.Metadata = map[string]interface{}{
			"conversation_id":   p.ConversationID,
			"sentiment":         string(p.Sentiment),
			"finish_reason":     string(p.FinishReason),
			"steps":             p.Steps,
			"tool_round_trips":  p.ToolRoundTrips,
			"prompt_tokens":     p.PromptTokens,
			"completion_tokens": p.CompletionTokens,
			"model":             p.Model,
		}
	case eventbus.ToolCallPayload:
		rec.Value = float64(p.Duration.Milliseconds())
		rec.Metadata = map[string]interface{}{
			"conversation_id": p.ConversationID,
			"tool":            p.ToolName,
			"status":          string(p.Status),
			"cached":          p.Cached,
		}
	case eventbus.TicketCreatedPayload:
		rec.Metadata = map[string]interface{}{
			"ticket_id":       p.TicketID,
			"conversation_id": p.ConversationID,
			"priority":        string(p.Priority),
			"category":        string(p.Category),
		}
	case eventbus.AgentTransferPayload:
		rec.Metadata = map[string]interface{}{
			"conversation_id": p.ConversationID,
			"reason":          p.Reason,
			"urgency":         p.Urgency,
		}
	case eventbus.RateLimitedPayload:
		rec.Metadata = map[string]interface{}{
			"key":      p.Key,
			"reset_at": p.ResetAt.UTC().Format(time.RFC3339),
		}
	default:
		return nil
	}
	return rec
}
