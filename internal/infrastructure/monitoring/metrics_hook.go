package monitoring

import (
	"context"

	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
)

// MetricsHook feeds bus events into a Monitor. Tool calls and provider
// calls are observed directly and are not counted here.
//
// Usage:
//
//	monitor := monitoring.NewMonitor(logger)
//	monitoring.NewMetricsHook(monitor).Subscribe(bus)
type MetricsHook struct {
	monitor *Monitor
}

func NewMetricsHook(monitor *Monitor) *MetricsHook {
	return &MetricsHook{monitor: monitor}
}

// Subscribe registers the hook for the events it counts.
func (h *MetricsHook) Subscribe(bus eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeChatTurn, h.onChatTurn)
	bus.Subscribe(eventbus.EventTypeTicketCreated, func(context.Context, eventbus.Event) { h.monitor.IncTicketCreated() })
	bus.Subscribe(eventbus.EventTypeAgentTransfer, func(context.Context, eventbus.Event) { h.monitor.IncAgentTransfer() })
	bus.Subscribe(eventbus.EventTypeRateLimited, func(context.Context, eventbus.Event) { h.monitor.IncRateLimited() })
}

func (h *MetricsHook) onChatTurn(ctx context.Context, event eventbus.Event) {
	p, ok := event.Payload().(eventbus.ChatTurnPayload)
	if !ok {
		return
	}
	h.monitor.RecordTurn(p.FinishReason, p.PromptTokens, p.CompletionTokens, p.Duration)
}
