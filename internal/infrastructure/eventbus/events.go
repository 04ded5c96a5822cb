package eventbus

import (
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// Event types share their names with the analytics metrics they feed.
const (
	EventTypeChatTurn      = entity.MetricChatTurn
	EventTypeToolCall      = entity.MetricToolCall
	EventTypeTicketCreated = entity.MetricTicketCreated
	EventTypeAgentTransfer = entity.MetricAgentTransfer
	EventTypeRateLimited   = entity.MetricRateLimited
)

// ChatTurnPayload is published once per finished turn.
type ChatTurnPayload struct {
	ConversationID   string
	Sentiment        entity.Sentiment
	FinishReason     entity.FinishReason
	Steps            int
	ToolRoundTrips   int
	PromptTokens     int
	CompletionTokens int
	Model            string
	Duration         time.Duration
}

// ToolCallPayload is published for every dispatched tool call.
type ToolCallPayload struct {
	ConversationID string
	ToolName       string
	Status         entity.ToolInvocationStatus
	Cached         bool
	Duration       time.Duration
}

type TicketCreatedPayload struct {
	TicketID       string
	ConversationID string
	Priority       entity.TicketPriority
	Category       entity.TicketCategory
}

type AgentTransferPayload struct {
	ConversationID string
	Reason         string
	Urgency        string
}

// RateLimitedPayload carries the limiter key that was denied.
type RateLimitedPayload struct {
	Key     string
	ResetAt time.Time
}
