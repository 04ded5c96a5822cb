package entity

import "time"

// ChatEventType defines the kind of event streamed during a chat turn.
type ChatEventType string

const (
	EventTextDelta  ChatEventType = "text-delta"
	EventToolCall   ChatEventType = "tool-call"
	EventToolResult ChatEventType = "tool-result"
	EventFinish     ChatEventType = "finish"
	EventError      ChatEventType = "error"
)

// FinishReason is why a turn stopped generating.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool-calls"
	FinishError     FinishReason = "error"
)

// ChatEvent is one element of the ordered event sequence of a turn.
// Every turn ends with exactly one EventFinish, possibly preceded by EventError.
type ChatEvent struct {
	Type      ChatEventType  `json:"type"`
	Content   string         `json:"content,omitempty"`
	ToolCall  *ToolCallEvent `json:"tool_call,omitempty"`
	Finish    *FinishInfo    `json:"finish,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToolCallEvent describes a tool invocation. Output fields are only set on
// EventToolResult.
type ToolCallEvent struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Output    string                 `json:"output,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration,omitempty"`
}

// Usage is the token accounting reported by the model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.PromptTokens += u2.PromptTokens
	u.CompletionTokens += u2.CompletionTokens
	u.TotalTokens += u2.TotalTokens
}

// FinishInfo is the summary carried by EventFinish.
type FinishInfo struct {
	Reason         FinishReason `json:"reason"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Steps          int          `json:"steps"`
	ToolRoundTrips int          `json:"tool_round_trips"`
	Usage          Usage        `json:"usage"`
	ModelUsed      string       `json:"model_used,omitempty"`
}

// ToolCallInfo is a tool call parsed from a model response.
type ToolCallInfo struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	// MalformedArguments holds the raw argument text when it was not a JSON
	// object. Such a call is rejected without running the tool.
	MalformedArguments string `json:"malformed_arguments,omitempty"`
}
