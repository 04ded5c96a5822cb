package entity

import (
	"time"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// ToolInvocationStatus is the outcome of a dispatched tool call.
type ToolInvocationStatus string

const (
	ToolSucceeded ToolInvocationStatus = "succeeded"
	ToolFailed    ToolInvocationStatus = "failed"
	ToolRejected  ToolInvocationStatus = "rejected" // input failed validation, handler never ran
)

// ToolInvocation is a model-issued tool call together with its result.
type ToolInvocation struct {
	ID       string                 `json:"id"`
	ToolName string                 `json:"tool_name"`
	Input    map[string]interface{} `json:"input"`
	Output   string                 `json:"output,omitempty"`
	Status   ToolInvocationStatus   `json:"status"`
}

// Message is immutable once created.
type Message struct {
	id             string
	conversationID string
	role           MessageRole
	content        string
	toolCalls      []ToolInvocation
	tokens         int
	createdAt      time.Time
}

// NewMessage creates a message stamped with the current time.
func NewMessage(id, conversationID string, role MessageRole, content string, toolCalls []ToolInvocation, tokens int) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		content:        content,
		toolCalls:      append([]ToolInvocation(nil), toolCalls...),
		tokens:         tokens,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructMessage rebuilds a message loaded from storage.
func ReconstructMessage(id, conversationID string, role MessageRole, content string, toolCalls []ToolInvocation, tokens int, createdAt time.Time) *Message {
	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		content:        content,
		toolCalls:      toolCalls,
		tokens:         tokens,
		createdAt:      createdAt,
	}
}

func (m *Message) ID() string             { return m.id }
func (m *Message) ConversationID() string { return m.conversationID }
func (m *Message) Role() MessageRole      { return m.role }
func (m *Message) Content() string        { return m.content }
func (m *Message) Tokens() int            { return m.tokens }
func (m *Message) CreatedAt() time.Time   { return m.createdAt }

// ToolCalls returns a copy of the invocations requested by this message.
func (m *Message) ToolCalls() []ToolInvocation {
	return append([]ToolInvocation(nil), m.toolCalls...)
}
