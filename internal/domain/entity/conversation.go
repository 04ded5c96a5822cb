package entity

import (
	"time"
)

// ConversationStatus is the lifecycle state of a support conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationResolved  ConversationStatus = "resolved"
	ConversationEscalated ConversationStatus = "escalated"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationActive, ConversationResolved, ConversationEscalated:
		return true
	}
	return false
}

// Conversation owns an append-only log of messages. Sentiment is the
// snapshot from the latest user turn, not an aggregate.
type Conversation struct {
	id            string
	customerEmail string
	status        ConversationStatus
	sentiment     Sentiment
	createdAt     time.Time
	updatedAt     time.Time
}

// NewConversation creates an active conversation with neutral sentiment.
func NewConversation(id, customerEmail string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}
	now := time.Now()
	return &Conversation{
		id:            id,
		customerEmail: customerEmail,
		status:        ConversationActive,
		sentiment:     SentimentNeutral,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructConversation rebuilds a conversation loaded from storage.
func ReconstructConversation(
	id string,
	customerEmail string,
	status ConversationStatus,
	sentiment Sentiment,
	createdAt time.Time,
	updatedAt time.Time,
) *Conversation {
	return &Conversation{
		id:            id,
		customerEmail: customerEmail,
		status:        status,
		sentiment:     sentiment,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (c *Conversation) ID() string                 { return c.id }
func (c *Conversation) CustomerEmail() string      { return c.customerEmail }
func (c *Conversation) Status() ConversationStatus { return c.status }
func (c *Conversation) Sentiment() Sentiment       { return c.sentiment }
func (c *Conversation) CreatedAt() time.Time       { return c.createdAt }
func (c *Conversation) UpdatedAt() time.Time       { return c.updatedAt }

// SetSentiment overwrites the sentiment snapshot.
func (c *Conversation) SetSentiment(s Sentiment) {
	c.sentiment = s
	c.updatedAt = time.Now()
}

// SetStatus moves the conversation to status.
func (c *Conversation) SetStatus(status ConversationStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	c.status = status
	c.updatedAt = time.Now()
	return nil
}

// AttachEmail records the customer email when the conversation started anonymous.
func (c *Conversation) AttachEmail(email string) bool {
	if email == "" || c.customerEmail != "" {
		return false
	}
	c.customerEmail = email
	c.updatedAt = time.Now()
	return true
}
