package repository

import (
	"context"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// ConversationRepository stores conversations.
type ConversationRepository interface {
	// Create inserts a new conversation. Duplicate IDs return an ALREADY_EXISTS error.
	Create(ctx context.Context, conv *entity.Conversation) error

	// FindByID returns a NOT_FOUND error when the conversation does not exist.
	FindByID(ctx context.Context, id string) (*entity.Conversation, error)

	// Update persists status, sentiment and email of an existing conversation.
	Update(ctx context.Context, conv *entity.Conversation) error

	// UpdateSentiment overwrites the sentiment snapshot.
	UpdateSentiment(ctx context.Context, id string, sentiment entity.Sentiment) error

	// UpdateStatus moves a conversation to a new status.
	UpdateStatus(ctx context.Context, id string, status entity.ConversationStatus) error

	// ListByEmail returns the customer's conversations, newest first.
	ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Conversation, error)
}

// MessageRepository stores the append-only message log of conversations.
type MessageRepository interface {
	// Save appends a message.
	Save(ctx context.Context, message *entity.Message) error

	// SaveBatch appends messages atomically in the given order.
	SaveBatch(ctx context.Context, messages []*entity.Message) error

	// FindByConversationID returns messages in chronological order.
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error)

	// Count returns the number of messages in a conversation.
	Count(ctx context.Context, conversationID string) (int64, error)
}
