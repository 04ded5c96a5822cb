package persistence

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// GormMessageRepository stores the append-only message log with gorm.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	return r.SaveBatch(ctx, []*entity.Message{message})
}

// SaveBatch appends all messages in one transaction, positioned after the
// conversation's existing messages in slice order.
func (r *GormMessageRepository) SaveBatch(ctx context.Context, messages []*entity.Message) error {
	if len(messages) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := make(map[string]int)
		for _, msg := range messages {
			convID := msg.ConversationID()
			pos, ok := next[convID]
			if !ok {
				var maxPos int
				if err := tx.Model(&models.MessageModel{}).
					Where("conversation_id = ?", convID).
					Select("COALESCE(MAX(position), -1)").
					Row().
					Scan(&maxPos); err != nil {
					return err
				}
				pos = maxPos + 1
			}

			model, err := messageToModel(msg, pos)
			if err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			next[convID] = pos + 1
		}
		return nil
	})
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save messages", err)
	}
	return nil
}

// FindByConversationID returns messages in log order. limit <= 0 means all.
func (r *GormMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("position asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []models.MessageModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find messages", err)
	}

	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		msg, err := messageToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *GormMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to count messages", err)
	}
	return count, nil
}

func messageToModel(m *entity.Message, position int) (*models.MessageModel, error) {
	var toolCalls string
	if calls := m.ToolCalls(); len(calls) > 0 {
		raw, err := json.Marshal(calls)
		if err != nil {
			return nil, domainErrors.NewInternalErrorWithCause("failed to marshal tool calls", err)
		}
		toolCalls = string(raw)
	}

	return &models.MessageModel{
		ID:             m.ID(),
		ConversationID: m.ConversationID(),
		Position:       position,
		Role:           string(m.Role()),
		Content:        m.Content(),
		ToolCalls:      toolCalls,
		Tokens:         m.Tokens(),
		CreatedAt:      m.CreatedAt(),
	}, nil
}

func messageToEntity(m *models.MessageModel) (*entity.Message, error) {
	var calls []entity.ToolInvocation
	if m.ToolCalls != "" {
		if err := json.Unmarshal([]byte(m.ToolCalls), &calls); err != nil {
			return nil, domainErrors.NewInternalErrorWithCause("failed to unmarshal tool calls of message "+m.ID, err)
		}
	}

	return entity.ReconstructMessage(
		m.ID,
		m.ConversationID,
		entity.MessageRole(m.Role),
		m.Content,
		calls,
		m.Tokens,
		m.CreatedAt,
	), nil
}
