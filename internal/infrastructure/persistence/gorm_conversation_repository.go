package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// GormConversationRepository stores conversations with gorm.
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) Create(ctx context.Context, conv *entity.Conversation) error {
	model := conversationToModel(conv)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ConversationModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domainErrors.NewAlreadyExistsError("conversation already exists: " + model.ID)
	}
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create conversation", err)
	}
	return nil
}

func (r *GormConversationRepository) FindByID(ctx context.Context, id string) (*entity.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("conversation not found: " + id)
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find conversation", err)
	}
	return conversationToEntity(&model), nil
}

func (r *GormConversationRepository) Update(ctx context.Context, conv *entity.Conversation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ?", conv.ID()).
		Updates(map[string]interface{}{
			"customer_email": conv.CustomerEmail(),
			"status":         string(conv.Status()),
			"sentiment":      string(conv.Sentiment()),
			"updated_at":     time.Now().UTC(),
		})
	return rowsOrNotFound(result, "conversation", conv.ID())
}

func (r *GormConversationRepository) UpdateSentiment(ctx context.Context, id string, sentiment entity.Sentiment) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sentiment":  string(sentiment),
			"updated_at": time.Now().UTC(),
		})
	return rowsOrNotFound(result, "conversation", id)
}

func (r *GormConversationRepository) UpdateStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	if !status.Valid() {
		return domainErrors.NewInvalidInputErrorf("invalid conversation status: %s", status)
	}
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	return rowsOrNotFound(result, "conversation", id)
}

func (r *GormConversationRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.ConversationModel
	err := r.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list conversations", err)
	}

	convs := make([]*entity.Conversation, 0, len(rows))
	for i := range rows {
		convs = append(convs, conversationToEntity(&rows[i]))
	}
	return convs, nil
}

// rowsOrNotFound maps an update that touched nothing to NOT_FOUND.
func rowsOrNotFound(result *gorm.DB, kind, id string) error {
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update "+kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError(kind + " not found: " + id)
	}
	return nil
}

func conversationToModel(c *entity.Conversation) *models.ConversationModel {
	return &models.ConversationModel{
		ID:            c.ID(),
		CustomerEmail: c.CustomerEmail(),
		Status:        string(c.Status()),
		Sentiment:     string(c.Sentiment()),
		CreatedAt:     c.CreatedAt(),
		UpdatedAt:     c.UpdatedAt(),
	}
}

func conversationToEntity(m *models.ConversationModel) *entity.Conversation {
	return entity.ReconstructConversation(
		m.ID,
		m.CustomerEmail,
		entity.ConversationStatus(m.Status),
		entity.Sentiment(m.Sentiment),
		m.CreatedAt,
		m.UpdatedAt,
	)
}
