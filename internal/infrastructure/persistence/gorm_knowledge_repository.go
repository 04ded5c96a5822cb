package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// GormKnowledgeRepository stores knowledge base articles and their
// embeddings with gorm.
type GormKnowledgeRepository struct {
	db *gorm.DB
}

func NewGormKnowledgeRepository(db *gorm.DB) repository.KnowledgeRepository {
	return &GormKnowledgeRepository{db: db}
}

func (r *GormKnowledgeRepository) List(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
	var rows []models.KnowledgeModel
	if err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list knowledge", err)
	}

	entries := make([]*entity.KnowledgeEntry, 0, len(rows))
	for i := range rows {
		e := &entity.KnowledgeEntry{
			ID:        rows[i].ID,
			Title:     rows[i].Title,
			Content:   rows[i].Content,
			Category:  entity.KnowledgeCategory(rows[i].Category),
			CreatedAt: rows[i].CreatedAt,
		}
		if rows[i].Embedding != "" {
			// a bad vector is recomputed on the next search
			if err := json.Unmarshal([]byte(rows[i].Embedding), &e.Embedding); err != nil {
				e.Embedding = nil
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *GormKnowledgeRepository) Create(ctx context.Context, e *entity.KnowledgeEntry) error {
	if e.ID == "" || e.Title == "" || e.Content == "" {
		return domainErrors.NewInvalidInputError("knowledge entry needs id, title and content")
	}
	if !e.Category.Valid() {
		return domainErrors.NewInvalidInputErrorf("unknown knowledge category: %s", e.Category)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	model := &models.KnowledgeModel{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		Category:  string(e.Category),
		CreatedAt: e.CreatedAt,
	}
	if len(e.Embedding) > 0 {
		raw, err := json.Marshal(e.Embedding)
		if err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to marshal embedding", err)
		}
		model.Embedding = string(raw)
	}

	err := r.db.WithContext(ctx).Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domainErrors.NewAlreadyExistsError("knowledge entry already exists: " + e.ID)
	}
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create knowledge entry", err)
	}
	return nil
}

func (r *GormKnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to marshal embedding", err)
	}
	result := r.db.WithContext(ctx).
		Model(&models.KnowledgeModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  string(raw),
			"updated_at": time.Now().UTC(),
		})
	return rowsOrNotFound(result, "knowledge entry", id)
}
