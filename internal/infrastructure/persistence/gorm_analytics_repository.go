package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// GormFeedbackRepository stores customer ratings with gorm.
type GormFeedbackRepository struct {
	db *gorm.DB
}

func NewGormFeedbackRepository(db *gorm.DB) repository.FeedbackRepository {
	return &GormFeedbackRepository{db: db}
}

func (r *GormFeedbackRepository) Save(ctx context.Context, f *entity.Feedback) error {
	if err := f.Validate(); err != nil {
		return domainErrors.NewInvalidInputError(err.Error())
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	model := &models.FeedbackModel{
		ID:             f.ID,
		ConversationID: f.ConversationID,
		MessageID:      f.MessageID,
		Rating:         f.Rating,
		Helpful:        f.Helpful,
		Comment:        f.Comment,
		CreatedAt:      f.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save feedback", err)
	}
	return nil
}

func (r *GormFeedbackRepository) AverageRating(ctx context.Context, since time.Time) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).
		Model(&models.FeedbackModel{}).
		Where("created_at >= ?", since).
		Select("COALESCE(AVG(rating), 0)").
		Row().
		Scan(&avg)
	if err != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to average ratings", err)
	}
	return avg, nil
}

// GormAnalyticsRepository stores the metric log with gorm.
type GormAnalyticsRepository struct {
	db *gorm.DB
}

func NewGormAnalyticsRepository(db *gorm.DB) repository.AnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

func (r *GormAnalyticsRepository) Save(ctx context.Context, record *entity.AnalyticsRecord) error {
	if record.Metric == "" {
		return domainErrors.NewInvalidInputError("metric is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var metadata string
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to marshal analytics metadata", err)
		}
		metadata = string(raw)
	}

	model := &models.AnalyticsModel{
		ID:        record.ID,
		Metric:    record.Metric,
		Value:     record.Value,
		Metadata:  metadata,
		CreatedAt: record.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save analytics record", err)
	}
	return nil
}

// ListByMetric returns the newest records first. limit <= 0 means 100.
func (r *GormAnalyticsRepository) ListByMetric(ctx context.Context, metric string, limit int) ([]*entity.AnalyticsRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AnalyticsModel
	err := r.db.WithContext(ctx).
		Where("metric = ?", metric).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list analytics", err)
	}

	records := make([]*entity.AnalyticsRecord, 0, len(rows))
	for _, m := range rows {
		rec := &entity.AnalyticsRecord{
			ID:        m.ID,
			Metric:    m.Metric,
			Value:     m.Value,
			CreatedAt: m.CreatedAt,
		}
		if m.Metadata != "" {
			// metadata is informational; a corrupt blob should not hide the record
			_ = json.Unmarshal([]byte(m.Metadata), &rec.Metadata)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *GormAnalyticsRepository) CountConversationsSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, escalated int64
	base := r.db.WithContext(ctx).Model(&models.ConversationModel{}).Where("created_at >= ?", since)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, domainErrors.NewInternalErrorWithCause("failed to count conversations", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", string(entity.ConversationEscalated)).
		Count(&escalated).Error; err != nil {
		return 0, 0, domainErrors.NewInternalErrorWithCause("failed to count escalations", err)
	}
	return total, escalated, nil
}
