package repository

import (
	"context"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// AnalyticsRepository stores the metric log and answers dashboard queries.
type AnalyticsRepository interface {
	Save(ctx context.Context, record *entity.AnalyticsRecord) error
	ListByMetric(ctx context.Context, metric string, limit int) ([]*entity.AnalyticsRecord, error)
	CountConversationsSince(ctx context.Context, since time.Time) (total int64, escalated int64, err error)
}

// KnowledgeRepository stores knowledge base articles.
type KnowledgeRepository interface {
	List(ctx context.Context) ([]*entity.KnowledgeEntry, error)
	Create(ctx context.Context, entry *entity.KnowledgeEntry) error
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}
