package usecase

import (
	"context"
	"math"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

var knownMetrics = map[string]bool{
	entity.MetricChatTurn:      true,
	entity.MetricToolCall:      true,
	entity.MetricTicketCreated: true,
	entity.MetricAgentTransfer: true,
	entity.MetricRateLimited:   true,
}

// DashboardUseCase aggregates support activity.
type DashboardUseCase struct {
	analytics repository.AnalyticsRepository
	tickets   repository.TicketRepository
	feedback  repository.FeedbackRepository
	now       func() time.Time
}

func NewDashboardUseCase(analytics repository.AnalyticsRepository, tickets repository.TicketRepository, feedback repository.FeedbackRepository) *DashboardUseCase {
	return &DashboardUseCase{
		analytics: analytics,
		tickets:   tickets,
		feedback:  feedback,
		now:       time.Now,
	}
}

// Stats summarises the period ending now. An empty period means a day.
func (uc *DashboardUseCase) Stats(ctx context.Context, period entity.StatsPeriod) (*entity.DashboardStats, error) {
	switch period {
	case "":
		period = entity.PeriodDay
	case entity.PeriodDay, entity.PeriodWeek, entity.PeriodMonth:
	default:
		return nil, apperrors.NewInvalidInputErrorf("unknown period %q (day, week or month)", period)
	}
	since := period.Since(uc.now().UTC())

	conversations, escalated, err := uc.analytics.CountConversationsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	tickets, resolved, err := uc.tickets.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}
	rating, err := uc.feedback.AverageRating(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &entity.DashboardStats{
		Period:             period,
		TotalConversations: conversations,
		TotalTickets:       tickets,
		ResolvedTickets:    resolved,
		AverageRating:      math.Round(rating*100) / 100,
		EscalatedCount:     escalated,
	}
	if tickets > 0 {
		stats.ResolutionRate = math.Round(float64(resolved)/float64(tickets)*10000) / 100
	}
	return stats, nil
}

// Metrics returns the newest records of one metric.
func (uc *DashboardUseCase) Metrics(ctx context.Context, metric string, limit int) ([]*entity.AnalyticsRecord, error) {
	if !knownMetrics[metric] {
		return nil, apperrors.NewNotFoundError("unknown metric: " + metric)
	}
	return uc.analytics.ListByMetric(ctx, metric, limit)
}
