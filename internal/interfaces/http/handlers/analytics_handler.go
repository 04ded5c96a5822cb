package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// AnalyticsHandler serves the support dashboard.
type AnalyticsHandler struct {
	dashboard *usecase.DashboardUseCase
	logger    *zap.Logger
}

func NewAnalyticsHandler(dashboard *usecase.DashboardUseCase, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		dashboard: dashboard,
		logger:    logger.With(zap.String("handler", "analytics")),
	}
}

// GetStats handles GET /api/v1/analytics?period=day|week|month.
func (h *AnalyticsHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), entity.StatsPeriod(c.Query("period")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetMetric handles GET /api/v1/analytics/metrics/:metric?limit=.
func (h *AnalyticsHandler) GetMetric(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	metric := c.Param("metric")
	records, err := h.dashboard.Metrics(c.Request.Context(), metric, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "records": records, "count": len(records)})
}
