package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/llm"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/monitoring"
)

// Monitor is the in-process metrics view.
type Monitor interface {
	GetStats() map[string]interface{}
	GetDashboardData() *monitoring.DashboardData
}

// ProviderLister reports the state of the model providers.
type ProviderLister interface {
	ListProviders(ctx context.Context) []llm.ProviderStatus
}

// DebugHandler exposes runtime state for operators.
type DebugHandler struct {
	monitor   Monitor
	providers ProviderLister
	startTime time.Time
	logger    *zap.Logger
}

func NewDebugHandler(monitor Monitor, providers ProviderLister, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		monitor:   monitor,
		providers: providers,
		startTime: time.Now(),
		logger:    logger.With(zap.String("handler", "debug")),
	}
}

// GetMetrics handles GET /api/v1/debug/metrics.
func (h *DebugHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetStats())
}

// GetDashboard handles GET /api/v1/debug/dashboard.
func (h *DebugHandler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetDashboardData())
}

// GetProviders handles GET /api/v1/providers.
func (h *DebugHandler) GetProviders(c *gin.Context) {
	if h.providers == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []llm.ProviderStatus{}, "count": 0})
		return
	}
	providers := h.providers.ListProviders(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"providers": providers, "count": len(providers)})
}

// GetRuntime handles GET /api/v1/debug/runtime.
func (h *DebugHandler) GetRuntime(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
		"sys_mb":         float64(mem.Sys) / 1024 / 1024,
		"gc_cycles":      mem.NumGC,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}
