package monitoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// Metrics holds the process-lifetime counters. All fields are accessed
// atomically.
type Metrics struct {
	ChatTurnsTotal  uint64
	ChatTurnsFailed uint64

	ToolCallsTotal    uint64
	ToolCallsSuccess  uint64
	ToolCallsFailed   uint64
	ToolCallsRejected uint64
	ToolCallsCached   uint64

	ModelCallsTotal  uint64
	ModelCallsFailed uint64
	PromptTokens     uint64
	CompletionTokens uint64

	RateLimitedTotal uint64
	TicketsCreated   uint64
	AgentTransfers   uint64

	ActiveStreams int64

	// nanoseconds
	TurnLatencySum    uint64
	TurnLatencyCount  uint64
	ToolLatencySum    uint64
	ToolLatencyCount  uint64
	ModelLatencySum   uint64
	ModelLatencyCount uint64

	StartTime time.Time
}

// Monitor collects runtime metrics for the support backend.
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.RWMutex

	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot is a point-in-time view kept for charts.
type MetricsSnapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	TurnsPerSecond   float64   `json:"turns_per_second"`
	ToolCallsPerSec  float64   `json:"tool_calls_per_second"`
	AvgTurnLatencyMs float64   `json:"avg_turn_latency_ms"`
	ActiveStreams    int64     `json:"active_streams"`
	MemoryMB         float64   `json:"memory_mb"`
	Goroutines       int       `json:"goroutines"`
}

func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		logger:       logger.With(zap.String("component", "monitor")),
		history:      make([]MetricsSnapshot, 0, 100),
		historyLimit: 100,
	}
}

func (m *Monitor) IncRateLimited()      { atomic.AddUint64(&m.metrics.RateLimitedTotal, 1) }
func (m *Monitor) IncTicketCreated()    { atomic.AddUint64(&m.metrics.TicketsCreated, 1) }
func (m *Monitor) IncAgentTransfer()    { atomic.AddUint64(&m.metrics.AgentTransfers, 1) }
func (m *Monitor) StreamStarted()       { atomic.AddInt64(&m.metrics.ActiveStreams, 1) }
func (m *Monitor) StreamFinished()      { atomic.AddInt64(&m.metrics.ActiveStreams, -1) }
func (m *Monitor) ActiveStreams() int64 { return atomic.LoadInt64(&m.metrics.ActiveStreams) }

// RecordTurn counts a finished chat turn.
func (m *Monitor) RecordTurn(reason entity.FinishReason, promptTokens, completionTokens int, d time.Duration) {
	atomic.AddUint64(&m.metrics.ChatTurnsTotal, 1)
	if reason == entity.FinishError {
		atomic.AddUint64(&m.metrics.ChatTurnsFailed, 1)
	}
	if promptTokens > 0 {
		atomic.AddUint64(&m.metrics.PromptTokens, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.metrics.CompletionTokens, uint64(completionTokens))
	}
	atomic.AddUint64(&m.metrics.TurnLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.TurnLatencyCount, 1)
}

// ObserveTool matches the tool executor's observer signature.
func (m *Monitor) ObserveTool(toolName string, status entity.ToolInvocationStatus, cached bool, d time.Duration) {
	atomic.AddUint64(&m.metrics.ToolCallsTotal, 1)
	switch status {
	case entity.ToolSucceeded:
		atomic.AddUint64(&m.metrics.ToolCallsSuccess, 1)
	case entity.ToolRejected:
		atomic.AddUint64(&m.metrics.ToolCallsRejected, 1)
	default:
		atomic.AddUint64(&m.metrics.ToolCallsFailed, 1)
	}
	if cached {
		atomic.AddUint64(&m.metrics.ToolCallsCached, 1)
		return
	}
	atomic.AddUint64(&m.metrics.ToolLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.ToolLatencyCount, 1)
}

// ObserveProviderCall matches the LLM router's call observer signature.
func (m *Monitor) ObserveProviderCall(provider string, latency time.Duration, err error) {
	atomic.AddUint64(&m.metrics.ModelCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.metrics.ModelCallsFailed, 1)
		m.logger.Debug("Provider call failed",
			zap.String("provider", provider),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
	}
	atomic.AddUint64(&m.metrics.ModelLatencySum, uint64(latency.Nanoseconds()))
	atomic.AddUint64(&m.metrics.ModelLatencyCount, 1)
}

func avgMs(sum, count *uint64) float64 {
	n := atomic.LoadUint64(count)
	if n == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(sum)) / float64(n) / 1e6
}

// GetStats returns the current counters keyed by name.
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime)
	turns := atomic.LoadUint64(&m.metrics.ChatTurnsTotal)

	return map[string]interface{}{
		"uptime_seconds":      uptime.Seconds(),
		"chat_turns_total":    turns,
		"chat_turns_failed":   atomic.LoadUint64(&m.metrics.ChatTurnsFailed),
		"tool_calls_total":    atomic.LoadUint64(&m.metrics.ToolCallsTotal),
		"tool_calls_success":  atomic.LoadUint64(&m.metrics.ToolCallsSuccess),
		"tool_calls_failed":   atomic.LoadUint64(&m.metrics.ToolCallsFailed),
		"tool_calls_rejected": atomic.LoadUint64(&m.metrics.ToolCallsRejected),
		"tool_calls_cached":   atomic.LoadUint64(&m.metrics.ToolCallsCached),
		"model_calls_total":   atomic.LoadUint64(&m.metrics.ModelCallsTotal),
		"model_calls_failed":  atomic.LoadUint64(&m.metrics.ModelCallsFailed),
		"prompt_tokens":       atomic.LoadUint64(&m.metrics.PromptTokens),
		"completion_tokens":   atomic.LoadUint64(&m.metrics.CompletionTokens),
		"rate_limited_total":  atomic.LoadUint64(&m.metrics.RateLimitedTotal),
		"tickets_created":     atomic.LoadUint64(&m.metrics.TicketsCreated),
		"agent_transfers":     atomic.LoadUint64(&m.metrics.AgentTransfers),
		"active_streams":      atomic.LoadInt64(&m.metrics.ActiveStreams),
		"avg_turn_latency_ms": avgMs(&m.metrics.TurnLatencySum, &m.metrics.TurnLatencyCount),
		"avg_tool_latency_ms": avgMs(&m.metrics.ToolLatencySum, &m.metrics.ToolLatencyCount),
		"memory_mb":           float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":          runtime.NumGoroutine(),
	}
}

// Snapshot records the current rates in the history ring.
func (m *Monitor) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime).Seconds()
	turns := atomic.LoadUint64(&m.metrics.ChatTurnsTotal)
	tools := atomic.LoadUint64(&m.metrics.ToolCallsTotal)

	snapshot := MetricsSnapshot{
		Timestamp:        time.Now(),
		TurnsPerSecond:   float64(turns) / uptime,
		ToolCallsPerSec:  float64(tools) / uptime,
		AvgTurnLatencyMs: avgMs(&m.metrics.TurnLatencySum, &m.metrics.TurnLatencyCount),
		ActiveStreams:    atomic.LoadInt64(&m.metrics.ActiveStreams),
		MemoryMB:         float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:       runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector snapshots every interval until ctx is done.
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
		}
	}
}

type DashboardData struct {
	Stats   map[string]interface{} `json:"stats"`
	History []MetricsSnapshot      `json:"history"`
}

func (m *Monitor) GetDashboardData() *DashboardData {
	return &DashboardData{
		Stats:   m.GetStats(),
		History: m.GetHistory(),
	}
}
