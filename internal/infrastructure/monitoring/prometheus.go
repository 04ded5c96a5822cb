package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

const metricPrefix = "support_bot_"

// PrometheusHandler serves the counters in the Prometheus text exposition
// format. Mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"chat_turns_total", "Total chat turns processed", "counter", atomic.LoadUint64(&m.metrics.ChatTurnsTotal)},
			{"chat_turns_failed_total", "Chat turns that finished with an error", "counter", atomic.LoadUint64(&m.metrics.ChatTurnsFailed)},

			{"tool_calls_total", "Total tool calls dispatched", "counter", atomic.LoadUint64(&m.metrics.ToolCallsTotal)},
			{"tool_calls_success_total", "Tool calls that succeeded", "counter", atomic.LoadUint64(&m.metrics.ToolCallsSuccess)},
			{"tool_calls_failed_total", "Tool calls that failed", "counter", atomic.LoadUint64(&m.metrics.ToolCallsFailed)},
			{"tool_calls_rejected_total", "Tool calls rejected by input validation", "counter", atomic.LoadUint64(&m.metrics.ToolCallsRejected)},
			{"tool_calls_cached_total", "Tool calls served from the result cache", "counter", atomic.LoadUint64(&m.metrics.ToolCallsCached)},

			{"model_calls_total", "Total LLM provider calls", "counter", atomic.LoadUint64(&m.metrics.ModelCallsTotal)},
			{"model_calls_failed_total", "LLM provider calls that failed", "counter", atomic.LoadUint64(&m.metrics.ModelCallsFailed)},
			{"prompt_tokens_total", "Prompt tokens consumed", "counter", atomic.LoadUint64(&m.metrics.PromptTokens)},
			{"completion_tokens_total", "Completion tokens produced", "counter", atomic.LoadUint64(&m.metrics.CompletionTokens)},

			{"rate_limited_total", "Requests rejected by the rate limiter", "counter", atomic.LoadUint64(&m.metrics.RateLimitedTotal)},
			{"tickets_created_total", "Support tickets created", "counter", atomic.LoadUint64(&m.metrics.TicketsCreated)},
			{"agent_transfers_total", "Conversations handed to a human agent", "counter", atomic.LoadUint64(&m.metrics.AgentTransfers)},

			{"active_streams", "Chat streams currently open", "gauge", atomic.LoadInt64(&m.metrics.ActiveStreams)},
			{"uptime_seconds", "Process uptime in seconds", "gauge", uptime},

			{"memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"memory_sys_bytes", "Total memory obtained from OS", "gauge", memStats.Sys},
			{"goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			name := metricPrefix + l.name
			fmt.Fprintf(w, "# HELP %s %s\n", name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", name, v)
			}
			fmt.Fprintln(w)
		}

		latencies := []struct {
			name, help string
			sum, count *uint64
		}{
			{"turn_latency_avg_ms", "Average chat turn latency in milliseconds", &m.metrics.TurnLatencySum, &m.metrics.TurnLatencyCount},
			{"tool_latency_avg_ms", "Average tool execution latency in milliseconds", &m.metrics.ToolLatencySum, &m.metrics.ToolLatencyCount},
			{"model_latency_avg_ms", "Average provider call latency in milliseconds", &m.metrics.ModelLatencySum, &m.metrics.ModelLatencyCount},
		}
		for _, l := range latencies {
			if atomic.LoadUint64(l.count) == 0 {
				continue
			}
			name := metricPrefix + l.name
			fmt.Fprintf(w, "# HELP %s %s\n", name, l.help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s %f\n\n", name, avgMs(l.sum, l.count))
		}
	})
}
