package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	"go.uber.org/zap"
)

// CallObserver is notified after every provider call.
type CallObserver func(provider string, latency time.Duration, err error)

// Router implements service.LLMClient over an ordered list of providers.
// Providers are tried in the order they were added; a provider whose
// circuit is open is skipped, and a failed call falls through to the next
// provider. A stream that already delivered text is never failed over,
// since the caller has shown that text to the customer.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	stats     map[string]*providerStats
	breakers  map[string]*CircuitBreaker
	observer  CallObserver
	logger    *zap.Logger
}

type providerStats struct {
	TotalCalls   int64
	FailureCount int64
	LastLatency  time.Duration
	LastError    string
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		stats:    make(map[string]*providerStats),
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger.With(zap.String("component", "llm-router")),
	}
}

var _ service.LLMClient = (*Router)(nil)

// AddProvider appends p to the failover order.
func (r *Router) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	cb := NewCircuitBreaker(5, 30*time.Second)
	cb.OnStateChange(func(from, to CircuitState) {
		r.logger.Warn("Provider circuit changed state",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})

	r.providers = append(r.providers, p)
	r.stats[name] = &providerStats{}
	r.breakers[name] = cb
	r.logger.Info("LLM provider added",
		zap.String("name", name),
		zap.Strings("models", p.Models()),
	)
}

// SetObserver installs fn as the per-call observer.
func (r *Router) SetObserver(fn CallObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

func (r *Router) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	return r.route(ctx, req, func(p Provider) (*service.LLMResponse, bool, error) {
		resp, err := p.Generate(ctx, req)
		return resp, false, err
	})
}

func (r *Router) GenerateStream(ctx context.Context, req *service.LLMRequest, deltaCh chan<- service.StreamChunk) (*service.LLMResponse, error) {
	return r.route(ctx, req, func(p Provider) (*service.LLMResponse, bool, error) {
		fwd := make(chan service.StreamChunk, 64)
		forwarded := 0
		done := make(chan struct{})
		go func() {
			defer close(done)
			for chunk := range fwd {
				if chunk.DeltaText != "" {
					forwarded++
				}
				deltaCh <- chunk
			}
		}()

		resp, err := p.GenerateStream(ctx, req, fwd)
		close(fwd)
		<-done
		return resp, forwarded > 0, err
	})
}

// route tries providers in order. call reports whether partial output
// already reached the caller, which ends failover.
func (r *Router) route(ctx context.Context, req *service.LLMRequest, call func(Provider) (*service.LLMResponse, bool, error)) (*service.LLMResponse, error) {
	r.mu.RLock()
	providers := make([]Provider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	var lastErr error
	for _, p := range providers {
		if !p.SupportsModel(req.Model) || !p.IsAvailable(ctx) {
			continue
		}
		cb := r.breaker(p.Name())
		if cb != nil && !cb.Allow() {
			r.logger.Debug("Provider circuit open, skipping", zap.String("provider", p.Name()))
			continue
		}

		start := time.Now()
		resp, partial, err := call(p)
		latency := time.Since(start)
		r.record(p.Name(), latency, err)

		if err != nil {
			if cb != nil && countsAgainstCircuit(err) {
				cb.RecordFailure()
			}
			if ctx.Err() != nil {
				return nil, err
			}
			if partial {
				r.logger.Warn("Provider failed mid-stream, not failing over",
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
				return nil, err
			}
			lastErr = err
			r.logger.Warn("Provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			continue
		}

		if cb != nil {
			cb.RecordSuccess()
		}
		if resp.ModelUsed == "" {
			resp.ModelUsed = req.Model
		}
		r.logger.Debug("Provider succeeded",
			zap.String("provider", p.Name()),
			zap.Duration("latency", latency),
			zap.Int("tokens", resp.Usage.TotalTokens),
		)
		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
	}
	return nil, service.NewLLMErrorFromStatus("router", 503, fmt.Errorf("no provider available for model %q", req.Model))
}

func (r *Router) breaker(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

func (r *Router) record(name string, latency time.Duration, err error) {
	r.mu.Lock()
	if s, ok := r.stats[name]; ok {
		s.TotalCalls++
		s.LastLatency = latency
		if err != nil {
			s.FailureCount++
			s.LastError = err.Error()
		}
	}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer(name, latency, err)
	}
}

// countsAgainstCircuit keeps request-shaped failures from tripping the
// breaker; only provider health should.
func countsAgainstCircuit(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *service.LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Kind != service.ErrKindBadRequest && llmErr.Kind != service.ErrKindContentFilter
	}
	return true
}

// ProviderStatus is the externally visible state of one provider.
type ProviderStatus struct {
	Name          string   `json:"name"`
	Models        []string `json:"models"`
	Available     bool     `json:"available"`
	TotalCalls    int64    `json:"total_calls"`
	FailureCount  int64    `json:"failure_count"`
	LastLatencyMs float64  `json:"last_latency_ms"`
	LastError     string   `json:"last_error,omitempty"`
	CircuitState  string   `json:"circuit_state"`
}

// ListProviders reports every provider in failover order.
func (r *Router) ListProviders(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		ps := ProviderStatus{
			Name:      p.Name(),
			Models:    p.Models(),
			Available: p.IsAvailable(ctx),
		}
		if s, ok := r.stats[p.Name()]; ok {
			ps.TotalCalls = s.TotalCalls
			ps.FailureCount = s.FailureCount
			ps.LastLatencyMs = float64(s.LastLatency) / float64(time.Millisecond)
			ps.LastError = s.LastError
		}
		if cb, ok := r.breakers[p.Name()]; ok {
			ps.CircuitState = cb.State().String()
		}
		result = append(result, ps)
	}
	return result
}
