package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

// Observer is told about every finished tool call.
type Observer func(toolName string, status entity.ToolInvocationStatus, cached bool, duration time.Duration)

// Executor runs registered tools for the chat loop.
type Executor struct {
	registry  domaintool.Registry
	cache     *ResultCache
	publisher eventbus.Publisher
	observer  Observer
	logger    *zap.Logger
}

type ExecutorOption func(*Executor)

// WithResultCache caches successful results of search tools.
func WithResultCache(cache *ResultCache) ExecutorOption {
	return func(e *Executor) { e.cache = cache }
}

// WithPublisher publishes a tool_call event per execution.
func WithPublisher(p eventbus.Publisher) ExecutorOption {
	return func(e *Executor) { e.publisher = p }
}

func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

func NewExecutor(registry domaintool.Registry, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool-executor")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute looks the tool up and runs it. Unknown tools and handler errors
// are returned as errors; validation failures keep their
// *domaintool.ValidationError type so the loop can report the fields.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error) {
	startTime := time.Now()

	t, exists := e.registry.Get(name)
	if !exists {
		e.logger.Warn("Tool not found",
			zap.String("tool", name),
		)
		e.record(ctx, name, entity.ToolFailed, false, time.Since(startTime))
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	cacheable := e.cache != nil && t.Kind() == domaintool.KindSearch
	if cacheable {
		if res, hit := e.cache.Get(name, args); hit {
			e.logger.Debug("Tool result served from cache",
				zap.String("tool", name),
			)
			e.record(ctx, name, entity.ToolSucceeded, true, time.Since(startTime))
			return res, nil
		}
	}

	e.logger.Info("Executing tool",
		zap.String("tool", name),
		zap.String("kind", string(t.Kind())),
	)

	result, err := t.Execute(ctx, args)
	duration := time.Since(startTime)

	if err != nil {
		status := entity.ToolFailed
		if domaintool.IsValidationError(err) {
			status = entity.ToolRejected
		}
		e.logger.Warn("Tool execution error",
			zap.String("tool", name),
			zap.String("status", string(status)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		e.record(ctx, name, status, false, duration)
		return nil, err
	}
	if result == nil {
		e.record(ctx, name, entity.ToolFailed, false, duration)
		return nil, fmt.Errorf("tool %s returned no result", name)
	}

	e.logger.Info("Tool execution completed",
		zap.String("tool", name),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
	)

	status := entity.ToolSucceeded
	if !result.Success {
		status = entity.ToolFailed
	} else if cacheable {
		e.cache.Put(name, args, result)
	}
	e.record(ctx, name, status, false, duration)
	return result, nil
}

// GetDefinitions returns the declarations of all registered tools.
func (e *Executor) GetDefinitions() []domaintool.Definition {
	return e.registry.List()
}

func (e *Executor) record(ctx context.Context, name string, status entity.ToolInvocationStatus, cached bool, duration time.Duration) {
	if e.observer != nil {
		e.observer(name, status, cached, duration)
	}
	if e.publisher == nil {
		return
	}
	cc, _ := domaintool.CallContextFrom(ctx)
	e.publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeToolCall, eventbus.ToolCallPayload{
		ConversationID: cc.ConversationID,
		ToolName:       name,
		Status:         status,
		Cached:         cached,
		Duration:       duration,
	}))
}
