package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/pkg/safego"
	"go.uber.org/zap"
)

// ChatLoopConfig holds the knobs of a single chat turn.
type ChatLoopConfig struct {
	Model       string
	MaxTokens   int     // per model call (default 1000)
	Temperature float64 // not defaulted, zero is a valid temperature

	// MaxToolRoundTrips bounds how many times one turn dispatches tools and
	// re-enters the model. A step that asks for tools past the cap ends the
	// turn with FinishLength.
	MaxToolRoundTrips int           // default 5
	ToolTimeout       time.Duration // per tool call (default 30s)
	CallTimeout       time.Duration // per model call (default 2m)
	MaxRetries        int           // model call retries before any text was streamed (default 2)
	RetryBaseWait     time.Duration // exponential backoff base (default 1s)
	EventBuffer       int           // default 64
}

// DefaultChatLoopConfig mirrors the production settings.
func DefaultChatLoopConfig() ChatLoopConfig {
	return ChatLoopConfig{
		MaxTokens:         1000,
		Temperature:       0.7,
		MaxToolRoundTrips: 5,
		ToolTimeout:       30 * time.Second,
		CallTimeout:       2 * time.Minute,
		MaxRetries:        2,
		RetryBaseWait:     time.Second,
		EventBuffer:       64,
	}
}

// ToolExecutor runs declared tools for the loop.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error)
	GetDefinitions() []domaintool.Definition
}

// ChatLoop streams one conversational turn: model text, tool dispatch,
// and re-entry until the model finishes or the round-trip cap is hit.
type ChatLoop struct {
	llm    LLMClient
	tools  ToolExecutor
	config ChatLoopConfig
	logger *zap.Logger
}

func NewChatLoop(llm LLMClient, tools ToolExecutor, config ChatLoopConfig, logger *zap.Logger) *ChatLoop {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}
	if config.MaxToolRoundTrips <= 0 {
		config.MaxToolRoundTrips = 5
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = 30 * time.Second
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 2 * time.Minute
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBaseWait <= 0 {
		config.RetryBaseWait = time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	return &ChatLoop{
		llm:    llm,
		tools:  tools,
		config: config,
		logger: logger.With(zap.String("component", "chat-loop")),
	}
}

// Config returns the effective configuration after defaults.
func (l *ChatLoop) Config() ChatLoopConfig {
	return l.config
}

// TurnResult is filled in by Run and is complete once the event channel closes.
type TurnResult struct {
	Content        string
	NewMessages    []LLMMessage // assistant and tool messages produced this turn
	Invocations    []entity.ToolInvocation
	Steps          int
	ToolRoundTrips int
	Usage          entity.Usage
	ModelUsed      string
	FinishReason   entity.FinishReason
	Err            error
}

// FinishInfo summarises the turn for the finish event.
func (r *TurnResult) FinishInfo() *entity.FinishInfo {
	return &entity.FinishInfo{
		Reason:         r.FinishReason,
		Steps:          r.Steps,
		ToolRoundTrips: r.ToolRoundTrips,
		Usage:          r.Usage,
		ModelUsed:      r.ModelUsed,
	}
}

// Run starts the turn and returns immediately. The channel yields events in
// order and is closed after the single EventFinish.
func (l *ChatLoop) Run(ctx context.Context, systemPrompt string, history []LLMMessage) (*TurnResult, <-chan entity.ChatEvent) {
	eventCh := make(chan entity.ChatEvent, l.config.EventBuffer)
	result := &TurnResult{}

	go func() {
		defer close(eventCh)
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("Chat loop panicked",
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				l.fail(ctx, eventCh, result, fmt.Errorf("internal error: %v", r))
			}
		}()
		l.runLoop(ctx, systemPrompt, history, result, eventCh)
	}()

	return result, eventCh
}

func (l *ChatLoop) runLoop(ctx context.Context, systemPrompt string, history []LLMMessage, result *TurnResult, eventCh chan<- entity.ChatEvent) {
	messages := make([]LLMMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, LLMMessage{Role: string(entity.RoleSystem), Content: systemPrompt})
	}
	messages = append(messages, history...)

	toolDefs := l.tools.GetDefinitions()
	var text strings.Builder

	for step := 1; ; step++ {
		if err := ctx.Err(); err != nil {
			l.fail(ctx, eventCh, result, err)
			return
		}

		req := &LLMRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       l.config.Model,
			MaxTokens:   l.config.MaxTokens,
			Temperature: l.config.Temperature,
		}

		resp, err := l.callWithRetry(ctx, req, step, eventCh)
		result.Steps = step
		if err != nil {
			result.Content = text.String()
			l.fail(ctx, eventCh, result, err)
			return
		}

		result.Usage.Add(resp.Usage)
		if resp.ModelUsed != "" {
			result.ModelUsed = resp.ModelUsed
		}
		text.WriteString(resp.Content)
		result.Content = text.String()

		if len(resp.ToolCalls) == 0 {
			if resp.Content != "" {
				result.NewMessages = append(result.NewMessages, LLMMessage{Role: string(entity.RoleAssistant), Content: resp.Content})
			}
			l.finish(ctx, eventCh, result, providerFinishReason(resp.FinishReason))
			return
		}

		if result.ToolRoundTrips >= l.config.MaxToolRoundTrips {
			l.logger.Warn("Tool round-trip cap reached, ending turn",
				zap.Int("cap", l.config.MaxToolRoundTrips),
				zap.Int("pending_calls", len(resp.ToolCalls)),
			)
			if resp.Content != "" {
				result.NewMessages = append(result.NewMessages, LLMMessage{Role: string(entity.RoleAssistant), Content: resp.Content})
			}
			l.finish(ctx, eventCh, result, entity.FinishLength)
			return
		}
		result.ToolRoundTrips++

		assistantMsg := LLMMessage{
			Role:      string(entity.RoleAssistant),
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistantMsg)
		result.NewMessages = append(result.NewMessages, assistantMsg)

		// Sequential dispatch keeps tool results in call order.
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				l.fail(ctx, eventCh, result, err)
				return
			}
			toolMsg := l.dispatch(ctx, call, result, eventCh)
			messages = append(messages, toolMsg)
			result.NewMessages = append(result.NewMessages, toolMsg)
		}

		l.logger.Debug("Tool round trip complete",
			zap.Int("step", step),
			zap.Int("round_trips", result.ToolRoundTrips),
			zap.Int("calls", len(resp.ToolCalls)),
		)
	}
}

// dispatch runs one tool call and turns every failure into a result the
// model can read.
func (l *ChatLoop) dispatch(ctx context.Context, call entity.ToolCallInfo, result *TurnResult, eventCh chan<- entity.ChatEvent) LLMMessage {
	l.emit(ctx, eventCh, entity.ChatEvent{
		Type: entity.EventToolCall,
		ToolCall: &entity.ToolCallEvent{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		},
	})

	toolCtx, cancel := context.WithTimeout(ctx, l.config.ToolTimeout)
	defer cancel()

	start := time.Now()
	var (
		res     *domaintool.Result
		execErr error
	)
	if call.MalformedArguments != "" {
		execErr = &domaintool.ValidationError{Tool: call.Name, Fields: []domaintool.FieldError{
			{Field: "arguments", Rule: "type", Param: "object"},
		}}
	} else if !safego.Run(l.logger, "tool:"+call.Name, func() {
		res, execErr = l.tools.Execute(toolCtx, call.Name, call.Arguments)
	}) {
		execErr = fmt.Errorf("tool %s crashed", call.Name)
	}
	duration := time.Since(start)

	inv := entity.ToolInvocation{
		ID:       call.ID,
		ToolName: call.Name,
		Input:    call.Arguments,
	}
	var errMsg string
	switch {
	case execErr != nil && domaintool.IsValidationError(execErr):
		var ve *domaintool.ValidationError
		errors.As(execErr, &ve)
		inv.Status = entity.ToolRejected
		errMsg = ve.Error()
		inv.Output = errorPayload("invalid_input", errMsg, ve.Fields)
	case execErr != nil:
		inv.Status = entity.ToolFailed
		errMsg = execErr.Error()
		inv.Output = errorPayload("tool_failed", errMsg, nil)
	case res == nil:
		inv.Status = entity.ToolFailed
		errMsg = "tool returned no result"
		inv.Output = errorPayload("tool_failed", errMsg, nil)
	case !res.Success:
		inv.Status = entity.ToolFailed
		errMsg = res.Error
		inv.Output = res.Output
		if inv.Output == "" {
			inv.Output = errorPayload("tool_failed", errMsg, nil)
		}
	default:
		inv.Status = entity.ToolSucceeded
		inv.Output = res.Output
	}
	result.Invocations = append(result.Invocations, inv)

	if errMsg != "" {
		l.logger.Warn("Tool call failed",
			zap.String("tool", call.Name),
			zap.String("status", string(inv.Status)),
			zap.String("error", errMsg),
		)
	}

	l.emit(ctx, eventCh, entity.ChatEvent{
		Type: entity.EventToolResult,
		ToolCall: &entity.ToolCallEvent{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Output:    inv.Output,
			Success:   inv.Status == entity.ToolSucceeded,
			Error:     errMsg,
			Duration:  duration,
		},
	})

	return LLMMessage{
		Role:       string(entity.RoleTool),
		Content:    inv.Output,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

// callWithRetry streams one model call. Transient failures are retried
// with exponential backoff, but only while no text has reached the caller.
func (l *ChatLoop) callWithRetry(ctx context.Context, req *LLMRequest, step int, eventCh chan<- entity.ChatEvent) (*LLMResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= l.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := l.config.RetryBaseWait * (1 << (attempt - 1))
			l.logger.Info("Retrying model call",
				zap.Int("step", step),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		deltaCh := make(chan StreamChunk, 128)
		forwarded := 0
		done := make(chan struct{})
		go func() {
			defer close(done)
			for chunk := range deltaCh {
				if chunk.DeltaText == "" {
					continue
				}
				forwarded++
				l.emit(ctx, eventCh, entity.ChatEvent{
					Type:    entity.EventTextDelta,
					Content: chunk.DeltaText,
				})
			}
		}()

		callCtx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
		resp, err := l.llm.GenerateStream(callCtx, req, deltaCh)
		cancel()
		close(deltaCh)
		<-done

		if err == nil {
			if resp == nil {
				return nil, fmt.Errorf("model returned an empty response")
			}
			return resp, nil
		}

		lastErr = err
		l.logger.Warn("Model call failed",
			zap.Int("step", step),
			zap.Int("attempt", attempt),
			zap.Int("deltas_streamed", forwarded),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if forwarded > 0 || !isRetryableLLMError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("model call failed after %d retries: %w", l.config.MaxRetries, lastErr)
}

func (l *ChatLoop) finish(ctx context.Context, eventCh chan<- entity.ChatEvent, result *TurnResult, reason entity.FinishReason) {
	result.FinishReason = reason
	l.emit(ctx, eventCh, entity.ChatEvent{
		Type:   entity.EventFinish,
		Finish: result.FinishInfo(),
	})
}

func (l *ChatLoop) fail(ctx context.Context, eventCh chan<- entity.ChatEvent, result *TurnResult, err error) {
	result.Err = err
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "request cancelled"
	} else if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	l.emit(ctx, eventCh, entity.ChatEvent{Type: entity.EventError, Error: msg})
	l.finish(ctx, eventCh, result, entity.FinishError)
}

// emit delivers ev without blocking forever once ctx is done; the buffered
// channel normally has room for the closing events of a cancelled turn.
func (l *ChatLoop) emit(ctx context.Context, eventCh chan<- entity.ChatEvent, ev entity.ChatEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case eventCh <- ev:
		return
	default:
	}
	select {
	case eventCh <- ev:
	case <-ctx.Done():
		l.logger.Debug("Dropping chat event after cancellation", zap.String("type", string(ev.Type)))
	}
}

func providerFinishReason(reason string) entity.FinishReason {
	switch reason {
	case ProviderFinishLength:
		return entity.FinishLength
	case ProviderFinishToolCalls:
		// the provider asked for tools but sent none we could dispatch
		return entity.FinishToolCalls
	default:
		return entity.FinishStop
	}
}

func errorPayload(code, message string, fields []domaintool.FieldError) string {
	payload := map[string]interface{}{
		"error":   code,
		"message": message,
	}
	if len(fields) > 0 {
		payload["fields"] = fields
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

// isRetryableLLMError treats auth, bad-request and cancellation as final
// and everything else as transient.
func isRetryableLLMError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Retryable()
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"unauthorized", "invalid api key", "bad request", "model not found", "status code: 400", "status code: 401", "status code: 403", "status code: 404"} {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	return true
}
