package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"go.uber.org/zap"
)

// === fakes ===

type scriptStep struct {
	deltas []string
	resp   *LLMResponse
	err    error
	block  bool
}

type scriptedLLM struct {
	mu       sync.Mutex
	steps    []scriptStep
	repeat   *scriptStep // used once steps are exhausted
	calls    int
	requests []LLMRequest
}

func (s *scriptedLLM) Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (s *scriptedLLM) GenerateStream(ctx context.Context, req *LLMRequest, deltaCh chan<- StreamChunk) (*LLMResponse, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	snapshot := *req
	snapshot.Messages = append([]LLMMessage(nil), req.Messages...)
	s.requests = append(s.requests, snapshot)
	var st scriptStep
	switch {
	case idx < len(s.steps):
		st = s.steps[idx]
	case s.repeat != nil:
		st = *s.repeat
	default:
		st = scriptStep{resp: &LLMResponse{FinishReason: "stop"}}
	}
	s.mu.Unlock()

	if st.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for _, d := range st.deltas {
		deltaCh <- StreamChunk{DeltaText: d}
	}
	if st.err != nil {
		return nil, st.err
	}
	return st.resp, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type registryExecutor struct {
	registry *domaintool.InMemoryRegistry
}

func (r *registryExecutor) Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error) {
	t, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return t.Execute(ctx, args)
}

func (r *registryExecutor) GetDefinitions() []domaintool.Definition {
	return r.registry.List()
}

type ticketArgs struct {
	Subject  string `json:"subject" validate:"required"`
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
}

func newTestExecutor(t *testing.T, handlerCalls *int) *registryExecutor {
	t.Helper()
	reg := domaintool.NewInMemoryRegistry()
	if err := reg.Register(domaintool.NewTypedTool("create_ticket", "Create a ticket", domaintool.KindWrite,
		map[string]interface{}{"type": "object"},
		func(ctx context.Context, in ticketArgs) (*domaintool.Result, error) {
			*handlerCalls++
			return domaintool.JSONResult(map[string]interface{}{
				"success":               true,
				"estimatedResponseTime": entity.TicketPriority(in.Priority).ResponseTime(),
			})
		})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(domaintool.NewTypedTool("explode", "Panics", domaintool.KindRead, nil,
		func(ctx context.Context, in struct{}) (*domaintool.Result, error) {
			panic("kaboom")
		})); err != nil {
		t.Fatalf("register: %v", err)
	}
	return &registryExecutor{registry: reg}
}

func testLoopConfig() ChatLoopConfig {
	cfg := DefaultChatLoopConfig()
	cfg.Model = "test-model"
	cfg.RetryBaseWait = time.Millisecond
	return cfg
}

func collect(t *testing.T, ch <-chan entity.ChatEvent) []entity.ChatEvent {
	t.Helper()
	var events []entity.ChatEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
			return nil
		}
	}
}

func eventTypes(events []entity.ChatEvent) string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, string(ev.Type))
	}
	return strings.Join(types, ",")
}

func toolCallStep(calls ...entity.ToolCallInfo) scriptStep {
	return scriptStep{resp: &LLMResponse{ToolCalls: calls, FinishReason: ProviderFinishToolCalls, ModelUsed: "test-model"}}
}

// === tests ===

func TestChatLoop_TextOnly(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{{
		deltas: []string{"Hel", "lo"},
		resp:   &LLMResponse{Content: "Hello", FinishReason: "stop", Usage: entity.Usage{TotalTokens: 7}},
	}}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "system prompt", []LLMMessage{{Role: "user", Content: "hi"}})
	events := collect(t, ch)

	if got := eventTypes(events); got != "text-delta,text-delta,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	last := events[len(events)-1]
	if last.Finish.Reason != entity.FinishStop || last.Finish.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected finish %+v", last.Finish)
	}
	if result.Content != "Hello" || result.FinishReason != entity.FinishStop {
		t.Fatalf("unexpected result %+v", result)
	}
	if llm.requests[0].Messages[0].Role != "system" || llm.requests[0].Messages[0].Content != "system prompt" {
		t.Fatal("system prompt must lead the request")
	}
	if len(llm.requests[0].Tools) != 2 {
		t.Fatalf("expected tool declarations, got %d", len(llm.requests[0].Tools))
	}
}

func TestChatLoop_ToolRoundTrip(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(entity.ToolCallInfo{ID: "call_1", Name: "create_ticket", Arguments: map[string]interface{}{
			"subject": "Broken", "priority": "urgent",
		}}),
		{deltas: []string{"Ticket created."}, resp: &LLMResponse{Content: "Ticket created.", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", []LLMMessage{{Role: "user", Content: "my headphones broke"}})
	events := collect(t, ch)

	if got := eventTypes(events); got != "tool-call,tool-result,text-delta,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls)
	}
	toolResult := events[1].ToolCall
	if !toolResult.Success || !strings.Contains(toolResult.Output, `"estimatedResponseTime":"1 hour"`) {
		t.Fatalf("unexpected tool result %+v", toolResult)
	}

	second := llm.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("expected user, assistant, tool messages; got %d", len(second))
	}
	if second[1].Role != "assistant" || len(second[1].ToolCalls) != 1 {
		t.Fatalf("expected assistant tool call message, got %+v", second[1])
	}
	if second[2].Role != "tool" || second[2].ToolCallID != "call_1" || second[2].Name != "create_ticket" {
		t.Fatalf("expected tool result message, got %+v", second[2])
	}

	if result.ToolRoundTrips != 1 || result.Steps != 2 {
		t.Fatalf("unexpected counters %+v", result)
	}
	if len(result.Invocations) != 1 || result.Invocations[0].Status != entity.ToolSucceeded {
		t.Fatalf("unexpected invocations %+v", result.Invocations)
	}
}

func TestChatLoop_ToolResultsKeepCallOrder(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(
			entity.ToolCallInfo{ID: "a", Name: "create_ticket", Arguments: map[string]interface{}{"subject": "one", "priority": "low"}},
			entity.ToolCallInfo{ID: "b", Name: "create_ticket", Arguments: map[string]interface{}{"subject": "two", "priority": "high"}},
		),
		{resp: &LLMResponse{Content: "ok", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	_, ch := loop.Run(context.Background(), "", nil)
	collect(t, ch)

	msgs := llm.requests[1].Messages
	if msgs[1].ToolCallID != "a" || msgs[2].ToolCallID != "b" {
		t.Fatalf("tool results out of order: %s, %s", msgs[1].ToolCallID, msgs[2].ToolCallID)
	}
	if !strings.Contains(msgs[2].Content, "4 hours") {
		t.Fatalf("expected high priority response time, got %s", msgs[2].Content)
	}
}

func TestChatLoop_InvalidInputIsRejectedNotFatal(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(entity.ToolCallInfo{ID: "call_1", Name: "create_ticket", Arguments: map[string]interface{}{
			"subject": "Broken", "priority": "critical",
		}}),
		{resp: &LLMResponse{Content: "Sorry, let me fix that.", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if calls != 0 {
		t.Fatal("handler must not run with invalid input")
	}
	toolResult := events[1].ToolCall
	if toolResult.Success || !strings.Contains(toolResult.Output, `"error":"invalid_input"`) {
		t.Fatalf("expected structured validation error, got %+v", toolResult)
	}
	if result.Invocations[0].Status != entity.ToolRejected {
		t.Fatalf("expected rejected invocation, got %s", result.Invocations[0].Status)
	}
	if result.FinishReason != entity.FinishStop {
		t.Fatalf("turn should finish normally, got %s", result.FinishReason)
	}
}

func TestChatLoop_MalformedArgumentsAreRejected(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(entity.ToolCallInfo{
			ID: "call_1", Name: "create_ticket",
			Arguments:          map[string]interface{}{},
			MalformedArguments: `{"subject": "Broken",`,
		}),
		{resp: &LLMResponse{Content: "Let me retry.", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if calls != 0 {
		t.Fatal("handler must not run with malformed arguments")
	}
	out := events[1].ToolCall.Output
	if !strings.Contains(out, `"error":"invalid_input"`) || !strings.Contains(out, "arguments must be of type object") {
		t.Fatalf("expected arguments type error, got %s", out)
	}
	if strings.Contains(out, "is required") {
		t.Fatalf("malformed arguments must not be reported as missing fields: %s", out)
	}
	if result.Invocations[0].Status != entity.ToolRejected || result.FinishReason != entity.FinishStop {
		t.Fatalf("unexpected result %+v", result)
	}
	if llm.callCount() != 2 {
		t.Fatalf("model should get a chance to correct itself, calls = %d", llm.callCount())
	}
}

func TestChatLoop_UnknownAndPanickingToolsBecomeResults(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(
			entity.ToolCallInfo{ID: "1", Name: "no_such_tool"},
			entity.ToolCallInfo{ID: "2", Name: "explode"},
		),
		{resp: &LLMResponse{Content: "done", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	collect(t, ch)

	if len(result.Invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(result.Invocations))
	}
	for _, inv := range result.Invocations {
		if inv.Status != entity.ToolFailed || !strings.Contains(inv.Output, "tool_failed") {
			t.Fatalf("expected failed invocation, got %+v", inv)
		}
	}
	if result.FinishReason != entity.FinishStop {
		t.Fatalf("expected stop, got %s", result.FinishReason)
	}
}

func TestChatLoop_RoundTripCapFinishesWithLength(t *testing.T) {
	step := toolCallStep(entity.ToolCallInfo{ID: "x", Name: "create_ticket", Arguments: map[string]interface{}{
		"subject": "loop", "priority": "low",
	}})
	llm := &scriptedLLM{repeat: &step}
	calls := 0
	cfg := testLoopConfig()
	cfg.MaxToolRoundTrips = 2
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), cfg, zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if calls != 2 {
		t.Fatalf("expected 2 dispatched calls, got %d", calls)
	}
	if llm.callCount() != 3 {
		t.Fatalf("expected 3 model calls, got %d", llm.callCount())
	}
	last := events[len(events)-1]
	if last.Type != entity.EventFinish || last.Finish.Reason != entity.FinishLength {
		t.Fatalf("expected finish=length, got %+v", last)
	}
	if result.ToolRoundTrips != 2 {
		t.Fatalf("expected 2 round trips, got %d", result.ToolRoundTrips)
	}
}

func TestChatLoop_ToolCallsReasonWithoutCalls(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{{resp: &LLMResponse{FinishReason: ProviderFinishToolCalls}}}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	collect(t, ch)
	if result.FinishReason != entity.FinishToolCalls {
		t.Fatalf("expected tool-calls, got %s", result.FinishReason)
	}
}

func TestChatLoop_NonRetryableErrorEndsTurn(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{{err: NewLLMErrorFromStatus("openai", 401, errors.New("bad key"))}}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if got := eventTypes(events); got != "error,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[1].Finish.Reason != entity.FinishError {
		t.Fatalf("expected finish=error, got %s", events[1].Finish.Reason)
	}
	if result.Err == nil || llm.callCount() != 1 {
		t.Fatalf("expected a single failed call, calls=%d err=%v", llm.callCount(), result.Err)
	}
}

func TestChatLoop_RetriesTransientErrorBeforeText(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{err: NewLLMErrorFromStatus("openai", 503, errors.New("overloaded"))},
		{deltas: []string{"hi"}, resp: &LLMResponse{Content: "hi", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if got := eventTypes(events); got != "text-delta,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if llm.callCount() != 2 || result.FinishReason != entity.FinishStop {
		t.Fatalf("expected retry then success, calls=%d reason=%s", llm.callCount(), result.FinishReason)
	}
}

func TestChatLoop_NoRetryAfterTextStreamed(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		{deltas: []string{"partial"}, err: NewLLMErrorFromStatus("openai", 502, errors.New("stream reset"))},
		{resp: &LLMResponse{Content: "should not be used", FinishReason: "stop"}},
	}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	result, ch := loop.Run(context.Background(), "", nil)
	events := collect(t, ch)

	if got := eventTypes(events); got != "text-delta,error,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if llm.callCount() != 1 || result.FinishReason != entity.FinishError {
		t.Fatalf("expected no retry, calls=%d reason=%s", llm.callCount(), result.FinishReason)
	}
}

func TestChatLoop_Cancellation(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{{block: true}}}
	calls := 0
	loop := NewChatLoop(llm, newTestExecutor(t, &calls), testLoopConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	result, ch := loop.Run(ctx, "", nil)
	time.AfterFunc(20*time.Millisecond, cancel)
	events := collect(t, ch)

	if got := eventTypes(events); got != "error,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[0].Error != "request cancelled" {
		t.Fatalf("unexpected error text %q", events[0].Error)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", result.Err)
	}
}

func TestChatLoop_CancellationAbortsRunningTool(t *testing.T) {
	llm := &scriptedLLM{steps: []scriptStep{
		toolCallStep(
			entity.ToolCallInfo{ID: "call_1", Name: "wait_for_agent", Arguments: map[string]interface{}{}},
			entity.ToolCallInfo{ID: "call_2", Name: "create_ticket", Arguments: map[string]interface{}{"subject": "x", "priority": "low"}},
		),
		{resp: &LLMResponse{Content: "should not run", FinishReason: "stop"}},
	}}
	calls := 0
	exec := newTestExecutor(t, &calls)

	started := make(chan struct{})
	returned := make(chan error, 1)
	if err := exec.registry.Register(domaintool.NewTypedTool("wait_for_agent", "Blocks until cancelled", domaintool.KindRead, nil,
		func(ctx context.Context, in struct{}) (*domaintool.Result, error) {
			close(started)
			<-ctx.Done()
			returned <- ctx.Err()
			return nil, ctx.Err()
		})); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := testLoopConfig()
	cfg.ToolTimeout = time.Minute
	loop := NewChatLoop(llm, exec, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	result, ch := loop.Run(ctx, "", []LLMMessage{{Role: "user", Content: "get me a human"}})
	go func() {
		<-started
		cancel()
	}()
	events := collect(t, ch)

	select {
	case err := <-returned:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("handler saw %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("tool handler did not return after cancellation")
	}

	if got := eventTypes(events); got != "tool-call,tool-result,error,finish" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[1].ToolCall.Success {
		t.Error("interrupted tool must not report success")
	}
	if events[3].Finish.Reason != entity.FinishError {
		t.Errorf("finish reason = %s", events[3].Finish.Reason)
	}
	if n := llm.callCount(); n != 1 {
		t.Errorf("model called %d times after cancellation, want 1", n)
	}
	if calls != 0 {
		t.Error("queued tool call must not run after cancellation")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", result.Err)
	}
}

func TestIsRetryableLLMError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewLLMErrorFromStatus("p", 429, errors.New("slow down")), true},
		{NewLLMErrorFromStatus("p", 500, errors.New("oops")), true},
		{NewLLMErrorFromStatus("p", 0, errors.New("connection reset")), true},
		{NewLLMErrorFromStatus("p", 401, errors.New("no")), false},
		{NewLLMErrorFromStatus("p", 400, errors.New("no")), false},
		{fmt.Errorf("wrapped: %w", context.Canceled), false},
		{errors.New("Unauthorized"), false},
		{errors.New("i/o timeout"), true},
	}
	for _, tt := range tests {
		if got := isRetryableLLMError(tt.err); got != tt.want {
			t.Errorf("isRetryableLLMError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
