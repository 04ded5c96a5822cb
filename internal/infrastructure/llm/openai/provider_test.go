package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	llm "github.com/KH-Pua/ai-chatbot/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func sseServer(t *testing.T, chunks []string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newTestProvider(url string) *Provider {
	return New(llm.ProviderConfig{Name: "test", BaseURL: url + "/v1", APIKey: "test-key"}, zap.NewNop())
}

func collectDeltas(ch chan service.StreamChunk) string {
	close(ch)
	var b strings.Builder
	for c := range ch {
		b.WriteString(c.DeltaText)
	}
	return b.String()
}

func TestGenerateStream_Text(t *testing.T) {
	var body map[string]interface{}
	srv := sseServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Our return "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"window is 30 days."},"finish_reason":"stop"}]}`,
		`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`,
	}, &body)
	defer srv.Close()

	p := newTestProvider(srv.URL)
	deltaCh := make(chan service.StreamChunk, 16)
	resp, err := p.GenerateStream(context.Background(), &service.LLMRequest{
		Model:     "gpt-4o-mini",
		MaxTokens: 1000,
		Messages: []service.LLMMessage{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "what is the return policy?"},
		},
		Tools: []domaintool.Definition{{Name: "search_knowledge_base", Description: "search", Parameters: map[string]interface{}{"type": "object"}}},
	}, deltaCh)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	if got := collectDeltas(deltaCh); got != "Our return window is 30 days." {
		t.Fatalf("unexpected deltas %q", got)
	}
	if resp.Content != "Our return window is 30 days." || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Usage.TotalTokens != 20 || resp.ModelUsed != "gpt-4o-mini" {
		t.Fatalf("unexpected usage/model %+v", resp)
	}

	if body["stream"] != true {
		t.Fatal("expected a streaming request")
	}
	tools, _ := body["tools"].([]interface{})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool declaration, got %v", body["tools"])
	}
	if opts, _ := body["stream_options"].(map[string]interface{}); opts["include_usage"] != true {
		t.Fatalf("expected include_usage, got %v", body["stream_options"])
	}
}

func TestGenerateStream_ToolCallFragments(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_order_status","arguments":""}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"orderId\":\"ORD-"}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"12345\",\"email\":\"a@b.co\"}"}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"transfer_to_agent","arguments":"not json"}}]},"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer srv.Close()

	p := newTestProvider(srv.URL)
	deltaCh := make(chan service.StreamChunk, 16)
	resp, err := p.GenerateStream(context.Background(), &service.LLMRequest{Model: "m"}, deltaCh)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	collectDeltas(deltaCh)

	if resp.FinishReason != service.ProviderFinishToolCalls {
		t.Fatalf("unexpected finish reason %q", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", resp.ToolCalls)
	}
	first := resp.ToolCalls[0]
	if first.ID != "call_a" || first.Name != "get_order_status" || first.Arguments["orderId"] != "ORD-12345" || first.Arguments["email"] != "a@b.co" {
		t.Fatalf("unexpected first call %+v", first)
	}
	if second := resp.ToolCalls[1]; second.Name != "transfer_to_agent" || len(second.Arguments) != 0 || second.MalformedArguments != "not json" {
		t.Fatalf("malformed arguments should be kept raw, got %+v", second)
	}
	if first.MalformedArguments != "" {
		t.Fatalf("valid arguments flagged as malformed: %+v", first)
	}
}

func TestGenerateStream_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   service.LLMErrorKind
	}{
		{http.StatusUnauthorized, service.ErrKindAuth},
		{http.StatusBadRequest, service.ErrKindBadRequest},
		{http.StatusTooManyRequests, service.ErrKindTransient},
		{http.StatusServiceUnavailable, service.ErrKindTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			}))
			defer srv.Close()

			p := newTestProvider(srv.URL)
			deltaCh := make(chan service.StreamChunk, 1)
			_, err := p.GenerateStream(context.Background(), &service.LLMRequest{Model: "m"}, deltaCh)
			close(deltaCh)

			var llmErr *service.LLMError
			if !errors.As(err, &llmErr) {
				t.Fatalf("expected *LLMError, got %T %v", err, err)
			}
			if llmErr.Kind != tt.want || llmErr.StatusCode != tt.status {
				t.Fatalf("got kind=%s status=%d", llmErr.Kind, llmErr.StatusCode)
			}
		})
	}
}

func TestBuildRequest_ToolMessages(t *testing.T) {
	p := newTestProvider("http://unused")
	req := p.buildRequest(&service.LLMRequest{
		Model: "m",
		Messages: []service.LLMMessage{
			{Role: "assistant", ToolCalls: []entity.ToolCallInfo{{ID: "c1", Name: "create_ticket", Arguments: map[string]interface{}{"subject": "x"}}}},
			{Role: "tool", ToolCallID: "c1", Name: "create_ticket", Content: `{"success":true}`},
		},
	}, false)

	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	call := req.Messages[0].ToolCalls[0]
	if call.ID != "c1" || call.Function.Arguments != `{"subject":"x"}` {
		t.Fatalf("unexpected tool call %+v", call)
	}
	if req.Messages[1].ToolCallID != "c1" || req.Messages[1].Name != "create_ticket" {
		t.Fatalf("unexpected tool message %+v", req.Messages[1])
	}
}

func TestFactoryRegistration(t *testing.T) {
	p, err := llm.CreateProvider(llm.ProviderConfig{APIKey: "k"}, zap.NewNop())
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.Name() != "openai" || !p.IsAvailable(context.Background()) {
		t.Fatalf("unexpected provider %s", p.Name())
	}
	if !p.SupportsModel("anything") {
		t.Fatal("provider without a model list should accept any model")
	}
}
