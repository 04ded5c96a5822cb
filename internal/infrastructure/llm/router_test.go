package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name   string
	models []string
	deltas []string
	err    error
	calls  int
}

func (f *fakeProvider) Name() string                         { return f.name }
func (f *fakeProvider) Models() []string                     { return f.models }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) SupportsModel(model string) bool {
	if len(f.models) == 0 {
		return true
	}
	for _, m := range f.models {
		if m == model {
			return true
		}
	}
	return false
}

func (f *fakeProvider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.LLMResponse{Content: f.name, FinishReason: "stop"}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req *service.LLMRequest, deltaCh chan<- service.StreamChunk) (*service.LLMResponse, error) {
	f.calls++
	for _, d := range f.deltas {
		deltaCh <- service.StreamChunk{DeltaText: d}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.LLMResponse{Content: strings.Join(f.deltas, ""), FinishReason: "stop"}, nil
}

func drain(ch chan service.StreamChunk) []string {
	close(ch)
	var out []string
	for c := range ch {
		out = append(out, c.DeltaText)
	}
	return out
}

func TestRouter_FailsOverBeforeOutput(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &fakeProvider{name: "primary", err: service.NewLLMErrorFromStatus("primary", 503, errors.New("down"))}
	backup := &fakeProvider{name: "backup", deltas: []string{"hi"}}
	r.AddProvider(primary)
	r.AddProvider(backup)

	deltaCh := make(chan service.StreamChunk, 8)
	resp, err := r.GenerateStream(context.Background(), &service.LLMRequest{Model: "m"}, deltaCh)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if resp.Content != "hi" || resp.ModelUsed != "m" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := drain(deltaCh); len(got) != 1 || got[0] != "hi" {
		t.Fatalf("unexpected deltas %v", got)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("expected one call each, got %d/%d", primary.calls, backup.calls)
	}
}

func TestRouter_NoFailoverAfterPartialStream(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &fakeProvider{name: "primary", deltas: []string{"Hal"}, err: errors.New("connection reset")}
	backup := &fakeProvider{name: "backup", deltas: []string{"never"}}
	r.AddProvider(primary)
	r.AddProvider(backup)

	deltaCh := make(chan service.StreamChunk, 8)
	if _, err := r.GenerateStream(context.Background(), &service.LLMRequest{}, deltaCh); err == nil {
		t.Fatal("expected the mid-stream error to surface")
	}
	if backup.calls != 0 {
		t.Fatal("backup must not be called once text was streamed")
	}
	if got := drain(deltaCh); len(got) != 1 || got[0] != "Hal" {
		t.Fatalf("unexpected deltas %v", got)
	}
}

func TestRouter_SkipsUnsupportedModelAndOpenCircuit(t *testing.T) {
	r := NewRouter(zap.NewNop())
	other := &fakeProvider{name: "other", models: []string{"x"}}
	flaky := &fakeProvider{name: "flaky", err: errors.New("boom")}
	good := &fakeProvider{name: "good"}
	r.AddProvider(other)
	r.AddProvider(flaky)
	r.AddProvider(good)

	for i := 0; i < 5; i++ {
		if _, err := r.Generate(context.Background(), &service.LLMRequest{Model: "m"}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if other.calls != 0 {
		t.Fatal("provider without the model must be skipped")
	}

	resp, err := r.Generate(context.Background(), &service.LLMRequest{Model: "m"})
	if err != nil || resp.Content != "good" {
		t.Fatalf("unexpected %v %v", resp, err)
	}
	if flaky.calls != 5 {
		t.Fatalf("open circuit should have stopped calls at 5, got %d", flaky.calls)
	}

	statuses := r.ListProviders(context.Background())
	if len(statuses) != 3 || statuses[1].CircuitState != "open" || statuses[1].FailureCount != 5 {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestRouter_BadRequestDoesNotTripCircuit(t *testing.T) {
	r := NewRouter(zap.NewNop())
	p := &fakeProvider{name: "p", err: service.NewLLMErrorFromStatus("p", 400, errors.New("bad"))}
	r.AddProvider(p)

	for i := 0; i < 6; i++ {
		r.Generate(context.Background(), &service.LLMRequest{})
	}
	if p.calls != 6 {
		t.Fatalf("expected every call to reach the provider, got %d", p.calls)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	_, err := r.Generate(context.Background(), &service.LLMRequest{Model: "m"})
	var llmErr *service.LLMError
	if !errors.As(err, &llmErr) || !llmErr.Retryable() {
		t.Fatalf("expected a transient LLMError, got %v", err)
	}
}

func TestRouter_Observer(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.AddProvider(&fakeProvider{name: "p"})

	var seen []string
	r.SetObserver(func(provider string, latency time.Duration, err error) {
		seen = append(seen, provider)
	})
	r.Generate(context.Background(), &service.LLMRequest{})
	if len(seen) != 1 || seen[0] != "p" {
		t.Fatalf("unexpected observations %v", seen)
	}
}

func TestCreateProvider_UnknownType(t *testing.T) {
	if _, err := CreateProvider(ProviderConfig{Type: "carrier-pigeon"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider type")
	}
}
