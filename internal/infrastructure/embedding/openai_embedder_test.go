package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingsServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
			return
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-embed" {
			t.Errorf("unexpected model %s", req.Model)
		}

		// answer in reverse order to check index mapping
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1, 0},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv := embeddingsServer(t, http.StatusOK)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "test-embed"}, nil)
	if e.Dimension() != 0 {
		t.Fatal("dimension should be unknown before the first call")
	}

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
	if e.Dimension() != 3 {
		t.Fatalf("expected dimension 3, got %d", e.Dimension())
	}

	single, err := e.Embed(context.Background(), "hello")
	if err != nil || len(single) != 3 {
		t.Fatalf("Embed: %v %v", single, err)
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	srv := embeddingsServer(t, http.StatusTooManyRequests)
	defer srv.Close()

	e := NewOpenAIEmbedder(Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "test-embed"}, nil)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a 429 response")
	}

	if got, err := e.EmbedBatch(context.Background(), nil); got != nil || err != nil {
		t.Fatalf("empty input should be a no-op, got %v %v", got, err)
	}
}
