package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config configures the embeddings endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string        // default text-embedding-3-small
	Timeout time.Duration // default 30s
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible
// /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *goopenai.Client
	model     string
	dimension atomic.Int64
	logger    *zap.Logger
}

func NewOpenAIEmbedder(cfg Config, logger *zap.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIEmbedder{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.With(zap.String("component", "embedder"), zap.String("model", cfg.Model)),
	}
}

// Embed returns the vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("embeddings endpoint returned %d: %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	if dim := int64(len(vectors[0])); e.dimension.Swap(dim) != dim {
		e.logger.Debug("Embedding dimension detected", zap.Int64("dimension", dim))
	}
	return vectors, nil
}

// Dimension is the vector size seen in the last response, zero before the
// first call.
func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}
