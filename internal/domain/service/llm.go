package service

import (
	"context"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
)

// LLMClient is how the chat loop talks to a language model.
type LLMClient interface {
	// Generate returns a complete, non-streamed response.
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)

	// GenerateStream sends text deltas to deltaCh while the response is
	// produced and returns the accumulated response. The caller owns deltaCh
	// and closes it after GenerateStream returns.
	GenerateStream(ctx context.Context, req *LLMRequest, deltaCh chan<- StreamChunk) (*LLMResponse, error)
}

// StreamChunk is a single delta from a streaming response.
type StreamChunk struct {
	DeltaText    string
	FinishReason string // provider reason on the last chunk, empty before
}

// Provider finish reasons as reported in LLMResponse.FinishReason.
const (
	ProviderFinishStop      = "stop"
	ProviderFinishLength    = "length"
	ProviderFinishToolCalls = "tool_calls"
)

// LLMRequest is one model call.
type LLMRequest struct {
	Messages    []LLMMessage            `json:"messages"`
	Tools       []domaintool.Definition `json:"tools,omitempty"`
	Model       string                  `json:"model"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float64                 `json:"temperature"`
}

// LLMMessage is a message in provider-neutral form.
type LLMMessage struct {
	Role       string                `json:"role"` // system, user, assistant, tool
	Content    string                `json:"content"`
	ToolCalls  []entity.ToolCallInfo `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
	Name       string                `json:"name,omitempty"`
}

// LLMResponse is the accumulated result of one model call.
type LLMResponse struct {
	Content      string                `json:"content"`
	ToolCalls    []entity.ToolCallInfo `json:"tool_calls,omitempty"`
	FinishReason string                `json:"finish_reason"`
	ModelUsed    string                `json:"model_used"`
	Usage        entity.Usage          `json:"usage"`
}
