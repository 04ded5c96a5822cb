package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	llm "github.com/KH-Pua/ai-chatbot/internal/infrastructure/llm"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func init() {
	llm.RegisterFactory("openai", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	name   string
	apiKey string
	models []string
	client *goopenai.Client
	logger *zap.Logger
}

func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Organization != "" {
		clientCfg.OrgID = cfg.Organization
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 15 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
		},
	}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &Provider{
		name:   name,
		apiKey: cfg.APIKey,
		models: cfg.Models,
		client: goopenai.NewClientWithConfig(clientCfg),
		logger: logger.With(zap.String("provider", name), zap.String("type", "openai")),
	}
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string     { return p.name }
func (p *Provider) Models() []string { return p.models }

func (p *Provider) SupportsModel(model string) bool {
	if len(p.models) == 0 || model == "" {
		return true
	}
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, service.NewLLMErrorFromStatus(p.name, 0, errors.New("response has no choices"))
	}

	choice := resp.Choices[0]
	out := &service.LLMResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		ModelUsed:    resp.Model,
		Usage: entity.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, p.toolCallInfo(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return out, nil
}

// GenerateStream forwards content deltas as they arrive and assembles tool
// call fragments by index until the stream ends.
func (p *Provider) GenerateStream(ctx context.Context, req *service.LLMRequest, deltaCh chan<- service.StreamChunk) (*service.LLMResponse, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, p.classify(err)
	}
	defer stream.Close()

	var (
		content strings.Builder
		calls   = map[int]*pendingCall{}
		out     = &service.LLMResponse{}
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.classify(err)
		}

		if chunk.Model != "" {
			out.ModelUsed = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage = entity.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			select {
			case deltaCh <- service.StreamChunk{DeltaText: choice.Delta.Content}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		for i, tc := range choice.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := calls[idx]
			if !ok {
				pc = &pendingCall{}
				calls[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			out.FinishReason = string(choice.FinishReason)
		}
	}

	out.Content = content.String()
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		pc := calls[idx]
		if pc.name == "" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, p.toolCallInfo(pc.id, pc.name, pc.args.String()))
	}
	if out.FinishReason == "" {
		out.FinishReason = service.ProviderFinishStop
	}
	return out, nil
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func (p *Provider) buildRequest(req *service.LLMRequest, stream bool) goopenai.ChatCompletionRequest {
	apiReq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}
	if stream {
		apiReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}

	for _, m := range req.Messages {
		msg := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == string(entity.RoleTool) {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil || tc.Arguments == nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		apiReq.Messages = append(apiReq.Messages, msg)
	}

	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return apiReq
}

// toolCallInfo decodes streamed arguments. Arguments that are not a JSON
// object are kept raw in MalformedArguments.
func (p *Provider) toolCallInfo(id, name, rawArgs string) entity.ToolCallInfo {
	args := map[string]interface{}{}
	malformed := ""
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			p.logger.Warn("Tool call arguments are not a JSON object",
				zap.String("tool", name),
				zap.String("arguments", rawArgs),
				zap.Error(err),
			)
			args = map[string]interface{}{}
			malformed = rawArgs
		}
	}
	if id == "" {
		id = fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
	}
	return entity.ToolCallInfo{ID: id, Name: name, Arguments: args, MalformedArguments: malformed}
}

func (p *Provider) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return service.NewLLMErrorFromStatus(p.name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return service.NewLLMErrorFromStatus(p.name, reqErr.HTTPStatusCode, err)
	}
	return service.NewLLMErrorFromStatus(p.name, 0, err)
}
