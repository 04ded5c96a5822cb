package tool

import (
	"context"
	"fmt"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/knowledge"
	"go.uber.org/zap"
)

// KnowledgeSearcher is the part of the knowledge base the search tool needs.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, category entity.KnowledgeCategory, topK int) (*knowledge.SearchResponse, error)
}

// SupportToolDeps aggregates what the support tools touch.
type SupportToolDeps struct {
	Registry domaintool.Registry
	Logger   *zap.Logger

	Knowledge     KnowledgeSearcher
	Tickets       repository.TicketRepository
	Orders        repository.OrderRepository
	Conversations repository.ConversationRepository

	// nil = no ticket_created / agent_transfer events
	Publisher eventbus.Publisher

	// SearchCache, when set, is cleared of knowledge results whenever the
	// knowledge base reports an edit.
	SearchCache *ResultCache
}

// changeNotifier is implemented by knowledge bases that report edits.
type changeNotifier interface {
	OnChange(fn func())
}

// RegisterSupportTools registers the four customer-support tools in
// declaration order.
func RegisterSupportTools(deps SupportToolDeps) error {
	if deps.Registry == nil {
		return fmt.Errorf("tool registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Knowledge == nil || deps.Tickets == nil || deps.Orders == nil {
		return fmt.Errorf("knowledge, ticket and order stores are required")
	}

	tools := []domaintool.Tool{
		NewSearchKnowledgeTool(deps.Knowledge),
		NewCreateTicketTool(deps.Tickets, deps.Publisher, deps.Logger),
		NewOrderStatusTool(deps.Orders),
		NewTransferToAgentTool(deps.Conversations, deps.Publisher, deps.Logger),
	}

	for _, t := range tools {
		if err := deps.Registry.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}

	if n, ok := deps.Knowledge.(changeNotifier); ok && deps.SearchCache != nil {
		cache, logger := deps.SearchCache, deps.Logger
		n.OnChange(func() {
			if dropped := cache.Invalidate(SearchKnowledgeToolName); dropped > 0 {
				logger.Debug("Knowledge changed, cleared cached searches", zap.Int("entries", dropped))
			}
		})
	}

	deps.Logger.Info("Support tools registered",
		zap.Int("count", len(tools)),
	)
	return nil
}
