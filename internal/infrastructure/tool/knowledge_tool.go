package tool

import (
	"context"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/knowledge"
)

const SearchKnowledgeToolName = "search_knowledge_base"

type SearchKnowledgeInput struct {
	Query    string `json:"query" validate:"required,notblank"`
	Category string `json:"category,omitempty" validate:"omitempty,oneof=faq products policies billing technical"`
	TopK     int    `json:"topK,omitempty" validate:"omitempty,min=1,max=10"`
}

type knowledgeHit struct {
	Title     string                   `json:"title"`
	Content   string                   `json:"content"`
	Category  entity.KnowledgeCategory `json:"category"`
	Relevance float64                  `json:"relevance"`
}

type searchKnowledgeOutput struct {
	Results []knowledgeHit `json:"results"`
	Mode    string         `json:"mode"`
}

func NewSearchKnowledgeTool(kb KnowledgeSearcher) domaintool.Tool {
	return domaintool.NewTypedTool(
		SearchKnowledgeToolName,
		"Search the company knowledge base for information about products, policies, and procedures",
		domaintool.KindSearch,
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"faq", "products", "policies", "billing", "technical"},
					"description": "Restrict the search to one category",
				},
				"topK": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     10,
					"description": "Maximum number of articles to return (default 3)",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, in SearchKnowledgeInput) (*domaintool.Result, error) {
			topK := in.TopK
			if topK == 0 {
				topK = knowledge.DefaultTopK
			}
			resp, err := kb.Search(ctx, in.Query, entity.KnowledgeCategory(in.Category), topK)
			if err != nil {
				return nil, err
			}

			out := searchKnowledgeOutput{
				Results: make([]knowledgeHit, 0, len(resp.Results)),
				Mode:    resp.Mode,
			}
			for _, r := range resp.Results {
				out.Results = append(out.Results, knowledgeHit{
					Title:     r.Title,
					Content:   r.Content,
					Category:  r.Category,
					Relevance: r.Relevance,
				})
			}
			return domaintool.JSONResult(out)
		},
	)
}
