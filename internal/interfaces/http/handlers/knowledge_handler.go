package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/knowledge"
)

// KnowledgeBase is the searchable article store.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, category entity.KnowledgeCategory, topK int) (*knowledge.SearchResponse, error)
	Add(ctx context.Context, title, content string, category entity.KnowledgeCategory) (*entity.KnowledgeEntry, error)
}

type KnowledgeHandler struct {
	kb     KnowledgeBase
	logger *zap.Logger
}

func NewKnowledgeHandler(kb KnowledgeBase, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		kb:     kb,
		logger: logger.With(zap.String("handler", "knowledge")),
	}
}

type addKnowledgeRequest struct {
	Title    string                   `json:"title" binding:"required"`
	Content  string                   `json:"content" binding:"required"`
	Category entity.KnowledgeCategory `json:"category" binding:"required"`
}

// Search handles GET /api/v1/knowledge/search?q=&category=&top_k=.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	topK, err := queryInt(c, "top_k", knowledge.DefaultTopK)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if topK > 10 {
		topK = 10
	}
	resp, err := h.kb.Search(c.Request.Context(), c.Query("q"), entity.KnowledgeCategory(c.Query("category")), topK)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Add handles POST /api/v1/knowledge.
func (h *KnowledgeHandler) Add(c *gin.Context) {
	var req addKnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.kb.Add(c.Request.Context(), req.Title, req.Content, req.Category)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       entry.ID,
		"title":    entry.Title,
		"category": entry.Category,
		"embedded": len(entry.Embedding) > 0,
	})
}
