package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// ConversationHandler serves stored conversations.
type ConversationHandler struct {
	conversations *usecase.ConversationUseCase
	logger        *zap.Logger
}

func NewConversationHandler(conversations *usecase.ConversationUseCase, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger.With(zap.String("handler", "conversation")),
	}
}

// MessageDTO is a stored message on the wire.
type MessageDTO struct {
	ID        string                  `json:"id"`
	Role      entity.MessageRole      `json:"role"`
	Content   string                  `json:"content"`
	ToolCalls []entity.ToolInvocation `json:"tool_calls,omitempty"`
	Tokens    int                     `json:"tokens,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// ConversationDTO is a conversation on the wire.
type ConversationDTO struct {
	ID            string                    `json:"id"`
	CustomerEmail string                    `json:"customer_email,omitempty"`
	Status        entity.ConversationStatus `json:"status"`
	Sentiment     entity.Sentiment          `json:"sentiment"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func toMessageDTO(m *entity.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID(),
		Role:      m.Role(),
		Content:   m.Content(),
		ToolCalls: m.ToolCalls(),
		Tokens:    m.Tokens(),
		CreatedAt: m.CreatedAt(),
	}
}

func toConversationDTO(c *entity.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:            c.ID(),
		CustomerEmail: c.CustomerEmail(),
		Status:        c.Status(),
		Sentiment:     c.Sentiment(),
		CreatedAt:     c.CreatedAt(),
		UpdatedAt:     c.UpdatedAt(),
	}
}

// GetMessages handles GET /api/v1/conversations/:id/messages?limit=&offset=.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	id := c.Param("id")
	msgs, total, err := h.conversations.Messages(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toMessageDTO(m))
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"messages":        items,
		"count":           len(items),
		"total":           total,
	})
}

// GetTranscript handles GET /api/v1/conversations/:id/transcript. With
// ?format=markdown the raw markdown is returned instead of HTML.
func (h *ConversationHandler) GetTranscript(c *gin.Context) {
	tr, err := h.conversations.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	switch c.Query("format") {
	case "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(tr.Markdown))
	case "json":
		c.JSON(http.StatusOK, tr)
	default:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(tr.HTML))
	}
}

// UpdateStatus handles PATCH /api/v1/conversations/:id/status.
func (h *ConversationHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status entity.ConversationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	conv, err := h.conversations.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toConversationDTO(conv))
}

// ListConversations handles GET /api/v1/conversations?email=&limit=.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	convs, err := h.conversations.ListByEmail(c.Request.Context(), c.Query("email"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items := make([]ConversationDTO, 0, len(convs))
	for _, conv := range convs {
		items = append(items, toConversationDTO(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items, "count": len(items)})
}
