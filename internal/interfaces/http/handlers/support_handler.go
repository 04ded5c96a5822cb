package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// SupportHandler serves tickets, orders and feedback.
type SupportHandler struct {
	support *usecase.SupportUseCase
	logger  *zap.Logger
}

func NewSupportHandler(support *usecase.SupportUseCase, logger *zap.Logger) *SupportHandler {
	return &SupportHandler{
		support: support,
		logger:  logger.With(zap.String("handler", "support")),
	}
}

type createTicketRequest struct {
	ConversationID string                `json:"conversation_id"`
	CustomerEmail  string                `json:"customer_email" binding:"required,email"`
	Subject        string                `json:"subject" binding:"required"`
	Description    string                `json:"description" binding:"required"`
	Category       entity.TicketCategory `json:"category"`
	Priority       entity.TicketPriority `json:"priority"`
}

type updateTicketRequest struct {
	Status     entity.TicketStatus `json:"status" binding:"required"`
	Resolution string              `json:"resolution"`
}

type feedbackRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	MessageID      string `json:"message_id"`
	Rating         int    `json:"rating" binding:"required,min=1,max=5"`
	Helpful        *bool  `json:"helpful"`
	Comment        string `json:"comment" binding:"max=2000"`
}

// ListTickets handles GET /api/v1/tickets?email=&limit=.
func (h *SupportHandler) ListTickets(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	tickets, err := h.support.ListTickets(c.Request.Context(), c.Query("email"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

// CreateTicket handles POST /api/v1/tickets.
func (h *SupportHandler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ticket, err := h.support.CreateTicket(c.Request.Context(), usecase.CreateTicketInput{
		ConversationID: req.ConversationID,
		CustomerEmail:  req.CustomerEmail,
		Subject:        req.Subject,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ticket":                  ticket,
		"estimated_response_time": ticket.Priority.ResponseTime(),
	})
}

// GetTicket handles GET /api/v1/tickets/:id.
func (h *SupportHandler) GetTicket(c *gin.Context) {
	ticket, err := h.support.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// UpdateTicket handles PATCH /api/v1/tickets/:id.
func (h *SupportHandler) UpdateTicket(c *gin.Context) {
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ticket, err := h.support.UpdateTicketStatus(c.Request.Context(), c.Param("id"), req.Status, req.Resolution)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ListOrders handles GET /api/v1/orders?email=.
func (h *SupportHandler) ListOrders(c *gin.Context) {
	orders, err := h.support.ListOrders(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// SubmitFeedback handles POST /api/v1/feedback.
func (h *SupportHandler) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f := &entity.Feedback{
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
		Rating:         req.Rating,
		Helpful:        req.Helpful,
		Comment:        req.Comment,
	}
	if err := h.support.SubmitFeedback(c.Request.Context(), f); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}
