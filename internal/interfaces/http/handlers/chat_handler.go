package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/ratelimit"
)

// ChatRunner starts chat turns.
type ChatRunner interface {
	Execute(ctx context.Context, in usecase.ChatTurnInput) (*usecase.ChatTurn, error)
}

// ToolLister exposes the declared tools.
type ToolLister interface {
	GetDefinitions() []domaintool.Definition
}

// Suggestions is the greeting shown before the first message.
type Suggestions interface {
	WelcomeMessage() string
	SuggestedQuestions() []string
}

// StreamObserver counts open event streams.
type StreamObserver interface {
	StreamStarted()
	StreamFinished()
}

// ChatHandler streams chat turns over SSE.
type ChatHandler struct {
	chat        ChatRunner
	gate        *ratelimit.Gate
	suggestions Suggestions
	tools       ToolLister
	streams     StreamObserver
	logger      *zap.Logger
}

func NewChatHandler(chat ChatRunner, gate *ratelimit.Gate, suggestions Suggestions, tools ToolLister, streams StreamObserver, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		gate:        gate,
		suggestions: suggestions,
		tools:       tools,
		streams:     streams,
		logger:      logger.With(zap.String("handler", "chat")),
	}
}

// ChatRequest is the JSON body of POST /api/v1/chat.
type ChatRequest struct {
	Messages       []usecase.InputMessage `json:"messages" binding:"required,min=1"`
	ConversationID string                 `json:"conversationId"`
	CustomerEmail  string                 `json:"customerEmail"`
}

// Chat handles POST /api/v1/chat. Every turn event is written as
// "event: <type>" followed by its JSON.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	decision := h.gate.Allow(c.Request.Context(), ratelimit.ClientKey(req.CustomerEmail, c.ClientIP()))
	if decision.Limit > 0 {
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "Too many requests. Please wait a moment before trying again.",
			"remaining": 0,
			"reset_at":  decision.ResetAt,
		})
		return
	}

	turn, err := h.chat.Execute(c.Request.Context(), usecase.ChatTurnInput{
		ConversationID: req.ConversationID,
		CustomerEmail:  req.CustomerEmail,
		Messages:       req.Messages,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if h.streams != nil {
		h.streams.StreamStarted()
		defer h.streams.StreamFinished()
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Header().Set("X-Conversation-ID", turn.ConversationID)
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for ev := range turn.Events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("Failed to encode chat event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// GetSuggestions handles GET /api/v1/chat/suggestions.
func (h *ChatHandler) GetSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"welcome_message": h.suggestions.WelcomeMessage(),
		"suggestions":     h.suggestions.SuggestedQuestions(),
	})
}

// GetTools handles GET /api/v1/chat/tools.
func (h *ChatHandler) GetTools(c *gin.Context) {
	defs := h.tools.GetDefinitions()
	c.JSON(http.StatusOK, gin.H{"tools": defs, "count": len(defs)})
}
