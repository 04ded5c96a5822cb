package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/ratelimit"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
	"github.com/KH-Pua/ai-chatbot/pkg/safego"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 512 * 1024
)

type MessageType string

const (
	MessageTypeChat        MessageType = "chat"
	MessageTypeEvent       MessageType = "event"
	MessageTypeRateLimited MessageType = "rate_limited"
	MessageTypeError       MessageType = "error"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
)

// WSMessage is the frame exchanged in both directions. Clients send chat
// frames with either Content or Messages; the server answers with one
// event frame per chat event.
type WSMessage struct {
	Type           MessageType            `json:"type"`
	ID             string                 `json:"id,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	CustomerEmail  string                 `json:"customer_email,omitempty"`
	Content        string                 `json:"content,omitempty"`
	Messages       []usecase.InputMessage `json:"messages,omitempty"`
	Event          *entity.ChatEvent      `json:"event,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ResetAt        *time.Time             `json:"reset_at,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// ChatRunner starts chat turns.
type ChatRunner interface {
	Execute(ctx context.Context, in usecase.ChatTurnInput) (*usecase.ChatTurn, error)
}

// Client is one websocket connection. It runs at most one turn at a time.
type Client struct {
	ID     string
	IP     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	hub    *Hub
	logger *zap.Logger

	mu             sync.RWMutex
	conversationID string
}

// Hub tracks connected clients.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	logger     *zap.Logger
	mu         sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		logger:     logger.With(zap.String("component", "ws-hub")),
	}
}

// Run serves registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Client connected", zap.String("client_id", client.ID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client disconnected", zap.String("client_id", client.ID))
		}
	}
}

// SendToConversation pushes msg to every client following the conversation.
func (h *Hub) SendToConversation(conversationID string, msg *WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.ConversationID() == conversationID {
			client.SendMessage(msg)
		}
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler upgrades /ws requests and runs chat turns for them.
type Handler struct {
	hub      *Hub
	chat     ChatRunner
	gate     *ratelimit.Gate
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler accepts any origin in allowedOrigins; "*" or an empty list
// accepts all.
func NewHandler(hub *Hub, chat ChatRunner, gate *ratelimit.Gate, allowedOrigins []string, logger *zap.Logger) *Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &Handler{
		hub:  hub,
		chat: chat,
		gate: gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		logger: logger.With(zap.String("handler", "websocket")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:             uuid.NewString(),
		IP:             ip,
		conn:           conn,
		send:           make(chan []byte, 256),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		hub:            h.hub,
		logger:         h.logger,
		conversationID: r.URL.Query().Get("conversation_id"),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.stopped:
		cancel()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h.handleMessage)
}

func (h *Handler) handleMessage(c *Client, msg *WSMessage) {
	if msg.Type != MessageTypeChat {
		c.SendMessage(&WSMessage{Type: MessageTypeError, ID: msg.ID, Error: "unsupported message type: " + string(msg.Type)})
		return
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.SendMessage(&WSMessage{Type: MessageTypeError, ID: msg.ID, Error: "a turn is already running on this connection"})
		return
	}

	decision := h.gate.Allow(c.ctx, ratelimit.ClientKey(msg.CustomerEmail, c.IP))
	if !decision.Allowed {
		c.busy.Store(false)
		resetAt := decision.ResetAt
		c.SendMessage(&WSMessage{
			Type:    MessageTypeRateLimited,
			ID:      msg.ID,
			Error:   "Too many requests. Please wait a moment before trying again.",
			ResetAt: &resetAt,
		})
		return
	}

	messages := msg.Messages
	if len(messages) == 0 && msg.Content != "" {
		messages = []usecase.InputMessage{{Role: string(entity.RoleUser), Content: msg.Content}}
	}
	convID := msg.ConversationID
	if convID == "" {
		convID = c.ConversationID()
	}

	safego.Go(h.logger, "ws-chat-turn", func() {
		defer c.busy.Store(false)

		turn, err := h.chat.Execute(c.ctx, usecase.ChatTurnInput{
			ConversationID: convID,
			CustomerEmail:  msg.CustomerEmail,
			Messages:       messages,
		})
		if err != nil {
			c.SendMessage(&WSMessage{Type: MessageTypeError, ID: msg.ID, Error: errorMessage(err)})
			return
		}
		c.setConversationID(turn.ConversationID)

		for ev := range turn.Events {
			ev := ev
			h.hub.SendToConversation(turn.ConversationID, &WSMessage{
				Type:           MessageTypeEvent,
				ID:             msg.ID,
				ConversationID: turn.ConversationID,
				Event:          &ev,
			})
		}
	})
}

// errorMessage hides internal failures from the client.
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && apperrors.HTTPStatus(err) < http.StatusInternalServerError {
		return appErr.Message
	}
	return "internal server error"
}

func (c *Client) readPump(onMessage func(*Client, *WSMessage)) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
			c.close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendMessage(&WSMessage{Type: MessageTypeError, Error: "malformed message"})
			continue
		}
		if msg.Type == MessageTypePing {
			c.SendMessage(&WSMessage{Type: MessageTypePong, ID: msg.ID})
			continue
		}
		onMessage(c, &msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg. Messages to a closed client are dropped; a full
// queue blocks until the writer catches up or the client goes away.
func (c *Client) SendMessage(msg *WSMessage) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) ConversationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversationID
}

func (c *Client) setConversationID(id string) {
	c.mu.Lock()
	c.conversationID = id
	c.mu.Unlock()
}

// close cancels the client's running turn and stops its writer.
func (c *Client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
	})
}
