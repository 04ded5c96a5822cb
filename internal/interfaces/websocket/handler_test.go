package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/ratelimit"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []usecase.ChatTurnInput
}

func (f *fakeRunner) Execute(ctx context.Context, in usecase.ChatTurnInput) (*usecase.ChatTurn, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()

	if len(in.Messages) == 0 {
		return nil, apperrors.NewInvalidInputError("at least one message is required")
	}
	convID := in.ConversationID
	if convID == "" {
		convID = "conv_ws"
	}
	events := make(chan entity.ChatEvent, 2)
	events <- entity.ChatEvent{Type: entity.EventTextDelta, Content: "echo: " + in.Messages[len(in.Messages)-1].Content}
	events <- entity.ChatEvent{Type: entity.EventFinish, Finish: &entity.FinishInfo{ConversationID: convID, Reason: entity.FinishStop}}
	close(events)
	return &usecase.ChatTurn{ConversationID: convID, Events: events}, nil
}

func startServer(t *testing.T, maxRequests int) (*websocket.Conn, *fakeRunner, *Hub) {
	t.Helper()
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(logger)
	go hub.Run(ctx)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{MaxRequests: maxRequests, Window: time.Minute}, logger)
	runner := &fakeRunner{}
	srv := httptest.NewServer(NewHandler(hub, runner, ratelimit.NewGate(limiter, nil, logger), nil, logger))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, runner, hub
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHandler_ChatStreamsEvents(t *testing.T) {
	conn, runner, _ := startServer(t, 10)

	if err := conn.WriteJSON(WSMessage{Type: MessageTypeChat, ID: "1", Content: "hello", CustomerEmail: "jane@example.com"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	delta := readMessage(t, conn)
	if delta.Type != MessageTypeEvent || delta.Event == nil || delta.Event.Type != entity.EventTextDelta {
		t.Fatalf("first frame = %+v", delta)
	}
	if delta.Event.Content != "echo: hello" || delta.ID != "1" {
		t.Errorf("delta = %+v", delta.Event)
	}
	finish := readMessage(t, conn)
	if finish.Event == nil || finish.Event.Type != entity.EventFinish || finish.ConversationID != "conv_ws" {
		t.Fatalf("second frame = %+v", finish)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || runner.calls[0].Messages[0].Role != "user" || runner.calls[0].CustomerEmail != "jane@example.com" {
		t.Errorf("calls = %+v", runner.calls)
	}
}

func TestHandler_RateLimited(t *testing.T) {
	conn, _, _ := startServer(t, 1)

	conn.WriteJSON(WSMessage{Type: MessageTypeChat, Content: "one", CustomerEmail: "jane@example.com"})
	readMessage(t, conn)
	readMessage(t, conn)

	conn.WriteJSON(WSMessage{Type: MessageTypeChat, Content: "two", CustomerEmail: "jane@example.com"})
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeRateLimited || msg.ResetAt == nil {
		t.Fatalf("frame = %+v", msg)
	}
}

func TestHandler_ErrorsAndPing(t *testing.T) {
	conn, _, _ := startServer(t, 10)

	tests := []struct {
		name string
		send WSMessage
		want MessageType
		err  string
	}{
		{"ping", WSMessage{Type: MessageTypePing, ID: "p"}, MessageTypePong, ""},
		{"unknown type", WSMessage{Type: "subscribe"}, MessageTypeError, "unsupported message type"},
		{"empty chat", WSMessage{Type: MessageTypeChat}, MessageTypeError, "at least one message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.send); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readMessage(t, conn)
			if msg.Type != tt.want {
				t.Fatalf("type = %s, want %s", msg.Type, tt.want)
			}
			if !strings.Contains(msg.Error, tt.err) {
				t.Errorf("error = %q, want %q", msg.Error, tt.err)
			}
		})
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.GetClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_TracksClients(t *testing.T) {
	conn, _, hub := startServer(t, 10)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
