package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// Client talks to a running support gateway over its REST and SSE API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient targets baseURL, e.g. http://localhost:8080. Streams have no
// overall deadline; timeout bounds the plain JSON calls only.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ChatMessage is one message of a chat submission.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest mirrors the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversationId,omitempty"`
	CustomerEmail  string        `json:"customerEmail,omitempty"`
}

// RateLimitedError is returned when the gateway answers 429.
type RateLimitedError struct {
	Message string
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	wait := time.Until(e.ResetAt).Round(time.Second)
	if wait < 0 {
		wait = 0
	}
	return fmt.Sprintf("%s (retry in %s)", e.Message, wait)
}

// APIError is any other non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// Chat posts req and calls onEvent for every streamed event, in order. It
// returns the conversation id assigned by the gateway.
func (c *Client) Chat(ctx context.Context, req ChatRequest, onEvent func(entity.ChatEvent)) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// the stream lives as long as ctx, not the client timeout
	streamClient := *c.http
	streamClient.Timeout = 0
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	convID := resp.Header.Get("X-Conversation-ID")
	if err := readEvents(resp.Body, onEvent); err != nil {
		return convID, err
	}
	return convID, nil
}

// readEvents parses a text/event-stream body into chat events.
func readEvents(r io.Reader, onEvent func(entity.ChatEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		var ev entity.ChatEvent
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		data.Reset()
		onEvent(ev)
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// Suggestions fetches the welcome message and starter questions.
func (c *Client) Suggestions(ctx context.Context) (string, []string, error) {
	var out struct {
		WelcomeMessage string   `json:"welcome_message"`
		Suggestions    []string `json:"suggestions"`
	}
	if err := c.getJSON(ctx, "/api/v1/chat/suggestions", nil, &out); err != nil {
		return "", nil, err
	}
	return out.WelcomeMessage, out.Suggestions, nil
}

func (c *Client) Orders(ctx context.Context, email string) ([]entity.Order, error) {
	var out struct {
		Orders []entity.Order `json:"orders"`
	}
	if err := c.getJSON(ctx, "/api/v1/orders", url.Values{"email": {email}}, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) Tickets(ctx context.Context, email string) ([]entity.Ticket, error) {
	var out struct {
		Tickets []entity.Ticket `json:"tickets"`
	}
	if err := c.getJSON(ctx, "/api/v1/tickets", url.Values{"email": {email}}, &out); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

// Feedback rates a conversation from 1 to 5.
func (c *Client) Feedback(ctx context.Context, conversationID string, rating int, comment string) error {
	body, err := json.Marshal(map[string]interface{}{
		"conversation_id": conversationID,
		"rating":          rating,
		"comment":         comment,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/feedback", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error   string    `json:"error"`
		ResetAt time.Time `json:"reset_at"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitedError{Message: body.Error, ResetAt: body.ResetAt}
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}
