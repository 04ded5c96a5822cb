package transcript

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// Transcript is a rendered conversation.
type Transcript struct {
	ConversationID string `json:"conversation_id"`
	Markdown       string `json:"markdown"`
	HTML           string `json:"html"`
}

// Renderer turns stored conversations into Markdown and HTML. Raw HTML
// in message content is not passed through.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render renders conv and its messages in stored order. Tool messages are
// shown as a one-line outcome under the assistant message that asked.
func (r *Renderer) Render(conv *entity.Conversation, messages []*entity.Message) (*Transcript, error) {
	markdown := Markdown(conv, messages)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return &Transcript{
		ConversationID: conv.ID(),
		Markdown:       markdown,
		HTML:           buf.String(),
	}, nil
}

// Markdown builds the Markdown source of a transcript.
func Markdown(conv *entity.Conversation, messages []*entity.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", conv.ID())
	if conv.CustomerEmail() != "" {
		fmt.Fprintf(&b, "- **Customer:** %s\n", conv.CustomerEmail())
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", conv.Status())
	fmt.Fprintf(&b, "- **Sentiment:** %s\n", conv.Sentiment())
	fmt.Fprintf(&b, "- **Started:** %s\n\n", conv.CreatedAt().UTC().Format(time.RFC1123))

	for _, m := range messages {
		switch m.Role() {
		case entity.RoleUser:
			fmt.Fprintf(&b, "### Customer · %s\n\n%s\n\n", m.CreatedAt().UTC().Format(time.Kitchen), m.Content())
		case entity.RoleAssistant:
			fmt.Fprintf(&b, "### Assistant · %s\n\n", m.CreatedAt().UTC().Format(time.Kitchen))
			if strings.TrimSpace(m.Content()) != "" {
				b.WriteString(m.Content())
				b.WriteString("\n\n")
			}
			for _, tc := range m.ToolCalls() {
				fmt.Fprintf(&b, "> Tool `%s`: %s\n", tc.ToolName, tc.Status)
			}
			if len(m.ToolCalls()) > 0 {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
