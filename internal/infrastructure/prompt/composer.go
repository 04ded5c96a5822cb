package prompt

import (
	"fmt"
	"strings"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// ComposeInput is what a system prompt depends on.
type ComposeInput struct {
	Sentiment      entity.Sentiment
	CustomerEmail  string
	ConversationID string
}

// Composer builds system prompts from a Template. It holds no mutable
// state and is safe for concurrent use.
type Composer struct {
	tmpl Template
}

// NewComposer uses tmpl, falling back to the built-in text for any part
// tmpl leaves empty.
func NewComposer(tmpl Template) *Composer {
	def := DefaultTemplate()
	if strings.TrimSpace(tmpl.Base) == "" {
		tmpl.Base = def.Base
	}
	if tmpl.WelcomeMessage == "" {
		tmpl.WelcomeMessage = def.WelcomeMessage
	}
	if len(tmpl.SuggestedQuestions) == 0 {
		tmpl.SuggestedQuestions = def.SuggestedQuestions
	}
	return &Composer{tmpl: tmpl}
}

// Compose returns base policy, then the sentiment addendum, then the
// customer block. Neutral sentiment adds nothing and the customer block
// is only present when an email is known.
func (c *Composer) Compose(in ComposeInput) string {
	var b strings.Builder
	b.WriteString(c.tmpl.Base)

	if addendum := sentimentAddendum(in.Sentiment); addendum != "" {
		b.WriteString("\n\n")
		b.WriteString(addendum)
	}

	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		fmt.Fprintf(&b, "\n\n## Customer Information\nEmail: %s\n", email)
		if in.ConversationID != "" {
			fmt.Fprintf(&b, "Conversation ID: %s\n", in.ConversationID)
		}
		b.WriteString("(Use this for order lookups and ticket creation)")
	}
	return b.String()
}

func (c *Composer) WelcomeMessage() string {
	return c.tmpl.WelcomeMessage
}

// SuggestedQuestions returns a copy of the starter questions.
func (c *Composer) SuggestedQuestions() []string {
	out := make([]string, len(c.tmpl.SuggestedQuestions))
	copy(out, c.tmpl.SuggestedQuestions)
	return out
}

func sentimentAddendum(s entity.Sentiment) string {
	switch s {
	case entity.SentimentFrustrated:
		return frustratedAddendum
	case entity.SentimentNegative:
		return negativeAddendum
	case entity.SentimentPositive:
		return positiveAddendum
	default:
		return ""
	}
}
