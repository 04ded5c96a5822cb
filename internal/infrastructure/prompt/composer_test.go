package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

func TestCompose_SentimentAddenda(t *testing.T) {
	c := NewComposer(Template{})
	base := c.Compose(ComposeInput{Sentiment: entity.SentimentNeutral})

	if base != basePolicy {
		t.Fatal("neutral prompt without email should be exactly the base policy")
	}

	seen := map[string]bool{}
	for _, s := range []entity.Sentiment{entity.SentimentFrustrated, entity.SentimentNegative, entity.SentimentPositive} {
		got := c.Compose(ComposeInput{Sentiment: s})
		if !strings.HasPrefix(got, basePolicy) {
			t.Fatalf("%s: base policy must come first", s)
		}
		addendum := strings.TrimPrefix(got, basePolicy)
		if strings.TrimSpace(addendum) == "" {
			t.Fatalf("%s: expected a non-empty addendum", s)
		}
		if seen[addendum] {
			t.Fatalf("%s: addendum is not distinct", s)
		}
		seen[addendum] = true
	}

	if !strings.Contains(c.Compose(ComposeInput{Sentiment: entity.SentimentFrustrated}), "Customer Sentiment Alert") {
		t.Fatal("frustrated prompt should carry the alert")
	}
}

func TestCompose_IdentityBlock(t *testing.T) {
	c := NewComposer(Template{})

	got := c.Compose(ComposeInput{
		Sentiment:      entity.SentimentNegative,
		CustomerEmail:  "jane@example.com",
		ConversationID: "conv_1_abc",
	})

	sentimentIdx := strings.Index(got, negativeAddendum)
	identityIdx := strings.Index(got, "## Customer Information")
	if sentimentIdx < 0 || identityIdx < 0 || sentimentIdx > identityIdx {
		t.Fatalf("expected base, sentiment, identity order:\n%s", got)
	}
	if !strings.Contains(got, "Email: jane@example.com") || !strings.Contains(got, "Conversation ID: conv_1_abc") {
		t.Fatalf("identity block incomplete:\n%s", got[identityIdx:])
	}

	noEmail := c.Compose(ComposeInput{Sentiment: entity.SentimentNeutral, ConversationID: "conv_1_abc"})
	if strings.Contains(noEmail, "Customer Information") || strings.Contains(noEmail, "conv_1_abc") {
		t.Fatal("identity block must only appear with an email")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer(Template{})
	in := ComposeInput{Sentiment: entity.SentimentPositive, CustomerEmail: "a@b.co"}
	if c.Compose(in) != c.Compose(in) {
		t.Fatal("Compose must be pure")
	}
}

func TestComposer_Defaults(t *testing.T) {
	c := NewComposer(Template{})
	if c.WelcomeMessage() == "" {
		t.Fatal("expected a welcome message")
	}
	qs := c.SuggestedQuestions()
	if len(qs) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(qs))
	}
	qs[0] = "changed"
	if c.SuggestedQuestions()[0] == "changed" {
		t.Fatal("SuggestedQuestions must return a copy")
	}
}

func TestLoadTemplateFile(t *testing.T) {
	longBase := strings.Repeat("Always be kind. ", 2000)
	path := filepath.Join(t.TempDir(), "prompt.md")
	body := "---\nwelcome_message: Welcome to Acme!\nsuggested_questions:\n  - Track my parcel\n---\n" + longBase + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tmpl, err := LoadTemplateFile(path)
	if err != nil {
		t.Fatalf("LoadTemplateFile: %v", err)
	}
	c := NewComposer(tmpl)
	if c.WelcomeMessage() != "Welcome to Acme!" || len(c.SuggestedQuestions()) != 1 {
		t.Fatalf("frontmatter not applied: %+v", tmpl)
	}
	if got := c.Compose(ComposeInput{}); got != strings.TrimSpace(longBase) {
		t.Fatal("base text must be used verbatim, never truncated")
	}
}

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		base    string
		wantErr bool
	}{
		{"plain body", "You are Acme support.\n", "You are Acme support.", false},
		{"frontmatter only keys", "---\nwelcome_message: hi\n---\nBody", "Body", false},
		{"unclosed frontmatter", "---\nwelcome_message: hi\nBody", "", true},
		{"bad yaml", "---\nsuggested_questions: [\n---\nBody", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tmpl.Base != tt.base {
				t.Fatalf("base = %q, want %q", tmpl.Base, tt.base)
			}
		})
	}
}
