package service

import (
	"testing"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

func user(text string) ChatMessage { return ChatMessage{Role: entity.RoleUser, Content: text} }
func assistant(text string) ChatMessage {
	return ChatMessage{Role: entity.RoleAssistant, Content: text}
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		want     entity.Sentiment
	}{
		{
			name:     "no messages",
			messages: nil,
			want:     entity.SentimentNeutral,
		},
		{
			name:     "only assistant messages",
			messages: []ChatMessage{assistant("I hate this, terrible, unacceptable!!")},
			want:     entity.SentimentNeutral,
		},
		{
			name:     "blank user message",
			messages: []ChatMessage{user("   ")},
			want:     entity.SentimentNeutral,
		},
		{
			name:     "frustrated keywords win over positive",
			messages: []ChatMessage{user("This is unacceptable, I want a refund, cancel my order!")},
			want:     entity.SentimentFrustrated,
		},
		{
			name:     "positive",
			messages: []ChatMessage{user("Thank you so much, this was great and very helpful!")},
			want:     entity.SentimentPositive,
		},
		{
			name:     "negative",
			messages: []ChatMessage{user("The sound quality is poor and there is an issue with the battery")},
			want:     entity.SentimentNegative,
		},
		{
			name:     "plain question",
			messages: []ChatMessage{user("Where is my order?")},
			want:     entity.SentimentNeutral,
		},
		{
			name:     "tie resolves to neutral",
			messages: []ChatMessage{user("great product but bad packaging")},
			want:     entity.SentimentNeutral,
		},
		{
			name:     "double exclamation in latest message",
			messages: []ChatMessage{user("Where is my package!!")},
			want:     entity.SentimentFrustrated,
		},
		{
			name:     "shouted word in latest message",
			messages: []ChatMessage{user("I need this fixed NOW please, it is URGENT")},
			want:     entity.SentimentFrustrated,
		},
		{
			name:     "short upper-case words are not shouting",
			messages: []ChatMessage{user("My TV and PC are fine")},
			want:     entity.SentimentNeutral,
		},
		{
			name:     "digits only are not shouting",
			messages: []ChatMessage{user("order 12345678 status")},
			want:     entity.SentimentNeutral,
		},
		{
			name: "exclamations only count on the latest message",
			messages: []ChatMessage{
				user("Hello!! anyone there!!"),
				assistant("Hi, how can I help?"),
				user("what are your support hours"),
			},
			want: entity.SentimentNeutral,
		},
		{
			name: "keywords accumulate across recent user messages",
			messages: []ChatMessage{
				user("I am angry"),
				assistant("Sorry to hear that."),
				user("I want to talk to a manager"),
			},
			want: entity.SentimentFrustrated,
		},
		{
			name: "only the last three user messages are scored",
			messages: []ChatMessage{
				user("this is ridiculous and unacceptable"),
				user("ok"),
				user("thanks"),
				user("where is my order"),
			},
			want: entity.SentimentPositive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySentiment(tt.messages); got != tt.want {
				t.Errorf("ClassifySentiment() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifySentiment_Deterministic(t *testing.T) {
	messages := []ChatMessage{
		user("My headphones stopped working"),
		assistant("Let me help."),
		user("This is the worst, I want a refund!!"),
	}
	first := ClassifySentiment(messages)
	for i := 0; i < 50; i++ {
		if got := ClassifySentiment(messages); got != first {
			t.Fatalf("run %d: got %s, want %s", i, got, first)
		}
	}
}
