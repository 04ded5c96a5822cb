package service

import (
	"strings"
	"unicode"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// sentimentWindow is how many trailing user messages are scored.
const sentimentWindow = 3

var (
	positiveKeywords = []string{
		"thank", "thanks", "great", "awesome", "perfect", "excellent", "appreciate", "helpful", "love",
	}
	negativeKeywords = []string{
		"bad", "poor", "terrible", "horrible", "worst", "disappointed", "frustrating", "issue", "problem",
	}
	frustratedKeywords = []string{
		"angry", "frustrated", "ridiculous", "unacceptable", "cancel", "refund", "never", "always", "manager", "complaint",
	}
)

// ChatMessage is the minimal view of a message the classifier needs.
type ChatMessage struct {
	Role    entity.MessageRole
	Content string
}

// ClassifySentiment labels the customer's mood from the last few user
// messages. It is a pure function of its input.
func ClassifySentiment(messages []ChatMessage) entity.Sentiment {
	userTexts := make([]string, 0, sentimentWindow)
	for i := len(messages) - 1; i >= 0 && len(userTexts) < sentimentWindow; i-- {
		m := messages[i]
		if m.Role != entity.RoleUser || strings.TrimSpace(m.Content) == "" {
			continue
		}
		userTexts = append(userTexts, m.Content)
	}
	if len(userTexts) == 0 {
		return entity.SentimentNeutral
	}

	var positive, negative, frustrated int
	for _, text := range userTexts {
		lower := strings.ToLower(text)
		positive += countKeywords(lower, positiveKeywords)
		negative += countKeywords(lower, negativeKeywords)
		frustrated += countKeywords(lower, frustratedKeywords)
	}

	// userTexts[0] is the most recent user message.
	latest := userTexts[0]
	if strings.Count(latest, "!") >= 2 || hasShoutedWord(latest) {
		frustrated += 2
	}

	switch {
	case frustrated >= 2:
		return entity.SentimentFrustrated
	case negative > positive:
		return entity.SentimentNegative
	case positive > negative:
		return entity.SentimentPositive
	default:
		return entity.SentimentNeutral
	}
}

// countKeywords counts keywords contained in text as substrings; each
// keyword counts at most once.
func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// hasShoutedWord reports whether text has a word longer than three
// characters written entirely in upper case.
func hasShoutedWord(text string) bool {
	for _, word := range strings.Fields(text) {
		if len([]rune(word)) <= 3 {
			continue
		}
		hasLetter := false
		shouted := true
		for _, r := range word {
			if unicode.IsLetter(r) {
				hasLetter = true
				if !unicode.IsUpper(r) {
					shouted = false
					break
				}
			}
		}
		if hasLetter && shouted {
			return true
		}
	}
	return false
}
