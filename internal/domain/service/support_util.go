package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewConversationID returns an identifier of the form conv_<unix-ms>_<9 chars>.
func NewConversationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("conv_%d_%s", now.UnixMilli(), suffix)
}

var orderIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d{4,})`),
	regexp.MustCompile(`(?i)ORDER[- ]?(\d{4,})`),
	regexp.MustCompile(`\b(\d{8,})\b`),
}

// ExtractOrderID finds an order number mentioned in free text, trying
// "#1234", "ORDER-1234" and bare runs of eight or more digits in that order.
func ExtractOrderID(text string) (string, bool) {
	for _, re := range orderIDPatterns {
		if m := re.FindStringSubmatch(text); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

// FormatCurrency renders a cent amount as US dollars, e.g. 129999 -> "$1,299.99".
func FormatCurrency(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}

// Truncate shortens s to at most max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
