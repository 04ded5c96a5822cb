package service

import (
	"fmt"
	"strings"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// SanitizeHistory repairs replayed history before it is sent to the model.
// Tool calls without a matching tool result lose their calls (the text is
// kept), and tool results whose call is gone are dropped. A turn that
// failed halfway through leaves exactly this shape behind.
func SanitizeHistory(messages []LLMMessage) []LLMMessage {
	if len(messages) == 0 {
		return messages
	}

	resultIDs := make(map[string]bool)
	for _, msg := range messages {
		if msg.Role == string(entity.RoleTool) && msg.ToolCallID != "" {
			resultIDs[msg.ToolCallID] = true
		}
	}

	callIDs := make(map[string]bool)
	out := make([]LLMMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case string(entity.RoleAssistant):
			if len(msg.ToolCalls) > 0 {
				complete := true
				for _, tc := range msg.ToolCalls {
					if !resultIDs[tc.ID] {
						complete = false
						break
					}
				}
				if !complete {
					msg.ToolCalls = nil
					if strings.TrimSpace(msg.Content) == "" {
						continue
					}
				} else {
					for _, tc := range msg.ToolCalls {
						callIDs[tc.ID] = true
					}
				}
			}
		case string(entity.RoleTool):
			if !callIDs[msg.ToolCallID] {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}

// TrimHistory keeps the most recent max messages without starting on a
// tool result, which the model would reject without its call.
func TrimHistory(messages []LLMMessage, max int) []LLMMessage {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	start := len(messages) - max
	for start < len(messages) && messages[start].Role == string(entity.RoleTool) {
		start++
	}
	return messages[start:]
}

// TruncateToolOutput caps tool output at maxChars, cutting at a newline
// when one is close to the limit.
func TruncateToolOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	breakAt := maxChars
	if nl := strings.LastIndex(output[:maxChars], "\n"); nl > maxChars*3/4 {
		breakAt = nl
	}
	return fmt.Sprintf("%s\n\n[... truncated %d characters]", output[:breakAt], len(output)-breakAt)
}
