package tool

import (
	"context"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

const TransferToAgentToolName = "transfer_to_agent"

type TransferToAgentInput struct {
	Reason  string `json:"reason" validate:"required,notblank"`
	Urgency string `json:"urgency" validate:"required,oneof=normal high"`
}

type transferOutput struct {
	Transferred       bool   `json:"transferred"`
	Message           string `json:"message"`
	EstimatedWaitTime string `json:"estimatedWaitTime"`
}

// NewTransferToAgentTool hands the customer to a human. When the call is
// bound to a conversation, that conversation is marked escalated.
func NewTransferToAgentTool(conversations repository.ConversationRepository, publisher eventbus.Publisher, logger *zap.Logger) domaintool.Tool {
	logger = logger.With(zap.String("tool", TransferToAgentToolName))

	return domaintool.NewTypedTool(
		TransferToAgentToolName,
		"Transfer the conversation to a human agent immediately for complex issues or when requested by customer",
		domaintool.KindCommunicate,
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Reason for transfer",
				},
				"urgency": map[string]interface{}{
					"type": "string",
					"enum": []string{"normal", "high"},
				},
			},
			"required": []string{"reason", "urgency"},
		},
		func(ctx context.Context, in TransferToAgentInput) (*domaintool.Result, error) {
			cc, _ := domaintool.CallContextFrom(ctx)

			if cc.ConversationID != "" && conversations != nil {
				if err := conversations.UpdateStatus(ctx, cc.ConversationID, entity.ConversationEscalated); err != nil {
					// The customer still gets the handoff; agents find the
					// conversation through the agent_transfer event.
					logger.Warn("Failed to mark conversation escalated",
						zap.String("conversation_id", cc.ConversationID),
						zap.Error(err),
					)
				}
			}

			logger.Info("Conversation transferred to agent",
				zap.String("conversation_id", cc.ConversationID),
				zap.String("urgency", in.Urgency),
				zap.String("reason", in.Reason),
			)
			if publisher != nil {
				publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeAgentTransfer, eventbus.AgentTransferPayload{
					ConversationID: cc.ConversationID,
					Reason:         in.Reason,
					Urgency:        in.Urgency,
				}))
			}

			wait := "5 minutes"
			if in.Urgency == "high" {
				wait = "2 minutes"
			}
			return domaintool.JSONResult(transferOutput{
				Transferred:       true,
				Message:           "Connecting you with a human agent...",
				EstimatedWaitTime: wait,
			})
		},
	)
}
