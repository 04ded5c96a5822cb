package tool

import (
	"context"
	"fmt"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

const CreateTicketToolName = "create_ticket"

type CreateTicketInput struct {
	Subject       string `json:"subject" validate:"required,notblank"`
	Description   string `json:"description" validate:"required,notblank"`
	Priority      string `json:"priority" validate:"required,oneof=low medium high urgent"`
	Category      string `json:"category" validate:"required,oneof=technical billing account product other"`
	CustomerEmail string `json:"customerEmail" validate:"required,email_syntax"`
}

type createTicketOutput struct {
	Success               bool   `json:"success"`
	TicketID              string `json:"ticketId"`
	Message               string `json:"message"`
	EstimatedResponseTime string `json:"estimatedResponseTime"`
}

func NewCreateTicketTool(tickets repository.TicketRepository, publisher eventbus.Publisher, logger *zap.Logger) domaintool.Tool {
	logger = logger.With(zap.String("tool", CreateTicketToolName))

	return domaintool.NewTypedTool(
		CreateTicketToolName,
		"Create a support ticket when the issue requires human assistance or cannot be resolved by the AI",
		domaintool.KindWrite,
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"subject": map[string]interface{}{
					"type":        "string",
					"description": "Brief subject line for the ticket",
				},
				"priority": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"low", "medium", "high", "urgent"},
					"description": "Priority level based on issue severity",
				},
				"category": map[string]interface{}{
					"type": "string",
					"enum": []string{"technical", "billing", "account", "product", "other"},
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Detailed description of the issue",
				},
				"customerEmail": map[string]interface{}{
					"type":   "string",
					"format": "email",
				},
			},
			"required": []string{"subject", "priority", "category", "description", "customerEmail"},
		},
		func(ctx context.Context, in CreateTicketInput) (*domaintool.Result, error) {
			cc, _ := domaintool.CallContextFrom(ctx)
			ticket := &entity.Ticket{
				ConversationID: cc.ConversationID,
				CustomerEmail:  in.CustomerEmail,
				Subject:        in.Subject,
				Description:    in.Description,
				Category:       entity.TicketCategory(in.Category),
				Priority:       entity.TicketPriority(in.Priority),
				Status:         entity.TicketOpen,
			}
			if err := tickets.Create(ctx, ticket); err != nil {
				return nil, fmt.Errorf("create ticket: %w", err)
			}

			logger.Info("Ticket created",
				zap.String("ticket_id", ticket.ID),
				zap.String("conversation_id", cc.ConversationID),
				zap.String("priority", in.Priority),
			)
			if publisher != nil {
				publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeTicketCreated, eventbus.TicketCreatedPayload{
					TicketID:       ticket.ID,
					ConversationID: cc.ConversationID,
					Priority:       ticket.Priority,
					Category:       ticket.Category,
				}))
			}

			return domaintool.JSONResult(createTicketOutput{
				Success:               true,
				TicketID:              ticket.ID,
				Message:               "Ticket created successfully. A human agent will reach out soon.",
				EstimatedResponseTime: ticket.Priority.ResponseTime(),
			})
		},
	)
}
