package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// CreateTicketInput is a ticket opened outside a chat turn, e.g. by an agent.
type CreateTicketInput struct {
	ConversationID string
	CustomerEmail  string
	Subject        string
	Description    string
	Category       entity.TicketCategory
	Priority       entity.TicketPriority
}

// SupportUseCase serves tickets, orders and feedback to the REST API.
type SupportUseCase struct {
	tickets   repository.TicketRepository
	orders    repository.OrderRepository
	feedback  repository.FeedbackRepository
	publisher eventbus.Publisher
	logger    *zap.Logger
}

func NewSupportUseCase(
	tickets repository.TicketRepository,
	orders repository.OrderRepository,
	feedback repository.FeedbackRepository,
	publisher eventbus.Publisher,
	logger *zap.Logger,
) *SupportUseCase {
	return &SupportUseCase{
		tickets:   tickets,
		orders:    orders,
		feedback:  feedback,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "support")),
	}
}

func (uc *SupportUseCase) CreateTicket(ctx context.Context, in CreateTicketInput) (*entity.Ticket, error) {
	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}
	if in.Category == "" {
		in.Category = entity.TicketOther
	}
	ticket := &entity.Ticket{
		ConversationID: in.ConversationID,
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		Subject:        strings.TrimSpace(in.Subject),
		Description:    strings.TrimSpace(in.Description),
		Category:       in.Category,
		Priority:       in.Priority,
		Status:         entity.TicketOpen,
	}
	if err := uc.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	uc.logger.Info("Ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", string(ticket.Priority)),
	)
	if uc.publisher != nil {
		uc.publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeTicketCreated, eventbus.TicketCreatedPayload{
			TicketID:       ticket.ID,
			ConversationID: ticket.ConversationID,
			Priority:       ticket.Priority,
			Category:       ticket.Category,
		}))
	}
	return ticket, nil
}

func (uc *SupportUseCase) GetTicket(ctx context.Context, id string) (*entity.Ticket, error) {
	return uc.tickets.FindByID(ctx, id)
}

func (uc *SupportUseCase) ListTickets(ctx context.Context, email string, limit int) ([]*entity.Ticket, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.NewInvalidInputError("email is required")
	}
	return uc.tickets.ListByEmail(ctx, strings.TrimSpace(email), limit)
}

// UpdateTicketStatus moves a ticket through its lifecycle. Resolving or
// closing stamps the resolution time.
func (uc *SupportUseCase) UpdateTicketStatus(ctx context.Context, id string, status entity.TicketStatus, resolution string) (*entity.Ticket, error) {
	ticket, err := uc.tickets.UpdateStatus(ctx, id, status, strings.TrimSpace(resolution))
	if err != nil {
		return nil, err
	}
	uc.logger.Info("Ticket status updated",
		zap.String("ticket_id", id),
		zap.String("status", string(status)),
	)
	return ticket, nil
}

func (uc *SupportUseCase) ListOrders(ctx context.Context, email string) ([]*entity.Order, error) {
	email = strings.TrimSpace(email)
	if !entity.IsValidEmail(email) {
		return nil, apperrors.NewInvalidInputError("a valid email is required")
	}
	return uc.orders.ListByEmail(ctx, email)
}

func (uc *SupportUseCase) SubmitFeedback(ctx context.Context, f *entity.Feedback) error {
	f.Comment = strings.TrimSpace(f.Comment)
	if err := uc.feedback.Save(ctx, f); err != nil {
		return err
	}
	uc.logger.Info("Feedback received",
		zap.String("conversation_id", f.ConversationID),
		zap.Int("rating", f.Rating),
	)
	return nil
}
