package repository

import (
	"context"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// TicketRepository stores support tickets.
type TicketRepository interface {
	// Create inserts the ticket in a single transaction and fills ID and timestamps.
	Create(ctx context.Context, ticket *entity.Ticket) error
	FindByID(ctx context.Context, id string) (*entity.Ticket, error)
	// ListByEmail returns the customer's tickets, newest first.
	ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Ticket, error)
	// UpdateStatus sets the status. Terminal statuses also record resolution and resolved_at.
	UpdateStatus(ctx context.Context, id string, status entity.TicketStatus, resolution string) (*entity.Ticket, error)
	CountSince(ctx context.Context, since time.Time) (total int64, resolved int64, err error)
}

// OrderRepository looks up customer orders.
type OrderRepository interface {
	// FindByIDAndEmail only matches when both the order ID and the owner email agree.
	FindByIDAndEmail(ctx context.Context, id, email string) (*entity.Order, error)
	ListByEmail(ctx context.Context, email string) ([]*entity.Order, error)
	Upsert(ctx context.Context, order *entity.Order) error
}

// FeedbackRepository stores customer ratings.
type FeedbackRepository interface {
	Save(ctx context.Context, feedback *entity.Feedback) error
	// AverageRating returns 0 when there is no feedback in the window.
	AverageRating(ctx context.Context, since time.Time) (float64, error)
}
