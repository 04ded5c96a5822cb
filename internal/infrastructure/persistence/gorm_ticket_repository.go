package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// NewTicketID returns a short reference a customer can read out, e.g. TKT-1A2B3C4D.
func NewTicketID() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// prepareTicket fills defaults and validates before any write.
func prepareTicket(t *entity.Ticket, now time.Time) error {
	if t.ID == "" {
		t.ID = NewTicketID()
	}
	if t.Status == "" {
		t.Status = entity.TicketOpen
	}
	if strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.Description) == "" {
		return domainErrors.NewInvalidInputError("ticket subject and description are required")
	}
	if err := t.Validate(); err != nil {
		return domainErrors.NewInvalidInputError(err.Error())
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// applyTicketStatus moves t to status. Terminal statuses stamp the
// resolution; reopening clears it.
func applyTicketStatus(t *entity.Ticket, status entity.TicketStatus, resolution string, now time.Time) error {
	if !status.Valid() {
		return domainErrors.NewInvalidInputErrorf("invalid ticket status: %s", status)
	}
	t.Status = status
	t.UpdatedAt = now
	if status.Terminal() {
		t.ResolvedAt = &now
		if resolution != "" {
			t.Resolution = resolution
		}
	} else {
		t.ResolvedAt = nil
	}
	return nil
}

// GormTicketRepository stores support tickets with gorm.
type GormTicketRepository struct {
	db *gorm.DB
}

func NewGormTicketRepository(db *gorm.DB) repository.TicketRepository {
	return &GormTicketRepository{db: db}
}

// Create writes the ticket in a single transaction; a failure leaves no row behind.
func (r *GormTicketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	if err := prepareTicket(ticket, time.Now().UTC()); err != nil {
		return err
	}
	model := ticketToModel(ticket)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domainErrors.NewAlreadyExistsError("ticket already exists: " + ticket.ID)
	}
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create ticket", err)
	}
	return nil
}

func (r *GormTicketRepository) FindByID(ctx context.Context, id string) (*entity.Ticket, error) {
	var model models.TicketModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("ticket not found: " + id)
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find ticket", err)
	}
	return ticketToEntity(&model), nil
}

func (r *GormTicketRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Ticket, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.TicketModel
	err := r.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list tickets", err)
	}

	tickets := make([]*entity.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, ticketToEntity(&rows[i]))
	}
	return tickets, nil
}

func (r *GormTicketRepository) UpdateStatus(ctx context.Context, id string, status entity.TicketStatus, resolution string) (*entity.Ticket, error) {
	var updated *entity.Ticket
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.TicketModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		ticket := ticketToEntity(&model)
		if err := applyTicketStatus(ticket, status, resolution, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.Model(&models.TicketModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      string(ticket.Status),
			"resolution":  ticket.Resolution,
			"resolved_at": ticket.ResolvedAt,
			"updated_at":  ticket.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("ticket not found: " + id)
		}
		var appErr *domainErrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to update ticket", err)
	}
	return updated, nil
}

func (r *GormTicketRepository) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, resolved int64
	base := r.db.WithContext(ctx).Model(&models.TicketModel{}).Where("created_at >= ?", since)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, domainErrors.NewInternalErrorWithCause("failed to count tickets", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("status IN ?", []string{string(entity.TicketResolved), string(entity.TicketClosed)}).
		Count(&resolved).Error; err != nil {
		return 0, 0, domainErrors.NewInternalErrorWithCause("failed to count resolved tickets", err)
	}
	return total, resolved, nil
}

func ticketToModel(t *entity.Ticket) *models.TicketModel {
	return &models.TicketModel{
		ID:             t.ID,
		ConversationID: t.ConversationID,
		CustomerEmail:  t.CustomerEmail,
		Subject:        t.Subject,
		Description:    t.Description,
		Category:       string(t.Category),
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		AssignedTo:     t.AssignedTo,
		Resolution:     t.Resolution,
		ResolvedAt:     t.ResolvedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func ticketToEntity(m *models.TicketModel) *entity.Ticket {
	return &entity.Ticket{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		CustomerEmail:  m.CustomerEmail,
		Subject:        m.Subject,
		Description:    m.Description,
		Category:       entity.TicketCategory(m.Category),
		Priority:       entity.TicketPriority(m.Priority),
		Status:         entity.TicketStatus(m.Status),
		AssignedTo:     m.AssignedTo,
		Resolution:     m.Resolution,
		ResolvedAt:     m.ResolvedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
