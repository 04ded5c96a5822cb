package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence/models"
	domainErrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// GormOrderRepository reads customer orders with gorm.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByIDAndEmail returns NOT_FOUND both for unknown IDs and for orders
// owned by another email; callers cannot tell the two apart.
func (r *GormOrderRepository) FindByIDAndEmail(ctx context.Context, id, email string) (*entity.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_email = ?", strings.TrimSpace(id), normalizeEmail(email)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("order not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find order", err)
	}
	return orderToEntity(&model)
}

func (r *GormOrderRepository) ListByEmail(ctx context.Context, email string) ([]*entity.Order, error) {
	var rows []models.OrderModel
	err := r.db.WithContext(ctx).
		Where("customer_email = ?", normalizeEmail(email)).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list orders", err)
	}

	orders := make([]*entity.Order, 0, len(rows))
	for i := range rows {
		o, err := orderToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Upsert inserts or replaces the order by ID.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *entity.Order) error {
	if order.ID == "" {
		return domainErrors.NewInvalidInputError("order id is required")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = time.Now().UTC()

	model, err := orderToModel(order)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save order", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func orderToModel(o *entity.Order) (*models.OrderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal order items", err)
	}
	return &models.OrderModel{
		ID:                o.ID,
		CustomerEmail:     normalizeEmail(o.CustomerEmail),
		Status:            string(o.Status),
		Items:             string(items),
		TotalCents:        o.TotalCents,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}, nil
}

func orderToEntity(m *models.OrderModel) (*entity.Order, error) {
	var items []entity.OrderItem
	if m.Items != "" {
		if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
			return nil, domainErrors.NewInternalErrorWithCause("failed to unmarshal items of order "+m.ID, err)
		}
	}
	return &entity.Order{
		ID:                m.ID,
		CustomerEmail:     m.CustomerEmail,
		Status:            entity.OrderStatus(m.Status),
		Items:             items,
		TotalCents:        m.TotalCents,
		TrackingNumber:    m.TrackingNumber,
		EstimatedDelivery: m.EstimatedDelivery,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}
