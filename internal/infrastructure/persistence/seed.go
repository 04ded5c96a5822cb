package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
)

// DemoCustomerEmail owns every demo order.
const DemoCustomerEmail = "demo@example.com"

// DemoOrders returns sample orders for trying order lookups locally.
// Delivery dates are relative to now.
func DemoOrders(now time.Time) []*entity.Order {
	day := 24 * time.Hour
	inThreeDays := now.Add(3 * day).Truncate(day)
	inSixDays := now.Add(6 * day).Truncate(day)
	lastWeek := now.Add(-7 * day).Truncate(day)

	return []*entity.Order{
		{
			ID:            "10001",
			CustomerEmail: DemoCustomerEmail,
			Status:        entity.OrderShipped,
			Items: []entity.OrderItem{
				{Name: "Wireless Headphones", Quantity: 1, PriceCents: 12999},
				{Name: "USB-C Charging Cable", Quantity: 2, PriceCents: 1499},
			},
			TotalCents:        15997,
			TrackingNumber:    "1Z999AA10123456784",
			EstimatedDelivery: &inThreeDays,
			CreatedAt:         now.Add(-2 * day),
		},
		{
			ID:            "10002",
			CustomerEmail: DemoCustomerEmail,
			Status:        entity.OrderProcessing,
			Items: []entity.OrderItem{
				{Name: "Smart Watch", Quantity: 1, PriceCents: 24900},
			},
			TotalCents:        24900,
			EstimatedDelivery: &inSixDays,
			CreatedAt:         now.Add(-1 * day),
		},
		{
			ID:            "10003",
			CustomerEmail: DemoCustomerEmail,
			Status:        entity.OrderDelivered,
			Items: []entity.OrderItem{
				{Name: "Laptop Stand", Quantity: 1, PriceCents: 4999},
			},
			TotalCents:        4999,
			TrackingNumber:    "1Z999AA10123456785",
			EstimatedDelivery: &lastWeek,
			CreatedAt:         now.Add(-12 * day),
		},
	}
}

// SeedDemoOrders upserts DemoOrders, so running it twice is harmless.
func SeedDemoOrders(ctx context.Context, orders repository.OrderRepository) (int, error) {
	demo := DemoOrders(time.Now().UTC())
	for _, o := range demo {
		if err := orders.Upsert(ctx, o); err != nil {
			return 0, fmt.Errorf("seed order %s: %w", o.ID, err)
		}
	}
	return len(demo), nil
}
