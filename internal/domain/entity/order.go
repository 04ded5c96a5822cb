package entity

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderItem is one line of an order. Prices are in cents.
type OrderItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// Order belongs to exactly one customer email.
type Order struct {
	ID                string      `json:"id"`
	CustomerEmail     string      `json:"customer_email"`
	Status            OrderStatus `json:"status"`
	Items             []OrderItem `json:"items"`
	TotalCents        int64       `json:"total_cents"`
	TrackingNumber    string      `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time  `json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
