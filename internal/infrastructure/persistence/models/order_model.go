package models

import "time"

// OrderModel stores customer emails lower-cased so lookups are case-insensitive.
type OrderModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	CustomerEmail     string `gorm:"index;size:255;not null"`
	Status            string `gorm:"size:16;not null"`
	Items             string `gorm:"type:text"` // JSON encoded []entity.OrderItem
	TotalCents        int64
	TrackingNumber    string `gorm:"size:64"`
	EstimatedDelivery *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}
