package models

import "time"

type TicketModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	ConversationID string `gorm:"index;size:64"`
	CustomerEmail  string `gorm:"index;size:255;not null"`
	Subject        string `gorm:"size:255;not null"`
	Description    string `gorm:"type:text;not null"`
	Category       string `gorm:"size:16;not null"`
	Priority       string `gorm:"size:16;not null"`
	Status         string `gorm:"index;size:16;not null"`
	AssignedTo     string `gorm:"size:64"`
	Resolution     string `gorm:"type:text"`
	ResolvedAt     *time.Time
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

func (TicketModel) TableName() string {
	return "tickets"
}
