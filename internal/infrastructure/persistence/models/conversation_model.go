package models

import "time"

type ConversationModel struct {
	ID            string    `gorm:"primaryKey;size:64"`
	CustomerEmail string    `gorm:"index;size:255"`
	Status        string    `gorm:"index;size:16;not null"`
	Sentiment     string    `gorm:"size:16;not null"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (ConversationModel) TableName() string {
	return "conversations"
}
