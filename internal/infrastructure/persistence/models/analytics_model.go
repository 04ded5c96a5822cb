package models

import "time"

type FeedbackModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"index;size:64;not null"`
	MessageID      string `gorm:"size:64"`
	Rating         int    `gorm:"not null"`
	Helpful        *bool
	Comment        string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index"`
}

func (FeedbackModel) TableName() string {
	return "feedback"
}

type AnalyticsModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Metric    string    `gorm:"index;size:64;not null"`
	Value     float64   `gorm:"not null"`
	Metadata  string    `gorm:"type:text"` // JSON encoded map
	CreatedAt time.Time `gorm:"index"`
}

func (AnalyticsModel) TableName() string {
	return "analytics"
}
