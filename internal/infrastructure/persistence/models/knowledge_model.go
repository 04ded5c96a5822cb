package models

import "time"

type KnowledgeModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Title     string `gorm:"size:255;not null"`
	Content   string `gorm:"type:text;not null"`
	Category  string `gorm:"index;size:32;not null"`
	Embedding string `gorm:"type:text"` // JSON encoded []float32, empty until computed
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KnowledgeModel) TableName() string {
	return "knowledge_base"
}
