package models

import "time"

// MessageModel is one entry of a conversation's message log. Position
// orders messages within a conversation; timestamps can collide.
type MessageModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"index:idx_messages_conversation_position,priority:1;size:64;not null"`
	Position       int    `gorm:"index:idx_messages_conversation_position,priority:2;not null"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text"`
	ToolCalls      string `gorm:"type:text"` // JSON encoded []entity.ToolInvocation
	Tokens         int
	CreatedAt      time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}
