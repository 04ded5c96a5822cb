package entity

import "time"

// Feedback is a customer rating of a conversation or a single reply.
type Feedback struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	Rating         int       `json:"rating"`
	Helpful        *bool     `json:"helpful,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (f *Feedback) Validate() error {
	if f.ConversationID == "" {
		return ErrInvalidConversationID
	}
	if f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}
