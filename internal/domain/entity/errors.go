package entity

import "errors"

var (
	// Conversation errors
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidStatus         = errors.New("invalid conversation status")

	// Message errors
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrInvalidRole      = errors.New("invalid message role")

	// Support record errors
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPriority    = errors.New("invalid ticket priority")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidTicketState = errors.New("invalid ticket status")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
)
