package entity

import "time"

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ResponseTime is the promised first-response time for the priority.
func (p TicketPriority) ResponseTime() string {
	switch p {
	case PriorityUrgent:
		return "1 hour"
	case PriorityHigh:
		return "4 hours"
	default:
		return "24 hours"
	}
}

type TicketCategory string

const (
	TicketTechnical TicketCategory = "technical"
	TicketBilling   TicketCategory = "billing"
	TicketAccount   TicketCategory = "account"
	TicketProduct   TicketCategory = "product"
	TicketOther     TicketCategory = "other"
)

func (c TicketCategory) Valid() bool {
	switch c {
	case TicketTechnical, TicketBilling, TicketAccount, TicketProduct, TicketOther:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// Terminal reports whether the ticket needs no further work.
func (s TicketStatus) Terminal() bool {
	return s == TicketResolved || s == TicketClosed
}

// Ticket is a support request handed to human agents.
type Ticket struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	CustomerEmail  string         `json:"customer_email"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description"`
	Category       TicketCategory `json:"category"`
	Priority       TicketPriority `json:"priority"`
	Status         TicketStatus   `json:"status"`
	AssignedTo     string         `json:"assigned_to,omitempty"`
	Resolution     string         `json:"resolution,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate checks the enumerated fields and the email syntax.
func (t *Ticket) Validate() error {
	if !IsValidEmail(t.CustomerEmail) {
		return ErrInvalidEmail
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if t.Status != "" && !t.Status.Valid() {
		return ErrInvalidTicketState
	}
	return nil
}
