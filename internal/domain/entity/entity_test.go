package entity

import (
	"testing"
	"time"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"jane@example.com", true},
		{"a.b+c@sub.example.co", true},
		{"", false},
		{"jane", false},
		{"jane@example", false},
		{"jane doe@example.com", false},
		{"@example.com", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestTicketPriority_ResponseTime(t *testing.T) {
	tests := []struct {
		priority TicketPriority
		want     string
	}{
		{PriorityUrgent, "1 hour"},
		{PriorityHigh, "4 hours"},
		{PriorityMedium, "24 hours"},
		{PriorityLow, "24 hours"},
	}
	for _, tt := range tests {
		if got := tt.priority.ResponseTime(); got != tt.want {
			t.Errorf("%s.ResponseTime() = %q, want %q", tt.priority, got, tt.want)
		}
	}
}

func TestTicket_Validate(t *testing.T) {
	ticket := &Ticket{
		CustomerEmail: "jane@example.com",
		Priority:      PriorityHigh,
		Category:      TicketBilling,
	}
	if err := ticket.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ticket.Priority = "critical"
	if err := ticket.Validate(); err != ErrInvalidPriority {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}

	ticket.Priority = PriorityLow
	ticket.CustomerEmail = "nope"
	if err := ticket.Validate(); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestConversation_Lifecycle(t *testing.T) {
	if _, err := NewConversation("", "x@y.z"); err != ErrInvalidConversationID {
		t.Fatalf("expected ErrInvalidConversationID, got %v", err)
	}

	conv, err := NewConversation("conv_1", "")
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	if conv.Status() != ConversationActive || conv.Sentiment() != SentimentNeutral {
		t.Fatalf("unexpected initial state %s/%s", conv.Status(), conv.Sentiment())
	}

	conv.SetSentiment(SentimentFrustrated)
	if conv.Sentiment() != SentimentFrustrated {
		t.Fatal("sentiment not overwritten")
	}
	if err := conv.SetStatus("archived"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if !conv.AttachEmail("jane@example.com") {
		t.Fatal("expected email to attach to anonymous conversation")
	}
	if conv.AttachEmail("other@example.com") {
		t.Fatal("email must not be replaced once set")
	}
}

func TestNewMessage_Validation(t *testing.T) {
	if _, err := NewMessage("m1", "c1", "robot", "hi", nil, 0); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	calls := []ToolInvocation{{ID: "call_1", ToolName: "create_ticket", Status: ToolSucceeded}}
	msg, err := NewMessage("m1", "c1", RoleAssistant, "done", calls, 12)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	calls[0].ToolName = "mutated"
	if msg.ToolCalls()[0].ToolName != "create_ticket" {
		t.Fatal("message must not alias caller's slice")
	}
}

func TestStatsPeriod_Since(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	if got := PeriodWeek.Since(now); !got.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("week: got %v", got)
	}
	if got := StatsPeriod("year").Since(now); !got.Equal(now.AddDate(0, 0, -1)) {
		t.Errorf("unknown period should fall back to a day, got %v", got)
	}
}
