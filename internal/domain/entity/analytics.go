package entity

import "time"

// Metric names written to the analytics log.
const (
	MetricChatTurn      = "chat_turn"
	MetricToolCall      = "tool_call"
	MetricTicketCreated = "ticket_created"
	MetricAgentTransfer = "agent_transfer"
	MetricRateLimited   = "rate_limited"
)

// AnalyticsRecord is one data point in the metric log.
type AnalyticsRecord struct {
	ID        string                 `json:"id"`
	Metric    string                 `json:"metric"`
	Value     float64                `json:"value"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// StatsPeriod is the look-back window of the dashboard.
type StatsPeriod string

const (
	PeriodDay   StatsPeriod = "day"
	PeriodWeek  StatsPeriod = "week"
	PeriodMonth StatsPeriod = "month"
)

// Since returns the start of the period ending at now. Unknown periods
// fall back to a day.
func (p StatsPeriod) Since(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -1)
	}
}

// DashboardStats summarises support activity over a period.
type DashboardStats struct {
	Period             StatsPeriod `json:"period"`
	TotalConversations int64       `json:"total_conversations"`
	TotalTickets       int64       `json:"total_tickets"`
	ResolvedTickets    int64       `json:"resolved_tickets"`
	ResolutionRate     float64     `json:"resolution_rate"`
	AverageRating      float64     `json:"average_rating"`
	EscalatedCount     int64       `json:"escalated_conversations"`
}
