package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	toolpkg "github.com/KH-Pua/ai-chatbot/internal/infrastructure/tool"
)

// Renderer turns replies, tool activity and lookups into terminal output.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
}

func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{
		glamour: r,
		width:   width,
	}
}

// RenderMarkdown falls back to the raw text when styling fails.
func (r *Renderer) RenderMarkdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

func (r *Renderer) RenderToolCall(tc *entity.ToolCallEvent, spinnerFrame string) string {
	if tc == nil {
		return ""
	}

	iconStyle := lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	nameStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	argStyle := lipgloss.NewStyle().Foreground(colorGray)

	return fmt.Sprintf("  %s %s %s",
		iconStyle.Render(spinnerFrame),
		nameStyle.Render(toolLabel(tc.Name)),
		argStyle.Render(summarizeArgs(tc.Arguments)),
	)
}

func (r *Renderer) RenderToolResult(tc *entity.ToolCallEvent) string {
	if tc == nil {
		return ""
	}

	var icon string
	if tc.Success {
		icon = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	} else {
		icon = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	}

	nameStyle := lipgloss.NewStyle().Foreground(colorCyan)
	durStyle := lipgloss.NewStyle().Foreground(colorGray)

	dur := ""
	if tc.Duration > 0 {
		dur = durStyle.Render(fmt.Sprintf(" (%s)", formatDuration(tc.Duration)))
	}
	out := fmt.Sprintf("  %s %s%s", icon, nameStyle.Render(toolLabel(tc.Name)), dur)
	if !tc.Success && tc.Error != "" {
		out += " " + durStyle.Render(tc.Error)
	}
	return out
}

// RenderFinish is the dim summary line after a reply.
func (r *Renderer) RenderFinish(f *entity.FinishInfo) string {
	if f == nil {
		return ""
	}
	parts := []string{string(f.Reason)}
	if f.ToolRoundTrips > 0 {
		parts = append(parts, fmt.Sprintf("%d tool rounds", f.ToolRoundTrips))
	}
	if f.Usage.TotalTokens > 0 {
		parts = append(parts, fmtTokens(f.Usage.TotalTokens)+" tokens")
	}
	if f.ModelUsed != "" {
		parts = append(parts, f.ModelUsed)
	}
	return lipgloss.NewStyle().Foreground(colorDim).Render("─── " + strings.Join(parts, " · ") + " ───")
}

func (r *Renderer) RenderError(msg string) string {
	return lipgloss.NewStyle().Foreground(colorRed).Bold(true).Render("✗ " + msg)
}

// RenderOrders lists orders as a markdown table.
func (r *Renderer) RenderOrders(orders []entity.Order) string {
	if len(orders) == 0 {
		return r.RenderMarkdown("_No orders found._")
	}
	var sb strings.Builder
	sb.WriteString("| Order | Status | Total | Tracking | Placed |\n|---|---|---|---|---|\n")
	for _, o := range orders {
		tracking := o.TrackingNumber
		if tracking == "" {
			tracking = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | $%.2f | %s | %s |\n",
			o.ID, o.Status, float64(o.TotalCents)/100, tracking, o.CreatedAt.Format("2006-01-02")))
	}
	return r.RenderMarkdown(sb.String())
}

// RenderTickets lists tickets as a markdown table.
func (r *Renderer) RenderTickets(tickets []entity.Ticket) string {
	if len(tickets) == 0 {
		return r.RenderMarkdown("_No tickets found._")
	}
	var sb strings.Builder
	sb.WriteString("| Ticket | Subject | Priority | Status | Opened |\n|---|---|---|---|---|\n")
	for _, t := range tickets {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			t.ID, strings.ReplaceAll(t.Subject, "|", "/"), t.Priority, t.Status, t.CreatedAt.Format("2006-01-02")))
	}
	return r.RenderMarkdown(sb.String())
}

func toolLabel(name string) string {
	switch name {
	case toolpkg.SearchKnowledgeToolName:
		return "searching help articles"
	case toolpkg.CreateTicketToolName:
		return "creating a ticket"
	case toolpkg.OrderStatusToolName:
		return "looking up your order"
	case toolpkg.TransferToAgentToolName:
		return "contacting a human agent"
	}
	return name
}

// summarizeArgs picks the most telling argument for compact display.
func summarizeArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	for _, key := range []string{"query", "orderId", "subject", "reason"} {
		if v, ok := args[key]; ok {
			return truncate(fmt.Sprintf("%v", v), 60)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func fmtTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000.0)
	}
	return fmt.Sprintf("%d", n)
}
