package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SlashCommand is a parsed /command line.
type SlashCommand struct {
	Name string
	Args []string
}

// ParseSlashCommand returns nil when input is not a command.
func ParseSlashCommand(input string) *SlashCommand {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return &SlashCommand{Name: name, Args: args}
}

// CommandKind tells the REPL what a command needs beyond printing Output.
type CommandKind int

const (
	CommandPrint CommandKind = iota
	CommandQuit
	CommandReset
	CommandSetEmail
	CommandOrders
	CommandTickets
	CommandRate
)

// CommandResult is the outcome of a slash command.
type CommandResult struct {
	Kind   CommandKind
	Output string
	Arg    string
}

// ExecuteCommand resolves a slash command. Commands that need the gateway
// are returned as kinds for the REPL to carry out.
func ExecuteCommand(cmd *SlashCommand, state SessionState) CommandResult {
	switch cmd.Name {
	case "help", "h":
		return CommandResult{Output: renderHelp()}
	case "exit", "quit", "q":
		return CommandResult{Kind: CommandQuit}
	case "new", "reset":
		return CommandResult{Kind: CommandReset, Output: "Started a new conversation"}
	case "status", "s":
		return CommandResult{Output: renderStatus(state)}
	case "email", "e":
		if len(cmd.Args) == 0 {
			return CommandResult{Output: "usage: /email <address>"}
		}
		return CommandResult{Kind: CommandSetEmail, Arg: cmd.Args[0]}
	case "orders", "o":
		return CommandResult{Kind: CommandOrders}
	case "tickets", "t":
		return CommandResult{Kind: CommandTickets}
	case "rate":
		if len(cmd.Args) == 0 {
			return CommandResult{Output: "usage: /rate <1-5> [comment]"}
		}
		return CommandResult{Kind: CommandRate, Arg: strings.Join(cmd.Args, " ")}
	case "version":
		return CommandResult{Output: fmt.Sprintf("support v%s", appVersion)}
	default:
		return CommandResult{Output: fmt.Sprintf("unknown command: /%s, type /help for the list", cmd.Name)}
	}
}

// SessionState is what /status shows.
type SessionState struct {
	Gateway        string
	Email          string
	ConversationID string
}

func renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	cmdStyle := lipgloss.NewStyle().Foreground(colorGreen)
	descStyle := lipgloss.NewStyle().Foreground(colorGray)

	cmds := []struct {
		name string
		desc string
	}{
		{"/help", "show this help"},
		{"/email <address>", "identify yourself for order lookups"},
		{"/orders", "list your orders"},
		{"/tickets", "list your support tickets"},
		{"/rate <1-5> [text]", "rate this conversation"},
		{"/new", "start a new conversation"},
		{"/status", "show session details"},
		{"/version", "show version"},
		{"/exit", "quit"},
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ Commands"))
	sb.WriteString("\n\n")

	for _, c := range cmds {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			cmdStyle.Render(fmt.Sprintf("%-20s", c.name)),
			descStyle.Render(c.desc),
		))
	}

	return sb.String()
}

func renderStatus(state SessionState) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	orNone := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ Session"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("gateway:     "), valueStyle.Render(state.Gateway)))
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("email:       "), valueStyle.Render(orNone(state.Email))))
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("conversation:"), valueStyle.Render(orNone(state.ConversationID))))

	return sb.String()
}
