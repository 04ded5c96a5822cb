package cli

import (
	"strings"
	"testing"
)

func TestParseSlashCommand(t *testing.T) {
	if ParseSlashCommand("where is my order?") != nil {
		t.Error("plain text parsed as a command")
	}
	cmd := ParseSlashCommand("  /rate 5 great help ")
	if cmd == nil || cmd.Name != "rate" || len(cmd.Args) != 3 || cmd.Args[0] != "5" || cmd.Args[2] != "help" {
		t.Errorf("cmd = %+v", cmd)
	}
	if cmd := ParseSlashCommand("/new"); cmd == nil || cmd.Name != "new" || len(cmd.Args) != 0 {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestExecuteCommand(t *testing.T) {
	state := SessionState{Gateway: "http://localhost:8080", Email: "jane@example.com", ConversationID: "conv_1"}
	tests := []struct {
		input string
		kind  CommandKind
		arg   string
		out   string
	}{
		{"/quit", CommandQuit, "", ""},
		{"/new", CommandReset, "", "new conversation"},
		{"/email jane@example.com", CommandSetEmail, "jane@example.com", ""},
		{"/email", CommandPrint, "", "usage"},
		{"/orders", CommandOrders, "", ""},
		{"/t", CommandTickets, "", ""},
		{"/rate 4 fast", CommandRate, "4 fast", ""},
		{"/status", CommandPrint, "", "conv_1"},
		{"/bogus", CommandPrint, "", "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExecuteCommand(ParseSlashCommand(tt.input), state)
			if got.Kind != tt.kind || got.Arg != tt.arg {
				t.Errorf("got kind %d arg %q", got.Kind, got.Arg)
			}
			if !strings.Contains(got.Output, tt.out) {
				t.Errorf("output %q does not contain %q", got.Output, tt.out)
			}
		})
	}
}
