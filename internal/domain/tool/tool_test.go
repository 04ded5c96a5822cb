package tool

import (
	"context"
	"strings"
	"testing"
)

type ticketInput struct {
	Subject  string `json:"subject" validate:"required,notblank"`
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
	Email    string `json:"customerEmail" validate:"required,email_syntax"`
	TopK     *int   `json:"topK,omitempty" validate:"omitempty,min=1,max=10"`
}

func newTestTool(calls *int) *TypedTool[ticketInput] {
	return NewTypedTool("create_ticket", "test", KindWrite,
		map[string]interface{}{"type": "object"},
		func(ctx context.Context, in ticketInput) (*Result, error) {
			*calls++
			return JSONResult(map[string]string{"subject": in.Subject})
		})
}

func TestTypedTool_ValidInput(t *testing.T) {
	calls := 0
	tl := newTestTool(&calls)

	res, err := tl.Execute(context.Background(), map[string]interface{}{
		"subject":       "Broken headphones",
		"priority":      "urgent",
		"customerEmail": "jane@example.com",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.Output != `{"subject":"Broken headphones"}` {
		t.Fatalf("unexpected result %+v", res)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls)
	}
}

func TestTypedTool_InvalidInputNeverReachesHandler(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]interface{}
		wantField string
		wantRule  string
	}{
		{
			name:      "missing subject",
			args:      map[string]interface{}{"priority": "low", "customerEmail": "a@b.co"},
			wantField: "subject",
			wantRule:  "required",
		},
		{
			name:      "blank subject",
			args:      map[string]interface{}{"subject": " \t\n ", "priority": "low", "customerEmail": "a@b.co"},
			wantField: "subject",
			wantRule:  "notblank",
		},
		{
			name:      "bad priority",
			args:      map[string]interface{}{"subject": "x", "priority": "critical", "customerEmail": "a@b.co"},
			wantField: "priority",
			wantRule:  "oneof",
		},
		{
			name:      "bad email",
			args:      map[string]interface{}{"subject": "x", "priority": "low", "customerEmail": "not-an-email"},
			wantField: "customerEmail",
			wantRule:  "email_syntax",
		},
		{
			name:      "wrong type",
			args:      map[string]interface{}{"subject": 42, "priority": "low", "customerEmail": "a@b.co"},
			wantField: "subject",
			wantRule:  "type",
		},
		{
			name:      "topK out of range",
			args:      map[string]interface{}{"subject": "x", "priority": "low", "customerEmail": "a@b.co", "topK": 50},
			wantField: "topK",
			wantRule:  "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			tl := newTestTool(&calls)
			_, err := tl.Execute(context.Background(), tt.args)
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !IsValidationError(err) {
				t.Fatal("IsValidationError should be true")
			}
			found := false
			for _, f := range ve.Fields {
				if f.Field == tt.wantField && f.Rule == tt.wantRule {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s/%s in %+v", tt.wantField, tt.wantRule, ve.Fields)
			}
			if calls != 0 {
				t.Fatal("handler must not run on invalid input")
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Tool: "create_ticket", Fields: []FieldError{
		{Field: "priority", Rule: "oneof", Param: "low medium high urgent"},
		{Field: "customerEmail", Rule: "email_syntax"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "priority must be one of [low medium high urgent]") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "customerEmail must be a valid email address") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestInMemoryRegistry(t *testing.T) {
	reg := NewInMemoryRegistry()
	calls := 0
	if err := reg.Register(newTestTool(&calls)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(newTestTool(&calls)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	second := NewTypedTool("transfer_to_agent", "test", KindCommunicate, nil,
		func(ctx context.Context, in struct{}) (*Result, error) { return &Result{Success: true}, nil })
	if err := reg.Register(second); err != nil {
		t.Fatalf("Register: %v", err)
	}

	defs := reg.List()
	if len(defs) != 2 || defs[0].Name != "create_ticket" || defs[1].Name != "transfer_to_agent" {
		t.Fatalf("expected registration order, got %+v", defs)
	}
	if !reg.Has("transfer_to_agent") || reg.Has("missing") {
		t.Fatal("Has returned wrong answer")
	}
}

func TestCallContext(t *testing.T) {
	ctx := WithCallContext(context.Background(), CallContext{ConversationID: "conv_1", CustomerEmail: "a@b.co"})
	cc, ok := CallContextFrom(ctx)
	if !ok || cc.ConversationID != "conv_1" {
		t.Fatalf("unexpected call context %+v", cc)
	}
	if _, ok := CallContextFrom(context.Background()); ok {
		t.Fatal("expected no call context")
	}
}
