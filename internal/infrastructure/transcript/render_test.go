package transcript

import (
	"strings"
	"testing"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

func TestRenderer_Render(t *testing.T) {
	conv, _ := entity.NewConversation("conv_1_abc", "jane@example.com")
	user, _ := entity.NewMessage("m1", conv.ID(), entity.RoleUser, "Where is order **10001**?", nil, 0)
	assistant, _ := entity.NewMessage("m2", conv.ID(), entity.RoleAssistant, "It has shipped.", []entity.ToolInvocation{
		{ID: "c1", ToolName: "get_order_status", Status: entity.ToolSucceeded},
	}, 12)
	tool, _ := entity.NewMessage("m3", conv.ID(), entity.RoleTool, `{"found":true}`, nil, 0)

	tr, err := NewRenderer().Render(conv, []*entity.Message{user, assistant, tool})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{"# Conversation conv_1_abc", "jane@example.com", "Tool `get_order_status`: succeeded"} {
		if !strings.Contains(tr.Markdown, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(tr.Markdown, `{"found":true}`) {
		t.Error("raw tool output should not be in the transcript")
	}
	if !strings.Contains(tr.HTML, "<strong>10001</strong>") {
		t.Errorf("markdown not rendered: %s", tr.HTML)
	}
}

func TestRenderer_DropsRawHTML(t *testing.T) {
	conv, _ := entity.NewConversation("conv_2_abc", "")
	user, _ := entity.NewMessage("m1", conv.ID(), entity.RoleUser, "<script>alert(1)</script>", nil, 0)

	tr, err := NewRenderer().Render(conv, []*entity.Message{user})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(tr.HTML, "<script>") {
		t.Fatalf("raw HTML passed through: %s", tr.HTML)
	}
	if strings.Contains(tr.Markdown, "Customer:**") {
		t.Error("anonymous conversation should have no customer line")
	}
}
