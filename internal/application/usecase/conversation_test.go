package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

func seedConversation(t *testing.T, repos *persistence.Repositories, id, email string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	conv, err := entity.NewConversation(id, email)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if err := repos.Conversations.Create(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	var msgs []*entity.Message
	for i, text := range texts {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		m, err := entity.NewMessage(fmt.Sprintf("%s_msg_%d", id, i), id, role, text, nil, 0)
		if err != nil {
			t.Fatalf("new message: %v", err)
		}
		msgs = append(msgs, m)
	}
	if err := repos.Messages.SaveBatch(ctx, msgs); err != nil {
		t.Fatalf("save messages: %v", err)
	}
}

func TestConversation_MessagesPaged(t *testing.T) {
	repos := persistence.NewMemoryRepositories()
	seedConversation(t, repos, "conv_1", "", "one", "two", "three", "four")
	uc := usecase.NewConversationUseCase(repos.Conversations, repos.Messages, nil, zap.NewNop())
	ctx := context.Background()

	msgs, total, err := uc.Messages(ctx, "conv_1", 2, 1)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if total != 4 || len(msgs) != 2 || msgs[0].Content() != "two" {
		t.Errorf("page = %d msgs, total %d", len(msgs), total)
	}

	if _, _, err := uc.Messages(ctx, "conv_missing", 0, 0); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, _, err := uc.Messages(ctx, "conv_1", 0, -1); !apperrors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestConversation_Transcript(t *testing.T) {
	repos := persistence.NewMemoryRepositories()
	seedConversation(t, repos, "conv_1", "jane@example.com", "Where is my order?", "It shipped **today**.")
	uc := usecase.NewConversationUseCase(repos.Conversations, repos.Messages, nil, zap.NewNop())

	tr, err := uc.Transcript(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if !strings.Contains(tr.Markdown, "jane@example.com") || !strings.Contains(tr.HTML, "<strong>today</strong>") {
		t.Errorf("unexpected transcript:\n%s", tr.Markdown)
	}
}

func TestConversation_UpdateStatusAndList(t *testing.T) {
	repos := persistence.NewMemoryRepositories()
	seedConversation(t, repos, "conv_1", "jane@example.com", "hi")
	uc := usecase.NewConversationUseCase(repos.Conversations, repos.Messages, nil, zap.NewNop())
	ctx := context.Background()

	conv, err := uc.UpdateStatus(ctx, "conv_1", entity.ConversationResolved)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if conv.Status() != entity.ConversationResolved {
		t.Errorf("status = %s", conv.Status())
	}
	if _, err := uc.UpdateStatus(ctx, "conv_1", "archived"); !apperrors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}

	list, err := uc.ListByEmail(ctx, "jane@example.com", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByEmail = %d, %v", len(list), err)
	}
	if _, err := uc.ListByEmail(ctx, "bad", 10); !apperrors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}
