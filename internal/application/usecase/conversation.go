package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/transcript"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// ConversationUseCase reads and updates stored conversations.
type ConversationUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	renderer      *transcript.Renderer
	logger        *zap.Logger
}

func NewConversationUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	renderer *transcript.Renderer,
	logger *zap.Logger,
) *ConversationUseCase {
	if renderer == nil {
		renderer = transcript.NewRenderer()
	}
	return &ConversationUseCase{
		conversations: conversations,
		messages:      messages,
		renderer:      renderer,
		logger:        logger.With(zap.String("component", "conversations")),
	}
}

// Messages returns a page of the conversation in stored order. limit <= 0
// returns everything from offset on.
func (uc *ConversationUseCase) Messages(ctx context.Context, id string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := uc.conversations.FindByID(ctx, id); err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		return nil, 0, apperrors.NewInvalidInputError("offset must not be negative")
	}
	msgs, err := uc.messages.FindByConversationID(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := uc.messages.Count(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (uc *ConversationUseCase) Transcript(ctx context.Context, id string) (*transcript.Transcript, error) {
	conv, err := uc.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.messages.FindByConversationID(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	return uc.renderer.Render(conv, msgs)
}

func (uc *ConversationUseCase) UpdateStatus(ctx context.Context, id string, status entity.ConversationStatus) (*entity.Conversation, error) {
	if err := uc.conversations.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	uc.logger.Info("Conversation status updated",
		zap.String("conversation_id", id),
		zap.String("status", string(status)),
	)
	return uc.conversations.FindByID(ctx, id)
}

func (uc *ConversationUseCase) ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Conversation, error) {
	if !entity.IsValidEmail(email) {
		return nil, apperrors.NewInvalidInputError("a valid email is required")
	}
	return uc.conversations.ListByEmail(ctx, email, limit)
}
