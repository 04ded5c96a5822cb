package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/prompt"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// MessagePart is one part of a client message. Only text parts are kept.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// InputMessage is a message as submitted by a chat client, either with
// plain content or with parts.
type InputMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []MessagePart `json:"parts,omitempty"`
}

// ChatTurnInput is one chat submission.
type ChatTurnInput struct {
	ConversationID string
	CustomerEmail  string
	Messages       []InputMessage
}

// ChatTurn is a started turn. Events is closed after the finish event.
type ChatTurn struct {
	ConversationID string
	Sentiment      entity.Sentiment
	Events         <-chan entity.ChatEvent
}

// PromptComposer builds the system prompt of a turn.
type PromptComposer interface {
	Compose(in prompt.ComposeInput) string
}

// ChatTurnConfig bounds the history replayed to the model.
type ChatTurnConfig struct {
	MaxHistory         int // default 50
	ToolOutputMaxChars int // stored tool output replayed to the model, default 8000
	PersistTimeout     time.Duration
}

// ChatTurnUseCase runs one customer message through the chat loop and
// records everything the turn produced.
type ChatTurnUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	composer      PromptComposer
	loop          *service.ChatLoop
	locker        *service.TurnLocker
	publisher     eventbus.Publisher
	config        ChatTurnConfig
	logger        *zap.Logger
	now           func() time.Time
}

func NewChatTurnUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	composer PromptComposer,
	loop *service.ChatLoop,
	locker *service.TurnLocker,
	publisher eventbus.Publisher,
	config ChatTurnConfig,
	logger *zap.Logger,
) *ChatTurnUseCase {
	if config.MaxHistory <= 0 {
		config.MaxHistory = 50
	}
	if config.ToolOutputMaxChars <= 0 {
		config.ToolOutputMaxChars = 8000
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = 10 * time.Second
	}
	if locker == nil {
		locker = service.NewTurnLocker()
	}
	return &ChatTurnUseCase{
		conversations: conversations,
		messages:      messages,
		composer:      composer,
		loop:          loop,
		locker:        locker,
		publisher:     publisher,
		config:        config,
		logger:        logger.With(zap.String("component", "chat-turn")),
		now:           time.Now,
	}
}

// Execute validates the submission, waits for the conversation's previous
// turn to finish and starts the loop. Errors returned here happen before
// any event is produced; later failures arrive as error events.
func (uc *ChatTurnUseCase) Execute(ctx context.Context, in ChatTurnInput) (*ChatTurn, error) {
	history := NormalizeMessages(in.Messages)
	latest := lastUserMessage(history)
	if latest == "" {
		return nil, apperrors.NewInvalidInputError("the last message must be a non-empty user message")
	}
	email := strings.TrimSpace(in.CustomerEmail)
	if email != "" && !entity.IsValidEmail(email) {
		return nil, apperrors.NewInvalidInputErrorf("invalid customer email: %s", email)
	}

	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = service.NewConversationID(uc.now())
	}

	unlock, err := uc.locker.Lock(ctx, convID)
	if err != nil {
		return nil, err
	}

	turn, err := uc.start(ctx, convID, email, history, latest, unlock)
	if err != nil {
		unlock()
		return nil, err
	}
	return turn, nil
}

func (uc *ChatTurnUseCase) start(ctx context.Context, convID, email string, history []service.LLMMessage, latest string, unlock func()) (*ChatTurn, error) {
	startedAt := uc.now()

	conv, err := uc.getOrCreateConversation(ctx, convID, email)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = conv.CustomerEmail()
	}

	// Clients that send only the new message get the stored conversation
	// replayed in front of it.
	if len(history) == 1 {
		if stored, err := uc.messages.FindByConversationID(ctx, convID, 0, 0); err != nil {
			uc.logger.Warn("Failed to load stored history",
				zap.String("conversation_id", convID),
				zap.Error(err),
			)
		} else if len(stored) > 0 {
			history = append(uc.replay(stored), history...)
		}
	}

	sentiment := service.ClassifySentiment(toChatMessages(history))
	if sentiment != conv.Sentiment() {
		if err := uc.conversations.UpdateSentiment(ctx, convID, sentiment); err != nil {
			uc.logger.Warn("Failed to store sentiment",
				zap.String("conversation_id", convID),
				zap.Error(err),
			)
		}
	}

	userMsg, err := entity.NewMessage(uuid.NewString(), convID, entity.RoleUser, latest, nil, 0)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := uc.messages.Save(ctx, userMsg); err != nil {
		return nil, err
	}

	history = service.TrimHistory(service.SanitizeHistory(history), uc.config.MaxHistory)
	systemPrompt := uc.composer.Compose(prompt.ComposeInput{
		Sentiment:      sentiment,
		CustomerEmail:  email,
		ConversationID: convID,
	})

	uc.logger.Info("Chat turn started",
		zap.String("conversation_id", convID),
		zap.String("sentiment", string(sentiment)),
		zap.Int("history", len(history)),
	)

	loopCtx := domaintool.WithCallContext(ctx, domaintool.CallContext{
		ConversationID: convID,
		CustomerEmail:  email,
	})
	result, loopEvents := uc.loop.Run(loopCtx, systemPrompt, history)

	out := make(chan entity.ChatEvent, cap(loopEvents))
	go func() {
		defer unlock()
		defer close(out)
		uc.relay(ctx, convID, sentiment, startedAt, result, loopEvents, out)
	}()

	return &ChatTurn{
		ConversationID: convID,
		Sentiment:      sentiment,
		Events:         out,
	}, nil
}

// relay forwards loop events and holds the finish event back until the
// turn's messages are stored, so a client that saw finish can read them.
func (uc *ChatTurnUseCase) relay(
	ctx context.Context,
	convID string,
	sentiment entity.Sentiment,
	startedAt time.Time,
	result *service.TurnResult,
	loopEvents <-chan entity.ChatEvent,
	out chan<- entity.ChatEvent,
) {
	send := func(ev entity.ChatEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	var finish *entity.ChatEvent
	for ev := range loopEvents {
		if ev.Type == entity.EventFinish {
			f := ev
			finish = &f
			continue
		}
		send(ev)
	}

	// A cancelled request still stores what the model already produced.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.config.PersistTimeout)
	defer cancel()
	if err := uc.persistTurn(persistCtx, convID, result); err != nil {
		uc.logger.Error("Failed to persist turn",
			zap.String("conversation_id", convID),
			zap.Error(err),
		)
	}

	duration := uc.now().Sub(startedAt)
	uc.logger.Info("Chat turn finished",
		zap.String("conversation_id", convID),
		zap.String("finish_reason", string(result.FinishReason)),
		zap.Int("steps", result.Steps),
		zap.Int("tool_round_trips", result.ToolRoundTrips),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)
	if uc.publisher != nil {
		uc.publisher.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeChatTurn, eventbus.ChatTurnPayload{
			ConversationID:   convID,
			Sentiment:        sentiment,
			FinishReason:     result.FinishReason,
			Steps:            result.Steps,
			ToolRoundTrips:   result.ToolRoundTrips,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			Model:            result.ModelUsed,
			Duration:         duration,
		}))
	}

	if finish != nil {
		if finish.Finish != nil {
			finish.Finish.ConversationID = convID
		}
		send(*finish)
	}
}

func (uc *ChatTurnUseCase) getOrCreateConversation(ctx context.Context, convID, email string) (*entity.Conversation, error) {
	conv, err := uc.conversations.FindByID(ctx, convID)
	if err == nil {
		if conv.AttachEmail(email) {
			if err := uc.conversations.Update(ctx, conv); err != nil {
				uc.logger.Warn("Failed to attach email to conversation",
					zap.String("conversation_id", convID),
					zap.Error(err),
				)
			}
		}
		return conv, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	conv, err = entity.NewConversation(convID, email)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := uc.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	uc.logger.Info("Conversation created",
		zap.String("conversation_id", convID),
		zap.Bool("has_email", email != ""),
	)
	return conv, nil
}

// persistTurn stores the assistant and tool messages of the turn in one
// batch. Tool calls on assistant messages carry their recorded outcome.
func (uc *ChatTurnUseCase) persistTurn(ctx context.Context, convID string, result *service.TurnResult) error {
	if len(result.NewMessages) == 0 {
		return nil
	}

	outcomes := make(map[string]entity.ToolInvocation, len(result.Invocations))
	for _, inv := range result.Invocations {
		outcomes[inv.ID] = inv
	}

	lastAssistant := -1
	for i, m := range result.NewMessages {
		if m.Role == string(entity.RoleAssistant) {
			lastAssistant = i
		}
	}

	batch := make([]*entity.Message, 0, len(result.NewMessages))
	for i, m := range result.NewMessages {
		var calls []entity.ToolInvocation
		for _, tc := range m.ToolCalls {
			inv, ok := outcomes[tc.ID]
			if !ok {
				inv = entity.ToolInvocation{ID: tc.ID, ToolName: tc.Name, Input: tc.Arguments, Status: entity.ToolFailed}
			}
			calls = append(calls, inv)
		}
		tokens := 0
		if i == lastAssistant {
			tokens = result.Usage.CompletionTokens
		}
		msg, err := entity.NewMessage(uuid.NewString(), convID, entity.MessageRole(m.Role), m.Content, calls, tokens)
		if err != nil {
			return err
		}
		batch = append(batch, msg)
	}
	return uc.messages.SaveBatch(ctx, batch)
}

// replay turns stored messages back into model history. Tool messages do
// not store their call ID, so they are matched to the preceding
// assistant's calls in order.
func (uc *ChatTurnUseCase) replay(stored []*entity.Message) []service.LLMMessage {
	out := make([]service.LLMMessage, 0, len(stored))
	var pending []entity.ToolInvocation
	for _, m := range stored {
		switch m.Role() {
		case entity.RoleUser:
			pending = nil
			out = append(out, service.LLMMessage{Role: string(entity.RoleUser), Content: m.Content()})
		case entity.RoleAssistant:
			msg := service.LLMMessage{Role: string(entity.RoleAssistant), Content: m.Content()}
			pending = m.ToolCalls()
			for _, tc := range pending {
				msg.ToolCalls = append(msg.ToolCalls, entity.ToolCallInfo{ID: tc.ID, Name: tc.ToolName, Arguments: tc.Input})
			}
			out = append(out, msg)
		case entity.RoleTool:
			if len(pending) == 0 {
				continue
			}
			tc := pending[0]
			pending = pending[1:]
			out = append(out, service.LLMMessage{
				Role:       string(entity.RoleTool),
				Content:    service.TruncateToolOutput(m.Content(), uc.config.ToolOutputMaxChars),
				ToolCallID: tc.ID,
				Name:       tc.ToolName,
			})
		}
	}
	return out
}

// NormalizeMessages joins the text parts of each message and keeps only
// user and assistant messages. Clients cannot inject system or tool
// messages.
func NormalizeMessages(in []InputMessage) []service.LLMMessage {
	out := make([]service.LLMMessage, 0, len(in))
	for _, m := range in {
		role := entity.MessageRole(strings.ToLower(strings.TrimSpace(m.Role)))
		if role != entity.RoleUser && role != entity.RoleAssistant {
			continue
		}
		content := m.Content
		if len(m.Parts) > 0 {
			var b strings.Builder
			for _, p := range m.Parts {
				if p.Type == "text" {
					b.WriteString(p.Text)
				}
			}
			content = b.String()
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, service.LLMMessage{Role: string(role), Content: content})
	}
	return out
}

func lastUserMessage(history []service.LLMMessage) string {
	if len(history) == 0 {
		return ""
	}
	last := history[len(history)-1]
	if last.Role != string(entity.RoleUser) {
		return ""
	}
	return last.Content
}

func toChatMessages(history []service.LLMMessage) []service.ChatMessage {
	out := make([]service.ChatMessage, 0, len(history))
	for _, m := range history {
		out = append(out, service.ChatMessage{Role: entity.MessageRole(m.Role), Content: m.Content})
	}
	return out
}
