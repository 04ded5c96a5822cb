package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// MemoryConversationRepository keeps conversations in memory (development and tests).
type MemoryConversationRepository struct {
	mu    sync.RWMutex
	convs map[string]conversationRecord
}

// conversationRecord is a snapshot so callers cannot mutate stored state.
type conversationRecord struct {
	id, email string
	status    entity.ConversationStatus
	sentiment entity.Sentiment
	createdAt time.Time
	updatedAt time.Time
}

func (c conversationRecord) entity() *entity.Conversation {
	return entity.ReconstructConversation(c.id, c.email, c.status, c.sentiment, c.createdAt, c.updatedAt)
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		convs: make(map[string]conversationRecord),
	}
}

var _ repository.ConversationRepository = (*MemoryConversationRepository)(nil)

func (r *MemoryConversationRepository) Create(ctx context.Context, conv *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.convs[conv.ID()]; exists {
		return errors.NewAlreadyExistsError("conversation already exists: " + conv.ID())
	}
	r.convs[conv.ID()] = conversationRecord{
		id:        conv.ID(),
		email:     conv.CustomerEmail(),
		status:    conv.Status(),
		sentiment: conv.Sentiment(),
		createdAt: conv.CreatedAt(),
		updatedAt: conv.UpdatedAt(),
	}
	return nil
}

func (r *MemoryConversationRepository) FindByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.convs[id]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found: " + id)
	}
	return rec.entity(), nil
}

func (r *MemoryConversationRepository) Update(ctx context.Context, conv *entity.Conversation) error {
	return r.mutate(conv.ID(), func(rec *conversationRecord) {
		rec.email = conv.CustomerEmail()
		rec.status = conv.Status()
		rec.sentiment = conv.Sentiment()
	})
}

func (r *MemoryConversationRepository) UpdateSentiment(ctx context.Context, id string, sentiment entity.Sentiment) error {
	return r.mutate(id, func(rec *conversationRecord) { rec.sentiment = sentiment })
}

func (r *MemoryConversationRepository) UpdateStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	if !status.Valid() {
		return errors.NewInvalidInputErrorf("invalid conversation status: %s", status)
	}
	return r.mutate(id, func(rec *conversationRecord) { rec.status = status })
}

func (r *MemoryConversationRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recs []conversationRecord
	for _, rec := range r.convs {
		if rec.email == email {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].createdAt.After(recs[j].createdAt) })
	if len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]*entity.Conversation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entity())
	}
	return out, nil
}

// countSince backs MemoryAnalyticsRepository.
func (r *MemoryConversationRepository) countSince(since time.Time) (total, escalated int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.convs {
		if rec.createdAt.Before(since) {
			continue
		}
		total++
		if rec.status == entity.ConversationEscalated {
			escalated++
		}
	}
	return total, escalated
}

func (r *MemoryConversationRepository) mutate(id string, fn func(*conversationRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.convs[id]
	if !ok {
		return errors.NewNotFoundError("conversation not found: " + id)
	}
	fn(&rec)
	rec.updatedAt = time.Now()
	r.convs[id] = rec
	return nil
}

// MemoryMessageRepository keeps the message log in memory (development and tests).
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[string][]*entity.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[string][]*entity.Message),
	}
}

var _ repository.MessageRepository = (*MemoryMessageRepository)(nil)

func (r *MemoryMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	return r.SaveBatch(ctx, []*entity.Message{message})
}

func (r *MemoryMessageRepository) SaveBatch(ctx context.Context, messages []*entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range messages {
		convID := msg.ConversationID()
		r.messages[convID] = append(r.messages[convID], msg)
	}
	return nil
}

func (r *MemoryMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	total := len(all)
	if offset >= total {
		return []*entity.Message{}, nil
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	out := make([]*entity.Message, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

func (r *MemoryMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.messages[conversationID])), nil
}
