package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/pkg/errors"
)

// MemoryTicketRepository keeps tickets in memory.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]entity.Ticket
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]entity.Ticket)}
}

var _ repository.TicketRepository = (*MemoryTicketRepository)(nil)

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	if err := prepareTicket(ticket, time.Now().UTC()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return errors.NewAlreadyExistsError("ticket already exists: " + ticket.ID)
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) FindByID(ctx context.Context, id string) (*entity.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, errors.NewNotFoundError("ticket not found: " + id)
	}
	return &t, nil
}

func (r *MemoryTicketRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*entity.Ticket, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Ticket
	for _, t := range r.tickets {
		if t.CustomerEmail == email {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryTicketRepository) UpdateStatus(ctx context.Context, id string, status entity.TicketStatus, resolution string) (*entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, errors.NewNotFoundError("ticket not found: " + id)
	}
	if err := applyTicketStatus(&t, status, resolution, time.Now().UTC()); err != nil {
		return nil, err
	}
	r.tickets[id] = t
	return &t, nil
}

func (r *MemoryTicketRepository) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total, resolved int64
	for _, t := range r.tickets {
		if t.CreatedAt.Before(since) {
			continue
		}
		total++
		if t.Status.Terminal() {
			resolved++
		}
	}
	return total, resolved, nil
}

// MemoryOrderRepository keeps orders in memory.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]entity.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]entity.Order)}
}

var _ repository.OrderRepository = (*MemoryOrderRepository)(nil)

func (r *MemoryOrderRepository) FindByIDAndEmail(ctx context.Context, id, email string) (*entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok || normalizeEmail(o.CustomerEmail) != normalizeEmail(email) {
		return nil, errors.NewNotFoundError("order not found")
	}
	return &o, nil
}

func (r *MemoryOrderRepository) ListByEmail(ctx context.Context, email string) ([]*entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Order
	for _, o := range r.orders {
		if normalizeEmail(o.CustomerEmail) == normalizeEmail(email) {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryOrderRepository) Upsert(ctx context.Context, order *entity.Order) error {
	if order.ID == "" {
		return errors.NewInvalidInputError("order id is required")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *order
	stored.Items = append([]entity.OrderItem(nil), order.Items...)
	r.orders[order.ID] = stored
	return nil
}

// MemoryFeedbackRepository keeps feedback in memory.
type MemoryFeedbackRepository struct {
	mu       sync.RWMutex
	feedback []entity.Feedback
}

func NewMemoryFeedbackRepository() *MemoryFeedbackRepository {
	return &MemoryFeedbackRepository{}
}

var _ repository.FeedbackRepository = (*MemoryFeedbackRepository)(nil)

func (r *MemoryFeedbackRepository) Save(ctx context.Context, f *entity.Feedback) error {
	if err := f.Validate(); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, *f)
	return nil
}

func (r *MemoryFeedbackRepository) AverageRating(ctx context.Context, since time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum, n int
	for _, f := range r.feedback {
		if f.CreatedAt.Before(since) {
			continue
		}
		sum += f.Rating
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

// MemoryAnalyticsRepository keeps the metric log in memory. Conversation
// counts come from the paired conversation repository.
type MemoryAnalyticsRepository struct {
	mu      sync.RWMutex
	records []entity.AnalyticsRecord
	convs   *MemoryConversationRepository
}

func NewMemoryAnalyticsRepository(convs *MemoryConversationRepository) *MemoryAnalyticsRepository {
	return &MemoryAnalyticsRepository{convs: convs}
}

var _ repository.AnalyticsRepository = (*MemoryAnalyticsRepository)(nil)

func (r *MemoryAnalyticsRepository) Save(ctx context.Context, record *entity.AnalyticsRecord) error {
	if record.Metric == "" {
		return errors.NewInvalidInputError("metric is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *MemoryAnalyticsRepository) ListByMetric(ctx context.Context, metric string, limit int) ([]*entity.AnalyticsRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.AnalyticsRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].Metric == metric {
			rec := r.records[i]
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r *MemoryAnalyticsRepository) CountConversationsSince(ctx context.Context, since time.Time) (int64, int64, error) {
	if r.convs == nil {
		return 0, 0, nil
	}
	total, escalated := r.convs.countSince(since)
	return total, escalated, nil
}

// MemoryKnowledgeRepository keeps knowledge articles in memory.
type MemoryKnowledgeRepository struct {
	mu      sync.RWMutex
	entries []*entity.KnowledgeEntry
}

func NewMemoryKnowledgeRepository() *MemoryKnowledgeRepository {
	return &MemoryKnowledgeRepository{}
}

var _ repository.KnowledgeRepository = (*MemoryKnowledgeRepository)(nil)

func (r *MemoryKnowledgeRepository) List(ctx context.Context) ([]*entity.KnowledgeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.KnowledgeEntry, 0, len(r.entries))
	for _, e := range r.entries {
		c := *e
		c.Embedding = append([]float32(nil), e.Embedding...)
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryKnowledgeRepository) Create(ctx context.Context, e *entity.KnowledgeEntry) error {
	if e.ID == "" || e.Title == "" || e.Content == "" {
		return errors.NewInvalidInputError("knowledge entry needs id, title and content")
	}
	if !e.Category.Valid() {
		return errors.NewInvalidInputErrorf("unknown knowledge category: %s", e.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.ID == e.ID {
			return errors.NewAlreadyExistsError("knowledge entry already exists: " + e.ID)
		}
	}
	c := *e
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, &c)
	return nil
}

func (r *MemoryKnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.ID == id {
			e.Embedding = append([]float32(nil), embedding...)
			return nil
		}
	}
	return errors.NewNotFoundError("knowledge entry not found: " + id)
}
