package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTopK = 3

// Search modes reported with every response.
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchResult is one ranked article.
type SearchResult struct {
	ID        string                   `json:"id"`
	Title     string                   `json:"title"`
	Content   string                   `json:"content"`
	Category  entity.KnowledgeCategory `json:"category"`
	Relevance float64                  `json:"relevance"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Mode    string         `json:"mode"`
}

// Base is the in-memory article index. Articles are embedded lazily on the
// first semantic search; when the embedder is missing or fails, search
// falls back to keyword scoring.
type Base struct {
	mu       sync.RWMutex
	entries  []*entity.KnowledgeEntry
	embedder Embedder
	repo     repository.KnowledgeRepository
	logger   *zap.Logger

	listeners []func()
}

// NewBase creates an empty base. embedder and repo may be nil.
func NewBase(embedder Embedder, repo repository.KnowledgeRepository, logger *zap.Logger) *Base {
	return &Base{
		embedder: embedder,
		repo:     repo,
		logger:   logger.With(zap.String("component", "knowledge")),
	}
}

// Load fills the base from the repository, seeding it with DefaultEntries
// when it is empty. Without a repository the defaults are used directly.
func (b *Base) Load(ctx context.Context) error {
	if b.repo == nil {
		b.Replace(DefaultEntries())
		return nil
	}

	entries, err := b.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list knowledge entries: %w", err)
	}
	if len(entries) == 0 {
		entries = DefaultEntries()
		for _, e := range entries {
			e.CreatedAt = time.Now()
			if err := b.repo.Create(ctx, e); err != nil {
				return fmt.Errorf("seed knowledge entry %s: %w", e.ID, err)
			}
		}
		b.logger.Info("Knowledge base seeded", zap.Int("entries", len(entries)))
	}
	b.Replace(entries)
	return nil
}

// OnChange registers fn to run after Add or Replace changed the articles.
func (b *Base) OnChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Base) notify() {
	b.mu.RLock()
	listeners := append([]func(){}, b.listeners...)
	b.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Replace swaps the article set, keeping embeddings of articles whose
// content did not change.
func (b *Base) Replace(entries []*entity.KnowledgeEntry) {
	defer b.notify()
	b.mu.Lock()
	defer b.mu.Unlock()

	old := make(map[string]*entity.KnowledgeEntry, len(b.entries))
	for _, e := range b.entries {
		old[e.ID] = e
	}
	next := make([]*entity.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		if prev, ok := old[cp.ID]; ok && cp.Embedding == nil && prev.Content == cp.Content {
			cp.Embedding = prev.Embedding
		}
		next = append(next, &cp)
	}
	b.entries = next
}

// Entries returns a snapshot of the articles.
func (b *Base) Entries() []entity.KnowledgeEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]entity.KnowledgeEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	return out
}

// Search ranks articles against query. An empty category searches all
// categories; topK <= 0 means DefaultTopK.
func (b *Base) Search(ctx context.Context, query string, category entity.KnowledgeCategory, topK int) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidInputError("query is required")
	}
	if category != "" && !category.Valid() {
		return nil, apperrors.NewInvalidInputErrorf("unknown category %q", category)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	if b.embedder != nil {
		results, err := b.semanticSearch(ctx, query, category, topK)
		if err == nil {
			return &SearchResponse{Results: results, Mode: ModeSemantic}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.logger.Warn("Semantic search failed, using keyword fallback", zap.Error(err))
	}

	return &SearchResponse{Results: b.keywordSearch(query, category, topK), Mode: ModeKeyword}, nil
}

// Add stores a new article. An embedding failure is not fatal: the
// article is embedded again on the next semantic search.
func (b *Base) Add(ctx context.Context, title, content string, category entity.KnowledgeCategory) (*entity.KnowledgeEntry, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, apperrors.NewInvalidInputError("title and content are required")
	}
	if !category.Valid() {
		return nil, apperrors.NewInvalidInputErrorf("unknown category %q", category)
	}

	entry := &entity.KnowledgeEntry{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if b.embedder != nil {
		vec, err := b.embedder.Embed(ctx, content)
		if err != nil {
			b.logger.Warn("Embedding new knowledge entry failed", zap.String("title", title), zap.Error(err))
		} else {
			entry.Embedding = vec
		}
	}
	if b.repo != nil {
		if err := b.repo.Create(ctx, entry); err != nil {
			return nil, fmt.Errorf("store knowledge entry: %w", err)
		}
	}

	b.mu.Lock()
	b.entries = append(b.entries, entry)
	b.mu.Unlock()
	b.notify()

	b.logger.Info("Knowledge entry added", zap.String("id", entry.ID), zap.String("category", string(category)))
	return entry, nil
}

func (b *Base) semanticSearch(ctx context.Context, query string, category entity.KnowledgeCategory, topK int) ([]SearchResult, error) {
	if err := b.ensureEmbeddings(ctx); err != nil {
		return nil, err
	}
	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	b.mu.RLock()
	results := make([]SearchResult, 0, len(b.entries))
	for _, e := range b.entries {
		if category != "" && e.Category != category {
			continue
		}
		score := 0.0
		if len(e.Embedding) > 0 {
			score = cosineSimilarity(queryVec, e.Embedding)
		}
		results = append(results, toResult(e, score))
	}
	b.mu.RUnlock()

	return rank(results, topK), nil
}

// ensureEmbeddings embeds every article that has no vector yet, in one
// batch, and persists the vectors when a repository is configured.
func (b *Base) ensureEmbeddings(ctx context.Context) error {
	b.mu.RLock()
	var missing []*entity.KnowledgeEntry
	for _, e := range b.entries {
		if len(e.Embedding) == 0 {
			missing = append(missing, e)
		}
	}
	b.mu.RUnlock()
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, e := range missing {
		texts[i] = e.Content
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d articles: %w", len(missing), err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedder returned %d vectors for %d articles", len(vectors), len(missing))
	}

	b.mu.Lock()
	for i, e := range missing {
		e.Embedding = vectors[i]
	}
	b.mu.Unlock()

	if b.repo != nil {
		for i, e := range missing {
			if err := b.repo.UpdateEmbedding(ctx, e.ID, vectors[i]); err != nil && !apperrors.IsNotFound(err) {
				b.logger.Warn("Persisting article embedding failed", zap.String("id", e.ID), zap.Error(err))
			}
		}
	}
	b.logger.Info("Knowledge articles embedded", zap.Int("count", len(missing)))
	return nil
}

// keywordSearch scores each query word as 2 for a title hit and 1 for a
// content hit. Articles scoring zero are dropped.
func (b *Base) keywordSearch(query string, category entity.KnowledgeCategory, topK int) []SearchResult {
	keywords := strings.Fields(strings.ToLower(query))

	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]SearchResult, 0, len(b.entries))
	for _, e := range b.entries {
		if category != "" && e.Category != category {
			continue
		}
		title := strings.ToLower(e.Title)
		content := strings.ToLower(e.Content)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(title, kw) {
				score += 2
			}
			if strings.Contains(content, kw) {
				score++
			}
		}
		if score > 0 {
			results = append(results, toResult(e, float64(score)))
		}
	}
	return rank(results, topK)
}

func rank(results []SearchResult, topK int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func toResult(e *entity.KnowledgeEntry, score float64) SearchResult {
	return SearchResult{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		Category:  e.Category,
		Relevance: score,
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
