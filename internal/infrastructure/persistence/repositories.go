package persistence

import (
	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
)

// Repositories bundles one implementation of every store.
type Repositories struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Tickets       repository.TicketRepository
	Orders        repository.OrderRepository
	Feedback      repository.FeedbackRepository
	Analytics     repository.AnalyticsRepository
	Knowledge     repository.KnowledgeRepository
}

func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Conversations: NewGormConversationRepository(db),
		Messages:      NewGormMessageRepository(db),
		Tickets:       NewGormTicketRepository(db),
		Orders:        NewGormOrderRepository(db),
		Feedback:      NewGormFeedbackRepository(db),
		Analytics:     NewGormAnalyticsRepository(db),
		Knowledge:     NewGormKnowledgeRepository(db),
	}
}

func NewMemoryRepositories() *Repositories {
	convs := NewMemoryConversationRepository()
	return &Repositories{
		Conversations: convs,
		Messages:      NewMemoryMessageRepository(),
		Tickets:       NewMemoryTicketRepository(),
		Orders:        NewMemoryOrderRepository(),
		Feedback:      NewMemoryFeedbackRepository(),
		Analytics:     NewMemoryAnalyticsRepository(convs),
		Knowledge:     NewMemoryKnowledgeRepository(),
	}
}
