package entity

import "time"

// KnowledgeCategory groups knowledge base articles.
type KnowledgeCategory string

const (
	KnowledgeFAQ       KnowledgeCategory = "faq"
	KnowledgeProducts  KnowledgeCategory = "products"
	KnowledgePolicies  KnowledgeCategory = "policies"
	KnowledgeBilling   KnowledgeCategory = "billing"
	KnowledgeTechnical KnowledgeCategory = "technical"
)

// KnowledgeCategories lists every category in declaration order.
var KnowledgeCategories = []KnowledgeCategory{
	KnowledgeFAQ, KnowledgeProducts, KnowledgePolicies, KnowledgeBilling, KnowledgeTechnical,
}

func (c KnowledgeCategory) Valid() bool {
	for _, k := range KnowledgeCategories {
		if c == k {
			return true
		}
	}
	return false
}

// KnowledgeEntry is a support article. Embedding is nil until computed.
type KnowledgeEntry struct {
	ID        string            `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	Content   string            `json:"content" yaml:"content"`
	Category  KnowledgeCategory `json:"category" yaml:"category"`
	Embedding []float32         `json:"-" yaml:"-"`
	CreatedAt time.Time         `json:"created_at" yaml:"-"`
}
