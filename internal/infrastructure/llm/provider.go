package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	"go.uber.org/zap"
)

// Provider is a concrete model backend the Router can send requests to.
type Provider interface {
	service.LLMClient

	Name() string
	Models() []string

	// SupportsModel reports whether model can be served. A provider with no
	// configured model list accepts any model.
	SupportsModel(model string) bool

	// IsAvailable reports whether the provider is configured well enough to
	// be tried.
	IsAvailable(ctx context.Context) bool
}

// ProviderConfig configures one provider.
type ProviderConfig struct {
	Name         string        `mapstructure:"name" json:"name"`
	Type         string        `mapstructure:"type" json:"type"` // "openai" (default)
	BaseURL      string        `mapstructure:"base_url" json:"base_url"`
	APIKey       string        `mapstructure:"api_key" json:"-"`
	Organization string        `mapstructure:"organization" json:"organization,omitempty"`
	Models       []string      `mapstructure:"models" json:"models"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ProviderFactory builds a Provider from its config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory makes a provider type available to CreateProvider.
// Provider packages call it from init().
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider builds a provider of cfg.Type, "openai" when empty.
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "openai"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	available := make([]string, 0, len(factories))
	for k := range factories {
		available = append(available, k)
	}
	factoryMu.RUnlock()

	if !ok {
		sort.Strings(available)
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}
	if cfg.Name == "" {
		cfg.Name = t
	}
	return factory(cfg, logger), nil
}
