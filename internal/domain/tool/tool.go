package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Kind classifies what a tool does to the outside world.
type Kind string

const (
	KindSearch      Kind = "search"      // read-only lookups (knowledge base)
	KindRead        Kind = "read"        // read-only record access (orders)
	KindWrite       Kind = "write"       // creates records (tickets)
	KindCommunicate Kind = "communicate" // hands the customer to a human
)

// Tool is a declared operation the model may invoke.
type Tool interface {
	Name() string
	// Description is shown to the model; it is advisory only.
	Description() string
	Kind() Kind
	// Schema returns the JSON Schema of the input, used in the declaration.
	Schema() map[string]interface{}
	// Execute validates args and runs the handler. Validation failures are
	// returned as *ValidationError without running the handler.
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result is the outcome of a tool handler.
type Result struct {
	Output   string      // JSON text handed back to the model
	Data     interface{} // structured payload for UIs and persistence
	Success  bool
	Metadata map[string]interface{}
	Error    string
}

// JSONResult builds a successful result whose Output is data encoded as JSON.
func JSONResult(data interface{}) (*Result, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode tool output: %w", err)
	}
	return &Result{Output: string(raw), Data: data, Success: true}, nil
}

// Definition is the declaration sent to the model.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Registry holds the declared tools.
type Registry interface {
	Register(tool Tool) error
	Get(name string) (Tool, bool)
	// List returns definitions in registration order.
	List() []Definition
	Has(name string) bool
}

// InMemoryRegistry is a concurrency-safe Registry.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Names are unique keys.
func (r *InMemoryRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

func (r *InMemoryRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

func (r *InMemoryRegistry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

func (r *InMemoryRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}
