package tool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
)

// ResultCache keeps recent results of read-only tools so a model that
// repeats the same search does not hit the embedder again. Entries of a
// tool can be dropped with Invalidate when its data changes.
type ResultCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type cacheEntry struct {
	toolName  string
	result    domaintool.Result
	createdAt time.Time
}

func NewResultCache(ttl time.Duration, maxSize int) *ResultCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	return &ResultCache{
		entries: make(map[string]*cacheEntry, maxSize),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns a copy of the cached result when present and fresh.
func (c *ResultCache) Get(toolName string, args map[string]interface{}) (*domaintool.Result, bool) {
	key := cacheKey(toolName, args)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.createdAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	res := entry.result
	return &res, true
}

// Put stores successful results only.
func (c *ResultCache) Put(toolName string, args map[string]interface{}, result *domaintool.Result) {
	if result == nil || !result.Success {
		return
	}
	key := cacheKey(toolName, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{
		toolName:  toolName,
		result:    *result,
		createdAt: c.now(),
	}
}

// Invalidate drops every cached result of toolName.
func (c *ResultCache) Invalidate(toolName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, v := range c.entries {
		if v.toolName == toolName {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey hashes the tool name and arguments. encoding/json sorts map
// keys, so equal argument maps produce equal keys.
func cacheKey(toolName string, args map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	if args != nil {
		argsBytes, _ := json.Marshal(args)
		h.Write(argsBytes)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for k, v := range c.entries {
		if oldestKey == "" || v.createdAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
