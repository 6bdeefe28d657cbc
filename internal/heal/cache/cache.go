// Package cache holds the healed-selector mappings of one resolver session.
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/healer/api/schemas"
)

// Entry maps a raw selector to the concrete selector that last healed it.
type Entry struct {
	Original  string    `json:"original"`
	Healed    string    `json:"healed"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	Hits      int       `json:"hits"`
	// Scope is the root the healed selector was found under; nil means the page.
	Scope schemas.Root `json:"-"`
}

// Cache is an in-memory, session-scoped mapping with no expiry. Entries are
// only removed when a resolver evicts them after failed revalidation.
type Cache struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	now     func() time.Time
	log     *zap.Logger
}

// New creates an empty cache.
func New(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*Entry),
		now:     time.Now,
		log:     logger.Named("cache"),
	}
}

// Get returns a copy of the entry for original.
func (c *Cache) Get(original string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[original]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Put stores or replaces the mapping for original, resolved against the page.
func (c *Cache) Put(original, healed string, score float64) {
	c.PutScoped(original, healed, score, nil)
}

// PutScoped stores a mapping whose healed selector only resolves under scope,
// such as a frame document or a shadow root.
func (c *Cache) PutScoped(original, healed string, score float64, scope schemas.Root) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[original] = &Entry{
		Original:  original,
		Healed:    healed,
		Score:     score,
		CreatedAt: c.now(),
		Scope:     scope,
	}
	c.log.Debug("Healed selector stored.", zap.String("original", original), zap.String("healed", healed))
}

// Hit records a successful revalidation.
func (c *Cache) Hit(original string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[original]; ok {
		e.Hits++
	}
}

// Delete evicts the mapping and reports whether one existed.
func (c *Cache) Delete(original string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[original]
	delete(c.entries, original)
	return ok
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns copies of all entries ordered by original selector.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out
}
