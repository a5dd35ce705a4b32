// Package cache holds resolved mappings for a limited time.
package cache

import (
	"sync"
	"time"

	"github.com/filmzi/filelink/shared/domain"
)

type entry struct {
	mapping    domain.FileMapping
	resolvedAt time.Time
}

// TTLCache is a map keyed by short id. Entries stop being returned once older
// than ttl; expired entries stay in memory until the next Sweep or Store.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[domain.ShortId]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *TTLCache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[domain.ShortId]entry),
		ttl:     ttl,
		now:     now,
	}
}

// Lookup returns a mapping resolved less than ttl ago.
func (c *TTLCache) Lookup(id domain.ShortId) (domain.FileMapping, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.resolvedAt) >= c.ttl {
		return domain.FileMapping{}, false
	}
	return e.mapping, true
}

// Store records m under its short id, replacing any previous entry whole.
func (c *TTLCache) Store(m domain.FileMapping) {
	c.mu.Lock()
	c.entries[m.ShortId] = entry{mapping: m, resolvedAt: c.now()}
	c.mu.Unlock()
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[domain.ShortId]entry)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
