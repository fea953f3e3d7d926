package cache

import (
	"sync"
	"time"
)

// Counts is a small TTL cache for per-event confirmed-request counts.
// Used on the internal stats read path only; admission decisions always
// hit the store.
type Counts struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	count int
	exp   time.Time
}

func NewCounts(ttl time.Duration) *Counts {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Counts{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *Counts) Get(eventID string) (int, bool) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[eventID]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, eventID)
		c.mu.Unlock()
		return 0, false
	}

	return e.count, true
}

func (c *Counts) Set(eventID string, count int) {
	c.mu.Lock()
	c.m[eventID] = entry{count: count, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the cached count after a status write touches the event.
func (c *Counts) Invalidate(eventID string) {
	c.mu.Lock()
	delete(c.m, eventID)
	c.mu.Unlock()
}

func (c *Counts) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
