package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/bantay/core"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

var _ core.Cache = (*SessionCache)(nil)

// SessionCache is an in-process read-through cache in front of session
// storage. Entries leave the cache after the TTL or when the session itself
// expires, whichever comes first.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	session  core.Session
	storedAt time.Time
}

func NewSessionCache(c core.CacheConfig) *SessionCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}

	return &SessionCache{
		entries: make(map[string]cacheEntry),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// Get returns a copy of the cached session or core.ErrCacheNotFound.
func (c *SessionCache) Get(tokenHash string) (*core.Session, error) {
	c.mu.RLock()
	entry, ok := c.entries[tokenHash]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, core.ErrCacheNotFound
	}

	now := c.now()
	if now.Sub(entry.storedAt) > c.ttl || !now.Before(entry.session.ExpiresAt) {
		c.misses.Add(1)
		c.remove(tokenHash, entry.storedAt)
		return nil, core.ErrCacheNotFound
	}

	c.hits.Add(1)
	s := entry.session
	return &s, nil
}

// Set stores a copy of session so later mutations by the caller do not leak
// into the cache.
func (c *SessionCache) Set(tokenHash string, session *core.Session) error {
	if session == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[tokenHash]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[tokenHash] = cacheEntry{session: *session, storedAt: c.now()}
	c.sets.Add(1)
	return nil
}

func (c *SessionCache) Delete(tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[tokenHash]; ok {
		delete(c.entries, tokenHash)
		c.deletes.Add(1)
	}
	return nil
}

// DeleteUser drops every cached session that belongs to userID.
func (c *SessionCache) DeleteUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if e.session.UserID == userID {
			delete(c.entries, k)
			n++
		}
	}
	c.deletes.Add(int64(n))
	return n
}

func (c *SessionCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SessionCache) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}

// remove deletes the entry only if it was not replaced in the meantime.
func (c *SessionCache) remove(tokenHash string, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[tokenHash]; ok && e.storedAt.Equal(storedAt) {
		delete(c.entries, tokenHash)
		c.evictions.Add(1)
	}
}

func (c *SessionCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}
