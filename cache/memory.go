package cache

import (
	"bytes"
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache. Expired entries are dropped when read;
// a full cache evicts the least recently used entry.
type MemoryCache struct {
	mu    sync.Mutex
	max   int
	lru   *list.List // front is most recently used
	items map[string]*list.Element
	now   func() time.Time
}

type memEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewMemoryCache holds at most maxEntries values; zero or negative is
// unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		max:   maxEntries,
		lru:   list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if !c.now().Before(e.expires) {
		c.removeLocked(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return e.value, true
}

// Set stores a copy of value. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	e := &memEntry{key: key, value: bytes.Clone(value), expires: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return nil
	}
	c.items[key] = c.lru.PushFront(e)
	if c.max > 0 && c.lru.Len() > c.max {
		c.removeLocked(c.lru.Back())
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
	return nil
}

// Len counts stored entries, including expired ones not yet read.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*memEntry).key)
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Pinger = (*MemoryCache)(nil)
)
