package memory

import (
	"context"
	"sync"
	"time"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultMaxEntries      = 10000
)

type Config struct {
	CleanupInterval time.Duration
	// MaxEntries ограничивает размер; при переполнении вытесняется запись,
	// которая истекает раньше всех
	MaxEntries int
}

type item struct {
	value     interface{}
	expiresAt time.Time
}

// Cache - in-memory кеш с TTL и ограничением по числу записей
type Cache struct {
	mu         sync.RWMutex
	items      map[string]item
	maxEntries int
	stopChan   chan struct{}
	stopped    bool
}

func New(cfg Config) *Cache {
	return NewWithContext(context.Background(), cfg)
}

func NewWithContext(ctx context.Context, cfg Config) *Cache {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}

	c := &Cache{
		items:      make(map[string]item),
		maxEntries: cfg.MaxEntries,
		stopChan:   make(chan struct{}),
	}
	go c.cleanup(ctx, cfg.CleanupInterval)
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictLocked()
	}
	c.items[key] = item{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
	}
	c.mu.Unlock()
}

// evictLocked сначала выкидывает просроченное, если не помогло - самую старую запись
func (c *Cache) evictLocked() {
	c.removeExpiredLocked(time.Now())
	if len(c.items) < c.maxEntries {
		return
	}

	var victim string
	var soonest time.Time
	for k, it := range c.items {
		if victim == "" || it.expiresAt.Before(soonest) {
			victim = k
			soonest = it.expiresAt
		}
	}
	delete(c.items, victim)
}

func (c *Cache) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.removeExpiredLocked(time.Now())
			c.mu.Unlock()
		}
	}
}

func (c *Cache) removeExpiredLocked(now time.Time) {
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
