package matcher

import (
	"container/list"
	"slices"
	"sync"
	"time"

	"contentmapper/internal/metrics"
)

// ResultCache is an LRU cache with TTL for classification results, keyed by
// saved-search title.
type ResultCache struct {
	maxSize int
	ttl     time.Duration
	items   map[string]*cacheItem
	lruList *list.List
	mu      sync.Mutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type cacheItem struct {
	key       string
	value     Result
	element   *list.Element
	expiresAt time.Time
}

// NewResultCache starts a background sweep of expired entries; call Close
// to stop it.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	c := &ResultCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*cacheItem),
		lruList: list.New(),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *ResultCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return Result{}, false
	}
	if c.now().After(item.expiresAt) {
		c.removeItem(item)
		return Result{}, false
	}
	c.lruList.MoveToFront(item.element)
	return cloneResult(item.value), true
}

func (c *ResultCache) Set(key string, value Result) {
	value = cloneResult(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.items[key]; exists {
		existing.value = value
		existing.expiresAt = c.now().Add(c.ttl)
		c.lruList.MoveToFront(existing.element)
		return
	}

	item := &cacheItem{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	item.element = c.lruList.PushFront(item)
	c.items[key] = item

	if len(c.items) > c.maxSize {
		c.evictLRU()
	}
}

// cloneResult copies Matches so cached entries never alias a caller's slice.
func cloneResult(r Result) Result {
	r.Matches = slices.Clone(r.Matches)
	return r
}

// Delete drops a single entry.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok {
		c.removeItem(item)
	}
}

func (c *ResultCache) evictLRU() {
	if oldest := c.lruList.Back(); oldest != nil {
		c.removeItem(oldest.Value.(*cacheItem))
		metrics.CacheEvictions.WithLabelValues("classification").Inc()
	}
}

func (c *ResultCache) removeItem(item *cacheItem) {
	delete(c.items, item.key)
	c.lruList.Remove(item.element)
}

func (c *ResultCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for _, item := range c.items {
				if now.After(item.expiresAt) {
					c.removeItem(item)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
	c.lruList.Init()
}

// Close stops the background sweep.
func (c *ResultCache) Close() {
	c.once.Do(func() { close(c.stop) })
}
