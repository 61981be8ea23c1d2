// Package dedup remembers recently processed message ids so a redelivered
// webhook event is answered at most once.
//
// The cache is bounded two ways: entries older than TTL are dropped by a
// background sweep, and when MaxEntries is reached the oldest insertion is
// evicted first.
package dedup

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultMaxEntries    = 10000
	defaultSweepInterval = time.Minute
)

// Options configures a Cache
type Options struct {
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration
	Now           func() time.Time
}

type entry struct {
	key   string
	added time.Time
}

// Cache is a TTL and size bounded set of keys. Safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Cache and starts its sweep goroutine. Call Stop to end it.
func New(ctx context.Context, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Cache{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go c.sweep(ctx, opts.SweepInterval)

	return c
}

// Add marks key as seen. It returns false when key was already present and
// not expired, in which case nothing changes.
func (c *Cache) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		if now.Sub(el.Value.(*entry).added) <= c.ttl {
			return false
		}
		c.removeElement(el)
	}

	for c.order.Len() >= c.maxEntries {
		c.removeElement(c.order.Front())
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, added: now})
	return true
}

// Contains reports whether key is present and not expired
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(*entry).added) <= c.ttl
}

// Len returns the number of tracked keys, expired ones included until the next sweep
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every key
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stop ends the sweep goroutine and waits for it to exit
func (c *Cache) Stop() {
	c.cancel()
	<-c.done
}

// Purge drops expired keys and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	// Insertion order is chronological, so stop at the first live entry.
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.added) <= c.ttl {
			break
		}
		next := el.Next()
		c.removeElement(el)
		removed++
		el = next
	}
	return removed
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(el)
}

func (c *Cache) sweep(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
