// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package cache provides a thread-safe in-memory TTL cache with LRU
// eviction. The cache is injected into its consumers and owned by the
// process lifecycle; callers must Stop it on shutdown.
package cache

import (
	"sync"
	"time"
)

// Store is the cache surface consumers depend on.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	SetWithTTL(key string, value any, ttl time.Duration)
	Invalidate(key string)
	Clear()
}

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 1000
	sweepInterval     = 5 * time.Minute
)

type entry struct {
	key       string
	value     any
	prev      *entry
	next      *entry
	expiresAt time.Time
}

// Cache implements Store with a doubly-linked list for LRU ordering and a
// map for O(1) lookup. Expired entries are dropped lazily on Get and
// swept by a background ticker.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*entry
	head, tail *entry

	hits, misses, evictions int64

	stop chan struct{}
	once sync.Once
}

// New creates a cache and starts its sweep goroutine. Non-positive
// arguments fall back to the defaults.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	c := &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[string]*entry, maxEntries),
		head:       &entry{},
		tail:       &entry{},
		stop:       make(chan struct{}),
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	go c.sweepLoop()

	return c
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Get returns the cached value if present and not expired. Hits refresh
// the entry's LRU position.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.remove(e)
		c.misses++
		c.evictions++
		return nil, false
	}

	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Set stores a value with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with an explicit TTL, evicting the least
// recently used entry when over capacity.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.maxEntries {
		c.evictOldest()
	}
}

// Invalidate removes one entry. Missing keys are a no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.remove(e)
		c.evictions++
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictions += int64(len(c.items))
	c.items = make(map[string]*entry, c.maxEntries)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports hit/miss/eviction counters and current size.
func (c *Cache) Stats() (hits, misses, evictions int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions, len(c.items)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.remove(e)
			c.evictions++
		}
		e = prev
	}
}

// List operations, caller holds the lock.

func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *Cache) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *Cache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.remove(oldest)
	c.evictions++
}
