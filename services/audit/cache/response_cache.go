// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the bounded, time-expiring response cache that sits
// in front of the reasoning oracle and repeated tool invocations.
//
// Keys are derived from the call's logical arguments, not the call site:
// identical logical calls always hash to the same key regardless of argument
// ordering. Entries expire after a TTL and the least-recently-used entry is
// evicted when the size bound is exceeded.
//
// Thread Safety:
//
//	ResponseCache is safe for concurrent use by multiple sessions sharing
//	one process. A single coarse lock per instance guards all state;
//	operations are O(1) and short-lived.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_response_cache_lookups_total",
		Help: "Response cache lookups by outcome",
	}, []string{"outcome"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_response_cache_evictions_total",
		Help: "Entries evicted from the response cache",
	})
)

// DefaultTTL is the expiry window applied when none is configured.
const DefaultTTL = 5 * time.Minute

// DefaultMaxSize bounds the cache when no capacity is configured.
const DefaultMaxSize = 512

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

// entry holds one cached value with its expiry stamp.
type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// ResponseCache memoizes expensive call results under a TTL and an LRU bound.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // Front = most recent, Back = least recent

	hits   int64
	misses int64

	// flight deduplicates concurrent misses for the same key so only one
	// caller pays for the underlying call.
	flight singleflight.Group
}

// New creates a response cache.
//
// Inputs:
//
//	maxSize - Maximum entry count; non-positive selects DefaultMaxSize.
//	ttl - Entry lifetime; non-positive selects DefaultTTL.
func New(maxSize int, ttl time.Duration) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		capacity: maxSize,
		ttl:      ttl,
		items:    make(map[string]*list.Element, maxSize),
		order:    list.New(),
	}
}

// Key derives a stable cache key from the logical arguments of a call.
//
// Description:
//
//	Positional arguments are serialized in order; map arguments are
//	serialized with sorted keys (encoding/json already sorts map keys).
//	The canonical form is hashed to a fixed-width digest so identical
//	logical calls collide deliberately and distinct ones collide with
//	negligible probability.
//
// Inputs:
//
//	parts - The positional and keyword arguments of the call.
//
// Outputs:
//
//	string - Hex-encoded SHA-256 digest of the canonical serialization.
func Key(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		raw, err := json.Marshal(canonical(part))
		if err != nil {
			// Unserializable arguments fall back to their Go syntax
			// representation; still deterministic for a given value.
			raw = []byte(fmt.Sprintf("%#v", part))
		}
		h.Write(raw)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonical rewrites map arguments into key-sorted pair slices so the
// serialized form is independent of map iteration order for nested values
// that json would otherwise emit in declaration-dependent order.
func canonical(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, canonical(m[k])})
	}
	return pairs
}

// Get returns the cached value for key if present and unexpired.
//
// Description:
//
//	Expired entries are evicted lazily on lookup. Every lookup updates
//	recency order and the hit/miss counters.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		cacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	cacheLookups.WithLabelValues("hit").Inc()
	return ent.value, true
}

// Set inserts or overwrites a value with expiry now + ttl.
//
// Description:
//
//	If the insertion pushes the cache past its capacity, least-recently-
//	used entries are evicted until the bound is satisfied.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		cacheEvictions.Inc()
	}
}

// Invalidate removes a key. No-op when the key is absent.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
}

// Clear removes all entries. Counters are preserved.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Stats returns a snapshot of the cache counters.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.order.Len(),
		Capacity: c.capacity,
	}
}

// Do returns the cached value for key or computes it exactly once.
//
// Description:
//
//	Concurrent callers missing on the same key share a single in-flight
//	computation via singleflight; the result is cached only on success.
//	Errors are returned to every waiting caller and never cached.
//
// Thread Safety: This method is safe for concurrent use.
func (c *ResponseCache) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check: another caller may have populated the key between
		// the miss and the flight acquiring the lead.
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		computed, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, computed)
		return computed, nil
	})
	return value, err
}

// removeLocked unlinks an element. Caller must hold the lock.
func (c *ResponseCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.order.Remove(elem)
}
