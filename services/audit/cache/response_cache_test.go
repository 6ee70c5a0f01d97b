// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKey_Deterministic(t *testing.T) {
	args := map[string]any{"period": "2025-Q3", "account": "4000", "limit": 25}

	first := Key("duplicate_payments", args)
	second := Key("duplicate_payments", args)
	if first != second {
		t.Errorf("identical arguments produced different keys: %s vs %s", first, second)
	}

	// Same logical map built in a different insertion order.
	reordered := map[string]any{"limit": 25, "account": "4000", "period": "2025-Q3"}
	if got := Key("duplicate_payments", reordered); got != first {
		t.Error("argument insertion order changed the key")
	}
}

func TestKey_DistinctArguments(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 100; i++ {
		k := Key("tool", map[string]any{"period": fmt.Sprintf("2025-%02d", i)})
		if prev, ok := seen[k]; ok {
			t.Fatalf("key collision between %q and %q", prev, k)
		}
		seen[k] = k
	}
}

func TestKey_NestedMapsCanonical(t *testing.T) {
	a := map[string]any{"outer": map[string]any{"b": 2, "a": 1}}
	b := map[string]any{"outer": map[string]any{"a": 1, "b": 2}}
	if Key(a) != Key(b) {
		t.Error("nested map ordering changed the key")
	}
}

func TestResponseCache_GetSet(t *testing.T) {
	c := New(10, time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get(k) = %v, %v; want v, true", got, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, size 1", stats)
	}
}

func TestResponseCache_Expiry(t *testing.T) {
	c := New(10, 15*time.Millisecond)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should miss")
	}
	if c.Stats().Size != 0 {
		t.Error("expired entry should be evicted lazily on lookup")
	}
}

func TestResponseCache_LRUEviction(t *testing.T) {
	const maxSize = 4
	c := New(maxSize, time.Minute)

	for i := 0; i < maxSize; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so that k1 becomes the least recently used.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 should be present")
	}

	c.Set("k-new", "overflow")

	if got := c.Stats().Size; got != maxSize {
		t.Errorf("size = %d, want %d after eviction", got, maxSize)
	}
	if _, ok := c.Get("k1"); ok {
		t.Error("least-recently-used entry k1 should have been evicted")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Error("recently touched k0 should survive")
	}
	if _, ok := c.Get("k-new"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestResponseCache_InvalidateAndClear(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	c.Invalidate("missing") // no-op

	if _, ok := c.Get("a"); ok {
		t.Error("invalidated key should miss")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("untouched key should hit")
	}

	c.Clear()
	if c.Stats().Size != 0 {
		t.Error("clear should empty the cache")
	}
}

func TestResponseCache_DoDedupesConcurrentMisses(t *testing.T) {
	c := New(10, time.Minute)

	var calls atomic.Int64
	release := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "computed", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]any, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(context.Background(), "shared", fn)
			if err != nil {
				t.Errorf("Do: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile onto the same flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("underlying function ran %d times, want 1", got)
	}
	for i, v := range results {
		if v != "computed" {
			t.Errorf("worker %d got %v", i, v)
		}
	}
	if _, ok := c.Get("shared"); !ok {
		t.Error("successful Do should populate the cache")
	}
}

func TestResponseCache_DoErrorNotCached(t *testing.T) {
	c := New(10, time.Minute)

	wantErr := errors.New("oracle unavailable")
	_, err := c.Do(context.Background(), "k", func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("errors must not be cached")
	}
}
