// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned a value")
	}

	c.Set("routes", "payload")
	got, ok := c.Get("routes")
	if !ok || got != "payload" {
		t.Errorf("Get = %v, %v", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	c.SetWithTTL("short", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry still readable")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the least recently used.
	c.Get("a")
	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %q evicted unexpectedly", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry still readable")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}

	// Invalidating a missing key must not panic.
	c.Invalidate("never-set")
}

func TestStats(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Stop()

	c.Set("a", 1)
	c.Get("a")
	c.Get("nope")

	hits, misses, _, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats = %d hits, %d misses, %d size", hits, misses, size)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Stop()
	c.Stop()
}
