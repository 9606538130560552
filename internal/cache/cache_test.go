// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.(string) != "v" {
		t.Errorf("got %v, want v", got)
	}
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	c.SetWithTTL("k", "v", -time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
	if stats := c.GetStats(); stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d, want 0", stats.TotalKeys)
	}
}

func TestHitRate(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	if rate := c.HitRate(); rate != 0.0 {
		t.Errorf("empty cache HitRate = %f, want 0", rate)
	}

	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("HitRate = %f, want 50", rate)
	}
}

func TestCleanupLoop(t *testing.T) {
	c := New(time.Minute, 5*time.Millisecond)
	defer c.Close()

	c.SetWithTTL("expired", "v", -time.Second)
	c.Set("live", "v")

	time.Sleep(30 * time.Millisecond)

	stats := c.GetStats()
	if stats.TotalKeys != 1 {
		t.Errorf("TotalKeys = %d, want 1 after cleanup", stats.TotalKeys)
	}
}

func TestGenerateKeyStable(t *testing.T) {
	type params struct {
		Start string
		Page  int
	}
	k1 := GenerateKey("events", params{Start: "2025-06-22", Page: 1})
	k2 := GenerateKey("events", params{Start: "2025-06-22", Page: 1})
	k3 := GenerateKey("events", params{Start: "2025-06-22", Page: 2})

	if k1 != k2 {
		t.Error("identical params must generate identical keys")
	}
	if k1 == k3 {
		t.Error("different params must generate different keys")
	}
}
