package utils

import (
	"testing"
	"time"
)

func TestTimedCache(t *testing.T) {
	c, err := NewTimedCache[string](2)
	if err != nil {
		t.Fatalf("NewTimedCache failed: %v", err)
	}

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.Set("a", "first", at)

	v, storedAt, ok := c.Get("a")
	if !ok || v != "first" || !storedAt.Equal(at) {
		t.Fatalf("unexpected entry: %q %v %v", v, storedAt, ok)
	}

	c.Set("a", "second", at.Add(time.Minute))
	v, storedAt, _ = c.Get("a")
	if v != "second" || !storedAt.Equal(at.Add(time.Minute)) {
		t.Errorf("expected replaced entry, got %q at %v", v, storedAt)
	}

	c.Set("b", "b", at)
	c.Set("c", "c", at)
	if _, _, ok := c.Get("a"); ok {
		t.Errorf("expected least recently used entry to be evicted")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestTimedCache_InvalidSize(t *testing.T) {
	if _, err := NewTimedCache[int](0); err == nil {
		t.Fatalf("expected error for zero size")
	}
}
