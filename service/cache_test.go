package service

import (
	"testing"
	"time"
)

// newClockedCache returns a cache whose clock the test controls
func newClockedCache() (*TTLCache, *time.Time) {
	now := time.Now()
	cache := NewTTLCache()
	cache.now = func() time.Time { return now }
	return cache, &now
}

func TestCacheSetAndGet(t *testing.T) {
	cache, _ := newClockedCache()

	cache.Set("key1", "value1", 5*time.Second)

	if got := cache.Get("key1"); got != "value1" {
		t.Errorf("Expected value1, got %v", got)
	}

	if got := cache.Get("missing"); got != nil {
		t.Errorf("Expected nil for missing key, got %v", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, now := newClockedCache()

	cache.Set("key1", "value1", 5*time.Second)

	if cache.Get("key1") == nil {
		t.Fatal("Expected value before expiry")
	}
	if cache.Size() != 1 {
		t.Errorf("Expected size 1, got %d", cache.Size())
	}

	*now = now.Add(5*time.Second + time.Millisecond)

	if got := cache.Get("key1"); got != nil {
		t.Errorf("Expected nil after expiry, got %v", got)
	}
	// Lazy delete on read removes the entry
	if cache.Size() != 0 {
		t.Errorf("Expected size 0 after expired read, got %d", cache.Size())
	}
}

func TestCacheOverwriteResetsTTL(t *testing.T) {
	cache, now := newClockedCache()

	cache.Set("key1", "v1", 5*time.Second)
	*now = now.Add(4 * time.Second)

	// Overwrite replaces the deadline, it does not stack onto the old one
	cache.Set("key1", "v2", 5*time.Second)
	*now = now.Add(4 * time.Second)

	if got := cache.Get("key1"); got != "v2" {
		t.Errorf("Expected v2 still live after reset TTL, got %v", got)
	}

	*now = now.Add(2 * time.Second)
	if got := cache.Get("key1"); got != nil {
		t.Errorf("Expected nil after reset TTL elapsed, got %v", got)
	}
}

func TestCacheDelete(t *testing.T) {
	cache, _ := newClockedCache()

	cache.Set("key1", "value1", time.Minute)
	cache.Delete("key1")

	if cache.Get("key1") != nil {
		t.Error("Expected nil after delete")
	}

	// Deleting a missing key should not panic
	cache.Delete("missing")
}

func TestCacheHas(t *testing.T) {
	cache, now := newClockedCache()

	cache.Set("key1", "value1", 5*time.Second)

	if !cache.Has("key1") {
		t.Error("Expected Has to be true for live entry")
	}
	if cache.Has("missing") {
		t.Error("Expected Has to be false for missing key")
	}

	*now = now.Add(6 * time.Second)
	if cache.Has("key1") {
		t.Error("Expected Has to be false for expired entry")
	}
}

func TestCacheKeysAndClear(t *testing.T) {
	cache, _ := newClockedCache()

	cache.Set("key1", 1, time.Minute)
	cache.Set("key2", 2, time.Minute)

	keys := cache.Keys()
	if len(keys) != 2 {
		t.Errorf("Expected 2 keys, got %d", len(keys))
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", cache.Size())
	}
}

func TestCacheCleanup(t *testing.T) {
	cache, now := newClockedCache()

	cache.Set("short1", 1, time.Second)
	cache.Set("short2", 2, 2*time.Second)
	cache.Set("long", 3, time.Hour)

	*now = now.Add(5 * time.Second)

	removed := cache.Cleanup()
	if removed != 2 {
		t.Errorf("Expected 2 entries removed, got %d", removed)
	}
	if cache.Size() != 1 {
		t.Errorf("Expected 1 entry remaining, got %d", cache.Size())
	}
	if cache.Get("long") == nil {
		t.Error("Expected long-lived entry to survive cleanup")
	}

	// Second sweep finds nothing
	if removed := cache.Cleanup(); removed != 0 {
		t.Errorf("Expected 0 removed on second sweep, got %d", removed)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewTTLCache()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			cache.Set("shared", i, time.Minute)
		}
		close(done)
	}()

	for i := 0; i < 1000; i++ {
		cache.Get("shared")
	}
	<-done
}
