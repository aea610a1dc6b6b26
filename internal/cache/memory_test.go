package cache

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache, err := NewMemoryCache(16, 1024)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}

	value := []byte("clip-bytes")
	if err := cache.Put("a", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get("a")
	if !ok || !bytes.Equal(got, value) {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if cache.Size() != int64(len(value)) {
		t.Errorf("Size = %d, want %d", cache.Size(), len(value))
	}

	cache.Delete("a")
	if _, ok := cache.Get("a"); ok {
		t.Error("clip still present after delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", cache.Size())
	}
}

func TestMemoryCache_ByteBound(t *testing.T) {
	cache, _ := NewMemoryCache(16, 100)

	for i := 0; i < 4; i++ {
		if err := cache.Put(fmt.Sprintf("k%d", i), make([]byte, 30)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	if cache.Size() > 100 {
		t.Errorf("size %d exceeds capacity", cache.Size())
	}
	if _, ok := cache.Get("k0"); ok {
		t.Error("oldest clip should have been evicted")
	}
	if _, ok := cache.Get("k3"); !ok {
		t.Error("newest clip should be present")
	}
	if cache.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", cache.Stats().Evictions)
	}
}

func TestMemoryCache_EntryBound(t *testing.T) {
	cache, _ := NewMemoryCache(2, 0)

	_ = cache.Put("a", []byte("1"))
	_ = cache.Put("b", []byte("2"))
	cache.Get("a") // a is now most recent
	_ = cache.Put("c", []byte("3"))

	if _, ok := cache.Get("b"); ok {
		t.Error("least recently used clip should be evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("recently used clip should survive")
	}
	if cache.Size() != 2 {
		t.Errorf("size = %d, want 2", cache.Size())
	}
}

func TestMemoryCache_Replace(t *testing.T) {
	cache, _ := NewMemoryCache(4, 100)
	_ = cache.Put("a", make([]byte, 40))
	_ = cache.Put("a", make([]byte, 10))

	if cache.Size() != 10 {
		t.Errorf("size after replace = %d, want 10", cache.Size())
	}
}

func TestMemoryCache_TooLarge(t *testing.T) {
	cache, _ := NewMemoryCache(4, 10)
	if err := cache.Put("a", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("err = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	cache, _ := NewMemoryCache(8, 0)
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	_ = cache.Put("old", []byte("x"))
	now = now.Add(2 * time.Hour)
	_ = cache.Put("new", []byte("y"))

	if removed := cache.Prune(time.Hour); removed != 1 {
		t.Errorf("pruned %d, want 1", removed)
	}
	if _, ok := cache.Get("new"); !ok {
		t.Error("fresh clip pruned")
	}
}
