package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kitbuilder587/wikisearch/internal/search"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := New(Config{})
	defer cache.Stop()

	resp := &search.SearchResponse{Query: "go", TotalHits: 3}
	cache.Set("search:go", resp, 5*time.Second)

	got, ok := cache.Get("search:go")
	if !ok {
		t.Fatal("Get() should return ok=true for existing key")
	}
	if got.(*search.SearchResponse) != resp {
		t.Errorf("Get() = %v, want %v", got, resp)
	}
}

func TestCache_GetNonExistent(t *testing.T) {
	cache := New(Config{})
	defer cache.Stop()

	got, ok := cache.Get("non-existent")
	if ok {
		t.Error("Get() should return ok=false for non-existent key")
	}
	if got != nil {
		t.Errorf("Get() = %v, want nil", got)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := New(Config{})
	defer cache.Stop()

	cache.Set("expiring", "value", 50*time.Millisecond)

	if _, ok := cache.Get("expiring"); !ok {
		t.Error("Key should exist before TTL expiration")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("expiring"); ok {
		t.Error("Key should be expired after TTL")
	}
}

func TestCache_ZeroTTLNotStored(t *testing.T) {
	cache := New(Config{})
	defer cache.Stop()

	cache.Set("k", "v", 0)
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	cache := New(Config{})
	defer cache.Stop()

	cache.Set("delete-key", "value", time.Hour)
	cache.Delete("delete-key")

	if _, ok := cache.Get("delete-key"); ok {
		t.Error("Key should not exist after delete")
	}
}

func TestCache_Overwrite(t *testing.T) {
	cache := New(Config{MaxEntries: 1})
	defer cache.Stop()

	cache.Set("key", "value1", time.Hour)
	cache.Set("key", "value2", time.Hour)

	got, _ := cache.Get("key")
	if got != "value2" {
		t.Errorf("Get() = %v, want value2 after overwrite", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestCache_EvictsSoonestExpiring(t *testing.T) {
	cache := New(Config{MaxEntries: 2})
	defer cache.Stop()

	cache.Set("short", 1, time.Minute)
	cache.Set("long", 2, time.Hour)
	cache.Set("new", 3, time.Hour)

	if _, ok := cache.Get("short"); ok {
		t.Error("short-lived entry should have been evicted")
	}
	if _, ok := cache.Get("long"); !ok {
		t.Error("long-lived entry should survive")
	}
	if _, ok := cache.Get("new"); !ok {
		t.Error("new entry should be stored")
	}
}

func TestCache_EvictsExpiredFirst(t *testing.T) {
	cache := New(Config{MaxEntries: 2})
	defer cache.Stop()

	cache.Set("stale", 1, 10*time.Millisecond)
	cache.Set("fresh", 2, time.Minute)
	time.Sleep(20 * time.Millisecond)
	cache.Set("new", 3, time.Hour)

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("fresh entry should survive when a stale one can be dropped")
	}
}

func TestCache_CleanupInterval(t *testing.T) {
	cache := New(Config{CleanupInterval: 20 * time.Millisecond})
	defer cache.Stop()

	cache.Set("k", "v", 10*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after background cleanup", cache.Len())
	}
}

func TestCache_Stop(t *testing.T) {
	cache := New(Config{})

	cache.Stop()
	cache.Stop()
}

func TestCache_NewWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cache := NewWithContext(ctx, Config{})

	cache.Set("ctx-key", "ctx-value", time.Hour)
	if got, ok := cache.Get("ctx-key"); !ok || got != "ctx-value" {
		t.Error("Cache should work before context cancel")
	}

	cancel()
	time.Sleep(10 * time.Millisecond)

	cache.Set("another", "value", time.Hour)
	if _, ok := cache.Get("another"); !ok {
		t.Error("Cache should still work after context cancel")
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache := New(Config{MaxEntries: 50})
	defer cache.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d-%d", g, i%100)
				cache.Set(key, i, time.Hour)
				cache.Get(key)
				if i%10 == 0 {
					cache.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if cache.Len() > 50 {
		t.Errorf("Len() = %d, exceeds MaxEntries", cache.Len())
	}
}
