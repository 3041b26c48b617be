package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

func TestMemoryCachePutGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	fence := model.GeoFence{LocationID: "room-101", Latitude: 12.9716, Longitude: 77.5946, Radius: 50}
	if err := cache.Put(ctx, fence, time.Hour); err != nil {
		t.Fatalf("put error: %v", err)
	}

	got, ok, err := cache.Get(ctx, "room-101")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got != fence {
		t.Fatalf("expected %+v, got %+v", fence, got)
	}

	if _, ok, _ := cache.Get(ctx, "room-404"); ok {
		t.Fatalf("expected miss for unknown location")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache.SetNow(func() time.Time { return now })

	fence := model.GeoFence{LocationID: "room-101", Radius: 50}
	if err := cache.Put(ctx, fence, time.Hour); err != nil {
		t.Fatalf("put error: %v", err)
	}

	now = now.Add(59 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "room-101"); !ok {
		t.Fatalf("expected hit before TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "room-101"); ok {
		t.Fatalf("expected miss after TTL elapsed")
	}
}

func TestMemoryCacheExpiredGetDoesNotEvictFreshPut(t *testing.T) {
	ctx := context.Background()
	stale := model.GeoFence{LocationID: "room-101", Radius: 50}
	fresh := model.GeoFence{LocationID: "room-101", Radius: 75}

	for i := 0; i < 200; i++ {
		cache := NewMemoryCache()
		_ = cache.Put(ctx, stale, -time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = cache.Get(ctx, "room-101")
		}()
		go func() {
			defer wg.Done()
			_ = cache.Put(ctx, fresh, time.Hour)
		}()
		wg.Wait()

		got, ok, _ := cache.Get(ctx, "room-101")
		if !ok || got.Radius != 75 {
			t.Fatalf("fresh entry evicted by a racing expired get: %+v ok=%v", got, ok)
		}
	}
}

func TestMemoryCacheLastWriterWins(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	first := model.GeoFence{LocationID: "room-101", Radius: 50}
	second := model.GeoFence{LocationID: "room-101", Radius: 75}
	_ = cache.Put(ctx, first, time.Hour)
	_ = cache.Put(ctx, second, time.Hour)

	got, ok, _ := cache.Get(ctx, "room-101")
	if !ok || got.Radius != 75 {
		t.Fatalf("expected replacement entry, got %+v ok=%v", got, ok)
	}
}
