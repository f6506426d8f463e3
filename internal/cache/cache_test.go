package cache

import (
	"context"
	"testing"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

func cached(id string, version int) *domain.Contract {
	return &domain.Contract{ID: id, Version: version, Title: "t", Status: domain.StatusDraft}
}

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "c1"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	c.Put(ctx, cached("c1", 1))
	got, ok := c.Get(ctx, "c1")
	if !ok || got.Version != 1 {
		t.Fatalf("expected cached version 1, got %+v ok=%v", got, ok)
	}
}

func TestMemoryCacheNeverDowngrades(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Put(ctx, cached("c1", 3))
	c.Put(ctx, cached("c1", 2))

	got, ok := c.Get(ctx, "c1")
	if !ok || got.Version != 3 {
		t.Fatalf("cache replaced version 3 with an older entry: %+v", got)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Put(ctx, cached("c1", 1))
	c.Invalidate(ctx, "c1")
	if _, ok := c.Get(ctx, "c1"); ok {
		t.Fatalf("entry survived invalidation")
	}
}

func TestMemoryCacheCloneIsolation(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	original := cached("c1", 1)
	c.Put(ctx, original)
	original.Title = "mutated"

	got, _ := c.Get(ctx, "c1")
	if got.Title != "t" {
		t.Fatalf("cache shares memory with the caller: %q", got.Title)
	}

	got.Title = "mutated copy"
	again, _ := c.Get(ctx, "c1")
	if again.Title != "t" {
		t.Fatalf("cache hit shares memory with previous hit: %q", again.Title)
	}
}
