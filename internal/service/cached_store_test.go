package service

import (
	"context"
	"sync"
	"testing"

	"github.com/covenant-ai/be-contracts/internal/cache"
	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
	"github.com/covenant-ai/be-contracts/internal/repository"
)

// countingStore wraps a store and counts Load calls that reach it.
type countingStore struct {
	ContractStore
	mu    sync.Mutex
	loads int
}

func (s *countingStore) Load(ctx context.Context, id string) (*domain.Contract, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.ContractStore.Load(ctx, id)
}

func (s *countingStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := &countingStore{ContractStore: repository.NewMemoryContractStore()}
	store := NewCachedStore(inner, cache.NewMemoryCache())
	ctx := context.Background()

	c := &domain.Contract{ID: "c1", Version: 1, Title: "t", Status: domain.StatusDraft}
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The committed write primed the cache; loads never touch the store.
	for i := 0; i < 3; i++ {
		got, err := store.Load(ctx, "c1")
		if err != nil || got.Version != 1 {
			t.Fatalf("load %d: %+v err=%v", i, got, err)
		}
	}
	if inner.loadCount() != 0 {
		t.Fatalf("expected cache hits, store saw %d loads", inner.loadCount())
	}
}

func TestCachedStoreMissPopulatesCache(t *testing.T) {
	inner := &countingStore{ContractStore: repository.NewMemoryContractStore()}
	mc := cache.NewMemoryCache()
	store := NewCachedStore(inner, mc)
	ctx := context.Background()

	seed := &domain.Contract{ID: "c1", Version: 1, Title: "t", Status: domain.StatusDraft}
	if err := inner.ContractStore.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.Load(ctx, "c1"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := store.Load(ctx, "c1"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if inner.loadCount() != 1 {
		t.Fatalf("expected one store load then cache hits, got %d", inner.loadCount())
	}
}

func TestCachedStoreInvalidatesOnConflict(t *testing.T) {
	inner := repository.NewMemoryContractStore()
	mc := cache.NewMemoryCache()
	store := NewCachedStore(inner, mc)
	ctx := context.Background()

	c := &domain.Contract{ID: "c1", Version: 1, Title: "t", Status: domain.StatusDraft}
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Another writer wins the race directly against the store.
	winner, _ := inner.Load(ctx, "c1")
	winner.Version = 2
	winner.Title = "winner"
	if err := inner.Save(ctx, winner); err != nil {
		t.Fatalf("winner save: %v", err)
	}

	// The cached writer's stale save conflicts and evicts the cached entry.
	stale := &domain.Contract{ID: "c1", Version: 2, Title: "loser", Status: domain.StatusDraft}
	if err := store.Save(ctx, stale); !errors.Is(err, errors.ErrCodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	reloaded, err := store.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Title != "winner" || reloaded.Version != 2 {
		t.Fatalf("stale cache served after conflict: %+v", reloaded)
	}
}

func TestCachedStoreDeleteEvicts(t *testing.T) {
	inner := repository.NewMemoryContractStore()
	store := NewCachedStore(inner, cache.NewMemoryCache())
	ctx := context.Background()

	c := &domain.Contract{ID: "c1", Version: 1, Title: "t", Status: domain.StatusDraft}
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "c1"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
