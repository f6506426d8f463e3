package service

import (
	"context"

	"github.com/covenant-ai/be-contracts/internal/cache"
	"github.com/covenant-ai/be-contracts/internal/domain"
)

// CachedStore is a read-through cache in front of a ContractStore. Loads are
// served from cache when possible; every committed versioned write updates
// the cache and a conflicting write invalidates it so the loser re-reads.
type CachedStore struct {
	inner ContractStore
	cache cache.ContractCache
}

// NewCachedStore wraps a store with a cache.
func NewCachedStore(inner ContractStore, c cache.ContractCache) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

func (s *CachedStore) Save(ctx context.Context, c *domain.Contract) error {
	if err := s.inner.Save(ctx, c); err != nil {
		// A version conflict means our cached view is stale.
		s.cache.Invalidate(ctx, c.ID)
		return err
	}
	s.cache.Put(ctx, c)
	return nil
}

func (s *CachedStore) Load(ctx context.Context, id string) (*domain.Contract, error) {
	if c, ok := s.cache.Get(ctx, id); ok {
		return c, nil
	}
	c, err := s.inner.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, c)
	return c, nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// List always goes to the store; search correctness cannot tolerate a
// partially populated cache.
func (s *CachedStore) List(ctx context.Context) ([]*domain.Contract, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) ListByStatuses(ctx context.Context, statuses []domain.ContractStatus) ([]*domain.Contract, error) {
	return s.inner.ListByStatuses(ctx, statuses)
}
