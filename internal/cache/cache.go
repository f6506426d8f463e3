// Package cache provides a read-through cache in front of the contract store.
// Entries are keyed by contract id and version, never by wall-clock TTL, so a
// stale entry can never survive a committed versioned write.
package cache

import (
	"context"
	"sync"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// ContractCache stores recent contract aggregates by id.
type ContractCache interface {
	// Get returns the cached contract, or ok=false on a miss.
	Get(ctx context.Context, id string) (c *domain.Contract, ok bool)
	// Put stores the contract. Implementations must never replace a cached
	// entry with a lower version.
	Put(ctx context.Context, c *domain.Contract)
	// Invalidate drops the entry for an id.
	Invalidate(ctx context.Context, id string)
}

// MemoryCache is an in-process ContractCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*domain.Contract
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*domain.Contract)}
}

func (c *MemoryCache) Get(_ context.Context, id string) (*domain.Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

func (c *MemoryCache) Put(_ context.Context, contract *domain.Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[contract.ID]; ok && existing.Version > contract.Version {
		return
	}
	c.entries[contract.ID] = contract.Clone()
}

func (c *MemoryCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
