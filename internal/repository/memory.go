package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
)

// MemoryContractStore is an in-process contract store with the same
// optimistic-concurrency contract as the Postgres repository. It backs tests
// and local runs without a database.
type MemoryContractStore struct {
	mu        sync.RWMutex
	contracts map[string]*domain.Contract
}

// NewMemoryContractStore creates an empty store.
func NewMemoryContractStore() *MemoryContractStore {
	return &MemoryContractStore{contracts: make(map[string]*domain.Contract)}
}

// Save stores a clone of the contract. Version-1 saves insert; later versions
// must match stored version + 1 or the write fails with a conflict.
func (s *MemoryContractStore) Save(_ context.Context, c *domain.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contracts[c.ID]
	if c.Version == 1 {
		if ok {
			return errors.Conflict("contract already exists")
		}
	} else {
		if !ok {
			return errors.NotFound("contract", c.ID)
		}
		if existing.Version != c.Version-1 {
			return errors.Conflict("contract was modified concurrently; reload and retry")
		}
	}

	s.contracts[c.ID] = c.Clone()
	return nil
}

// Load returns a clone of the stored contract.
func (s *MemoryContractStore) Load(_ context.Context, id string) (*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, errors.NotFound("contract", id)
	}
	return c.Clone(), nil
}

// Delete removes a contract.
func (s *MemoryContractStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[id]; !ok {
		return errors.NotFound("contract", id)
	}
	delete(s.contracts, id)
	return nil
}

// List returns clones of all contracts ordered by creation time.
func (s *MemoryContractStore) List(_ context.Context) ([]*domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListByStatuses returns contracts whose status is in the given set.
func (s *MemoryContractStore) ListByStatuses(ctx context.Context, statuses []domain.ContractStatus) ([]*domain.Contract, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Contract, 0)
	for _, c := range all {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

// MemoryAuditLog is an in-process append-only audit log.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

// NewMemoryAuditLog creates an empty log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Append records one entry. It rejects only on a missing required field.
func (l *MemoryAuditLog) Append(_ context.Context, entry *domain.AuditEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

// ByContract returns a contract's history oldest-first.
func (l *MemoryAuditLog) ByContract(_ context.Context, contractID string) ([]*domain.AuditEntry, error) {
	return l.filter(func(e *domain.AuditEntry) bool { return e.ContractID == contractID }, true), nil
}

// ByActor returns entries for an actor, newest first.
func (l *MemoryAuditLog) ByActor(_ context.Context, actor string) ([]*domain.AuditEntry, error) {
	return l.filter(func(e *domain.AuditEntry) bool { return e.PerformedBy == actor }, false), nil
}

// ByAction returns entries for one action, newest first.
func (l *MemoryAuditLog) ByAction(_ context.Context, action domain.AuditAction) ([]*domain.AuditEntry, error) {
	return l.filter(func(e *domain.AuditEntry) bool { return e.Action == action }, false), nil
}

// ByDateRange returns entries within [from, to], newest first.
func (l *MemoryAuditLog) ByDateRange(_ context.Context, from, to time.Time) ([]*domain.AuditEntry, error) {
	return l.filter(func(e *domain.AuditEntry) bool {
		return !e.PerformedAt.Before(from) && !e.PerformedAt.After(to)
	}, false), nil
}

func (l *MemoryAuditLog) filter(match func(*domain.AuditEntry) bool, oldestFirst bool) []*domain.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.AuditEntry, 0)
	for _, e := range l.entries {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if oldestFirst {
			return out[i].PerformedAt.Before(out[j].PerformedAt)
		}
		return out[i].PerformedAt.After(out[j].PerformedAt)
	})
	return out
}
