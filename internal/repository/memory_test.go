package repository

import (
	"context"
	"testing"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
)

func seedContract(id string, version int, status domain.ContractStatus) *domain.Contract {
	now := time.Now().UTC()
	return &domain.Contract{
		ID:      id,
		Version: version,
		Title:   "test " + id,
		Content: "body",
		Status:  status,
		Parties: []*domain.Party{
			{ID: id + "-p1", Role: domain.RoleClient, Email: id + "-client@x.example", Name: "Client", Type: domain.PartyTypeBrand},
			{ID: id + "-p2", Role: domain.RoleContractor, Email: id + "-contractor@x.example", Name: "Contractor", Type: domain.PartyTypeInfluencer},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreVersionSemantics(t *testing.T) {
	store := NewMemoryContractStore()
	ctx := context.Background()

	c := seedContract("c1", 1, domain.StatusDraft)
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Save(ctx, seedContract("c1", 1, domain.StatusDraft)); !errors.Is(err, errors.ErrCodeConflict) {
		t.Fatalf("duplicate insert should conflict, got %v", err)
	}

	c.Version = 2
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("versioned update: %v", err)
	}

	// A writer holding a stale snapshot must lose.
	stale := seedContract("c1", 2, domain.StatusDraft)
	if err := store.Save(ctx, stale); !errors.Is(err, errors.ErrCodeConflict) {
		t.Fatalf("stale write should conflict, got %v", err)
	}

	// Skipping a version is also refused.
	c.Version = 5
	if err := store.Save(ctx, c); !errors.Is(err, errors.ErrCodeConflict) {
		t.Fatalf("version skip should conflict, got %v", err)
	}

	if err := store.Save(ctx, seedContract("ghost", 2, domain.StatusDraft)); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("update of a missing contract should be not found, got %v", err)
	}
}

func TestMemoryStoreCloneIsolation(t *testing.T) {
	store := NewMemoryContractStore()
	ctx := context.Background()

	c := seedContract("c1", 1, domain.StatusDraft)
	if err := store.Save(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Mutating the saved aggregate must not leak into the store.
	c.Title = "mutated after save"
	loaded, err := store.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Title != "test c1" {
		t.Fatalf("store shares memory with the caller: %q", loaded.Title)
	}

	// Nor must mutating a loaded copy.
	loaded.Parties[0].Email = "hijacked@x.example"
	again, _ := store.Load(ctx, "c1")
	if again.Parties[0].Email != "c1-client@x.example" {
		t.Fatalf("loaded aggregate shares party memory with the store")
	}
}

func TestMemoryStoreDeleteAndList(t *testing.T) {
	store := NewMemoryContractStore()
	ctx := context.Background()

	if err := store.Save(ctx, seedContract("a", 1, domain.StatusDraft)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Save(ctx, seedContract("b", 1, domain.StatusSent)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Save(ctx, seedContract("c", 1, domain.StatusViewed)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	byStatus, err := store.ListByStatuses(ctx, []domain.ContractStatus{domain.StatusSent, domain.StatusViewed})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(byStatus))
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("double delete should be not found, got %v", err)
	}

	all, _ := store.List(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 remaining contracts, got %d", len(all))
	}
}

func TestMemoryAuditLog(t *testing.T) {
	log := NewMemoryAuditLog()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	entries := []*domain.AuditEntry{
		{ID: "e1", ContractID: "c1", Action: domain.AuditCreated, PerformedBy: "ops", PerformedAt: base},
		{ID: "e2", ContractID: "c1", Action: domain.AuditSent, PerformedBy: "ops", PerformedAt: base.Add(time.Minute)},
		{ID: "e3", ContractID: "c1", Action: domain.AuditSigned, PerformedBy: "alice@x.example", PerformedAt: base.Add(2 * time.Minute)},
		{ID: "e4", ContractID: "c2", Action: domain.AuditCreated, PerformedBy: "ops", PerformedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.ID, err)
		}
	}

	if err := log.Append(ctx, &domain.AuditEntry{ID: "bad", Action: domain.AuditCreated, PerformedBy: "ops"}); !errors.Is(err, errors.ErrCodeValidation) {
		t.Fatalf("entry without contract id should be refused, got %v", err)
	}

	byContract, err := log.ByContract(ctx, "c1")
	if err != nil {
		t.Fatalf("by contract: %v", err)
	}
	if len(byContract) != 3 {
		t.Fatalf("expected 3 entries for c1, got %d", len(byContract))
	}
	for i := 1; i < len(byContract); i++ {
		if byContract[i].PerformedAt.Before(byContract[i-1].PerformedAt) {
			t.Fatalf("contract history must be oldest first")
		}
	}

	byActor, _ := log.ByActor(ctx, "ops")
	if len(byActor) != 3 {
		t.Fatalf("expected 3 entries for ops, got %d", len(byActor))
	}
	if byActor[0].ID != "e4" {
		t.Fatalf("actor query must be newest first, got %s", byActor[0].ID)
	}

	byAction, _ := log.ByAction(ctx, domain.AuditSigned)
	if len(byAction) != 1 || byAction[0].ID != "e3" {
		t.Fatalf("unexpected by-action result: %+v", byAction)
	}

	inRange, _ := log.ByDateRange(ctx, base.Add(30*time.Second), base.Add(150*time.Second))
	if len(inRange) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(inRange))
	}
}
