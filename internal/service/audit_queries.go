package service

import (
	"context"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// Audit reporting queries. These are pure reads over the append-only log;
// ByContract lives on GetAuditTrail because it validates the contract exists.

// AuditByActor returns entries performed by an actor, newest first.
func (s *ContractService) AuditByActor(ctx context.Context, actor string) ([]*domain.AuditEntry, error) {
	return s.audit.ByActor(ctx, actor)
}

// AuditByAction returns entries for one action, newest first.
func (s *ContractService) AuditByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditEntry, error) {
	return s.audit.ByAction(ctx, action)
}

// AuditByDateRange returns entries within [from, to], newest first.
func (s *ContractService) AuditByDateRange(ctx context.Context, from, to time.Time) ([]*domain.AuditEntry, error) {
	return s.audit.ByDateRange(ctx, from, to)
}
