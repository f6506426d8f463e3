package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
	"github.com/covenant-ai/be-contracts/internal/events"
)

// sweepGuard keeps at most one expiry sweep in flight.
type sweepGuard struct {
	running atomic.Bool
}

// ActivateContract moves a fully signed contract into force.
func (s *ContractService) ActivateContract(ctx context.Context, id, actor string) (*domain.Contract, error) {
	return s.transition(ctx, id, actor, domain.StatusActive, domain.AuditUpdated, domain.EventContractUpdated, nil)
}

// CancelContract cancels a contract that has not been fully signed.
func (s *ContractService) CancelContract(ctx context.Context, id, actor, reason string) (*domain.Contract, error) {
	return s.transition(ctx, id, actor, domain.StatusCancelled, domain.AuditTerminated, domain.EventContractCancelled,
		map[string]any{"reason": reason})
}

// TerminateContract ends a signed, active or expired contract.
func (s *ContractService) TerminateContract(ctx context.Context, id, actor, reason string) (*domain.Contract, error) {
	return s.transition(ctx, id, actor, domain.StatusTerminated, domain.AuditTerminated, domain.EventContractTerminated,
		map[string]any{"reason": reason})
}

// transition applies a single table-checked status change.
func (s *ContractService) transition(
	ctx context.Context,
	id, actor string,
	target domain.ContractStatus,
	action domain.AuditAction,
	eventType domain.EventType,
	details map[string]any,
) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateTransition(contract.Status, target); err != nil {
		return nil, err
	}

	from := contract.Status
	contract.Status = target
	contract.Version++
	contract.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	if details == nil {
		details = map[string]any{}
	}
	details["from"] = string(from)
	details["to"] = string(target)
	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      action,
		PerformedBy: actor,
		Details:     details,
	})

	var outbox events.Outbox
	outbox.Add(eventType, contract.ID, map[string]any{"from": string(from), "to": string(target)})
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("Contract status changed")

	return contract, nil
}

// RenewContract extends an active contract. The status does not change; the
// renewal is recorded in the aggregate's dates and the audit trail.
func (s *ContractService) RenewContract(ctx context.Context, id, actor string, newExpiry time.Time) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.Status != domain.StatusActive {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"only active contracts can be renewed (current: %s)", contract.Status)
	}
	if !newExpiry.After(time.Now()) {
		return nil, errors.InvalidInput("expiresAt", "renewal expiry must be in the future")
	}

	now := time.Now().UTC()
	contract.ExpiresAt = &newExpiry
	contract.RenewalDate = &now
	contract.Version++
	contract.UpdatedAt = now

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditRenewed,
		PerformedBy: actor,
		Details:     map[string]any{"expiresAt": newExpiry},
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractRenewed, contract.ID, nil)
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Time("expires_at", newExpiry).
		Msg("Contract renewed")

	return contract, nil
}

// RecordDownload writes the downloaded audit entry. The aggregate itself is
// untouched.
func (s *ContractService) RecordDownload(ctx context.Context, id, actor, ipAddress, userAgent string) error {
	if _, err := s.store.Load(ctx, id); err != nil {
		return err
	}
	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  id,
		Action:      domain.AuditDownloaded,
		PerformedBy: actor,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	})
	return nil
}

// GetExpiring returns contracts that are out for signature or active and
// whose expiry falls within the window.
func (s *ContractService) GetExpiring(ctx context.Context, within time.Duration) ([]*domain.Contract, error) {
	statuses := append([]domain.ContractStatus{}, domain.ExpirySweepSources...)
	statuses = append(statuses, domain.StatusActive)

	candidates, err := s.store.ListByStatuses(ctx, statuses)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(within)
	out := make([]*domain.Contract, 0)
	for _, c := range candidates {
		if c.ExpiresAt != nil && !c.ExpiresAt.After(deadline) {
			out = append(out, c)
		}
	}
	return out, nil
}

// CheckExpiredContracts force-expires every overdue contract that is out for
// signature. At most one sweep runs at a time; a redundant invocation is a
// no-op because expired contracts are not in the sweep's source set.
func (s *ContractService) CheckExpiredContracts(ctx context.Context) (int, error) {
	if !s.sweep.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.sweep.running.Store(false)

	candidates, err := s.store.ListByStatuses(ctx, domain.ExpirySweepSources)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	expired := 0
	for _, contract := range candidates {
		if contract.ExpiresAt == nil || contract.ExpiresAt.After(now) {
			continue
		}
		if err := domain.ValidateTransition(contract.Status, domain.StatusExpired); err != nil {
			// Unreachable while the sweep sources match the table; skip rather
			// than abort the whole sweep.
			s.log.Warn().Err(err).Str("contract_id", contract.ID).Msg("Skipping expiry")
			continue
		}

		contract.Status = domain.StatusExpired
		contract.Version++
		contract.UpdatedAt = time.Now().UTC()
		if err := s.store.Save(ctx, contract); err != nil {
			s.log.Warn().Err(err).Str("contract_id", contract.ID).Msg("Failed to expire contract")
			continue
		}

		s.appendAudit(ctx, &domain.AuditEntry{
			ContractID:  contract.ID,
			Action:      domain.AuditExpired,
			PerformedBy: "system",
			Details:     map[string]any{"expiresAt": contract.ExpiresAt},
		})

		var outbox events.Outbox
		outbox.Add(domain.EventContractExpired, contract.ID, nil)
		s.dispatcher.Dispatch(ctx, outbox.Events())

		expired++
	}

	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("Expiry sweep completed")
	}
	return expired, nil
}
