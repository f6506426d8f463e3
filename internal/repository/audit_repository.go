package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/covenant-ai/be-contracts/internal/database"
	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
)

// AuditLogRepository appends and reads immutable audit log entries. The table
// has a delete-prevention trigger, so Append is the only mutation exposed.
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new AuditLogRepository.
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append inserts one audit entry. It rejects only on a missing required field.
func (r *AuditLogRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit details")
		}
	}

	query := `
		INSERT INTO contract_audit_log
		    (id, contract_id, action, performed_by, performed_at,
		     details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ContractID,
		string(entry.Action),
		entry.PerformedBy,
		entry.PerformedAt,
		detailsJSON,
		nullable(entry.IPAddress),
		nullable(entry.UserAgent),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ByContract returns the full case history for a contract, oldest first.
func (r *AuditLogRepository) ByContract(ctx context.Context, contractID string) ([]*domain.AuditEntry, error) {
	return r.query(ctx, `WHERE contract_id = $1 ORDER BY performed_at ASC`, contractID)
}

// ByActor returns entries performed by the given actor, newest first.
func (r *AuditLogRepository) ByActor(ctx context.Context, actor string) ([]*domain.AuditEntry, error) {
	return r.query(ctx, `WHERE performed_by = $1 ORDER BY performed_at DESC`, actor)
}

// ByAction returns entries for one action, newest first.
func (r *AuditLogRepository) ByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditEntry, error) {
	return r.query(ctx, `WHERE action = $1 ORDER BY performed_at DESC`, string(action))
}

// ByDateRange returns entries performed within [from, to], newest first.
func (r *AuditLogRepository) ByDateRange(ctx context.Context, from, to time.Time) ([]*domain.AuditEntry, error) {
	return r.query(ctx, `WHERE performed_at >= $1 AND performed_at <= $2 ORDER BY performed_at DESC`, from, to)
}

// ── internal ──────────────────────────────────────────────────────────────────

func validateEntry(entry *domain.AuditEntry) error {
	if entry.ContractID == "" {
		return errors.InvalidInput("contractId", "audit entry requires a contract id")
	}
	if entry.Action == "" {
		return errors.InvalidInput("action", "audit entry requires an action")
	}
	if entry.PerformedBy == "" {
		return errors.InvalidInput("performedBy", "audit entry requires an actor")
	}
	return nil
}

func (r *AuditLogRepository) query(ctx context.Context, clause string, args ...any) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, contract_id, action, performed_by, performed_at,
		       details, ip_address, user_agent
		FROM contract_audit_log ` + clause

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to query audit log")
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]*domain.AuditEntry, error) {
	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		entry := &domain.AuditEntry{}
		var (
			action      string
			detailsJSON []byte
			ip, ua      *string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.ContractID,
			&action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&detailsJSON,
			&ip,
			&ua,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}

		entry.Action = domain.AuditAction(action)
		if detailsJSON != nil {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit details")
			}
		}
		if ip != nil {
			entry.IPAddress = *ip
		}
		if ua != nil {
			entry.UserAgent = *ua
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
