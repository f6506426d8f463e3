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

// ContractRepository persists contract aggregates in Postgres. Parties,
// signatures, variables, metadata and tags are stored as JSONB so the row
// matches the audit-export field names.
type ContractRepository struct {
	db *database.DB
}

// NewContractRepository creates a new contract repository.
func NewContractRepository(db *database.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `
	id, version, parent_id, title, content, rendered_html, template_id,
	variables, metadata, tags, parties, signatures, status,
	created_at, updated_at, sent_at, completed_at, expires_at, renewal_date
`

// Save inserts a version-1 contract or conditionally updates an existing one.
// The caller increments Version before saving; an update only succeeds when
// the stored row still carries the previous version. A losing writer gets a
// retryable conflict.
func (r *ContractRepository) Save(ctx context.Context, c *domain.Contract) error {
	variables, metadata, tags, parties, signatures, err := marshalAggregate(c)
	if err != nil {
		return err
	}

	if c.Version == 1 {
		query := `
			INSERT INTO contracts (` + contractColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			        $14, $15, $16, $17, $18, $19)
		`
		_, err := r.db.Exec(ctx, query,
			c.ID, c.Version, c.ParentID, c.Title, c.Content, c.RenderedHTML, c.TemplateID,
			variables, metadata, tags, parties, signatures, string(c.Status),
			c.CreatedAt, c.UpdatedAt, c.SentAt, c.CompletedAt, c.ExpiresAt, c.RenewalDate,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert contract")
		}
		return nil
	}

	query := `
		UPDATE contracts
		SET version = $2, parent_id = $3, title = $4, content = $5,
		    rendered_html = $6, template_id = $7, variables = $8, metadata = $9,
		    tags = $10, parties = $11, signatures = $12, status = $13,
		    updated_at = $14, sent_at = $15, completed_at = $16,
		    expires_at = $17, renewal_date = $18
		WHERE id = $1 AND version = $19
	`
	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Version, c.ParentID, c.Title, c.Content,
		c.RenderedHTML, c.TemplateID, variables, metadata,
		tags, parties, signatures, string(c.Status),
		c.UpdatedAt, c.SentAt, c.CompletedAt,
		c.ExpiresAt, c.RenewalDate,
		c.Version-1,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update contract")
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict("contract was modified concurrently; reload and retry")
	}
	return nil
}

// Load retrieves a contract by id, or a not-found error.
func (r *ContractRepository) Load(ctx context.Context, id string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("contract", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a contract row. The service layer enforces the draft-only
// deletion rule before calling this.
func (r *ContractRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete contract")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("contract", id)
	}
	return nil
}

// List returns all contracts ordered by creation time. The service applies
// search filtering over this set.
func (r *ContractRepository) List(ctx context.Context) ([]*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list contracts")
	}
	defer rows.Close()
	return scanContracts(rows)
}

// ListByStatuses returns contracts whose status is in the given set.
func (r *ContractRepository) ListByStatuses(ctx context.Context, statuses []domain.ContractStatus) ([]*domain.Contract, error) {
	set := make([]string, len(statuses))
	for i, s := range statuses {
		set[i] = string(s)
	}

	query := `SELECT ` + contractColumns + ` FROM contracts WHERE status = ANY($1) ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, set)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list contracts by status")
	}
	defer rows.Close()
	return scanContracts(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func marshalAggregate(c *domain.Contract) (variables, metadata, tags, parties, signatures []byte, err error) {
	if variables, err = json.Marshal(c.Variables); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal variables")
	}
	if metadata, err = json.Marshal(c.Metadata); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal metadata")
	}
	if tags, err = json.Marshal(c.Tags); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal tags")
	}
	if parties, err = json.Marshal(c.Parties); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal parties")
	}
	if signatures, err = json.Marshal(c.Signatures); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal signatures")
	}
	return variables, metadata, tags, parties, signatures, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*domain.Contract, error) {
	c := &domain.Contract{}
	var (
		variables, metadata, tags, parties, signatures []byte
		status                                         string
		sentAt, completedAt, expiresAt, renewalDate    *time.Time
	)

	err := row.Scan(
		&c.ID, &c.Version, &c.ParentID, &c.Title, &c.Content, &c.RenderedHTML, &c.TemplateID,
		&variables, &metadata, &tags, &parties, &signatures, &status,
		&c.CreatedAt, &c.UpdatedAt, &sentAt, &completedAt, &expiresAt, &renewalDate,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan contract")
	}

	c.Status = domain.ContractStatus(status)
	c.SentAt = sentAt
	c.CompletedAt = completedAt
	c.ExpiresAt = expiresAt
	c.RenewalDate = renewalDate

	if err := unmarshalInto(variables, &c.Variables); err != nil {
		return nil, err
	}
	if err := unmarshalInto(metadata, &c.Metadata); err != nil {
		return nil, err
	}
	if err := unmarshalInto(tags, &c.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalInto(parties, &c.Parties); err != nil {
		return nil, err
	}
	if err := unmarshalInto(signatures, &c.Signatures); err != nil {
		return nil, err
	}
	if c.Parties == nil {
		c.Parties = []*domain.Party{}
	}
	if c.Signatures == nil {
		c.Signatures = []*domain.Signature{}
	}

	return c, nil
}

func unmarshalInto(data []byte, dest any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal contract field")
	}
	return nil
}

func scanContracts(rows pgx.Rows) ([]*domain.Contract, error) {
	contracts := make([]*domain.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
