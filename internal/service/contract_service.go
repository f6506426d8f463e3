// Package service implements the contract lifecycle engine: it owns every
// mutation of the contract aggregate, enforces the status transition table
// and writes one audit entry per state-changing operation.
package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
	"github.com/covenant-ai/be-contracts/internal/events"
	"github.com/covenant-ai/be-contracts/internal/logger"
)

// ContractService is the lifecycle engine.
type ContractService struct {
	store      ContractStore
	audit      AuditLog
	verifier   SignatureVerifier
	renderer   TemplateRenderer
	notifier   NotificationSender
	artifacts  ArtifactGenerator
	dispatcher EventDispatcher
	log        *logger.Logger

	sweep sweepGuard
}

// NewContractService creates the engine. renderer, notifier and artifacts may
// be nil; the corresponding side effects are then skipped (template creation
// fails without a renderer).
func NewContractService(
	store ContractStore,
	audit AuditLog,
	verifier SignatureVerifier,
	renderer TemplateRenderer,
	notifier NotificationSender,
	artifacts ArtifactGenerator,
	dispatcher EventDispatcher,
	log *logger.Logger,
) *ContractService {
	return &ContractService{
		store:      store,
		audit:      audit,
		verifier:   verifier,
		renderer:   renderer,
		notifier:   notifier,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		log:        log,
	}
}

// PartyInput describes one participant at create/update time.
type PartyInput struct {
	Type  domain.PartyType `json:"type"`
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  domain.PartyRole `json:"role"`
}

// CreateContractRequest creates a contract in draft.
type CreateContractRequest struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	RenderedHTML  string            `json:"renderedHtml,omitempty"`
	TemplateID    *string           `json:"templateId,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Parties       []PartyInput      `json:"parties"`
	ParentID      *string           `json:"parentId,omitempty"`
	ExpiresInDays *int              `json:"expiresInDays,omitempty"`
	CreatedBy     string            `json:"createdBy"`
	IPAddress     string            `json:"-"`
	UserAgent     string            `json:"-"`
}

// CreateContract validates the request, renders template content when a
// template reference is present, and persists a version-1 draft.
func (s *ContractService) CreateContract(ctx context.Context, req *CreateContractRequest) (*domain.Contract, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}
	if req.TemplateID == nil && strings.TrimSpace(req.Content) == "" {
		return nil, errors.InvalidInput("content", "either a template reference or explicit content is required")
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays <= 0 {
		return nil, errors.InvalidInput("expiresInDays", "expiry must be positive")
	}

	parties, err := buildParties(req.Parties)
	if err != nil {
		return nil, err
	}

	content := req.Content
	if req.TemplateID != nil {
		if s.renderer == nil {
			return nil, errors.New(errors.ErrCodeTemplate, "no template renderer configured")
		}
		content, err = s.renderer.Render(ctx, *req.TemplateID, req.Variables)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTemplate, "template rendering failed")
		}
	}
	if undefined := undefinedVariables(content, req.Variables); len(undefined) > 0 {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"content references undefined template variables: %s", strings.Join(undefined, ", "))
	}

	now := time.Now().UTC()
	contract := &domain.Contract{
		ID:           uuid.NewString(),
		Version:      1,
		ParentID:     req.ParentID,
		Title:        req.Title,
		Content:      content,
		RenderedHTML: req.RenderedHTML,
		TemplateID:   req.TemplateID,
		Variables:    req.Variables,
		Metadata:     req.Metadata,
		Tags:         dedupeTags(req.Tags),
		Parties:      parties,
		Signatures:   []*domain.Signature{},
		Status:       domain.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.ExpiresInDays != nil {
		expires := now.AddDate(0, 0, *req.ExpiresInDays)
		contract.ExpiresAt = &expires
	}

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditCreated,
		PerformedBy: req.CreatedBy,
		Details: map[string]any{
			"title":   contract.Title,
			"parties": len(contract.Parties),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractCreated, contract.ID, map[string]any{"title": contract.Title})
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Str("title", contract.Title).
		Int("parties", len(contract.Parties)).
		Msg("Contract created")

	return contract, nil
}

// GetContract retrieves a contract by id.
func (s *ContractService) GetContract(ctx context.Context, id string) (*domain.Contract, error) {
	return s.store.Load(ctx, id)
}

// UpdateContractRequest is a partial patch of a contract.
type UpdateContractRequest struct {
	ID           string                 `json:"-"`
	Title        *string                `json:"title,omitempty"`
	Content      *string                `json:"content,omitempty"`
	RenderedHTML *string                `json:"renderedHtml,omitempty"`
	Variables    map[string]string      `json:"variables,omitempty"`
	Metadata     map[string]string      `json:"metadata,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	Parties      []PartyInput           `json:"parties,omitempty"`
	Status       *domain.ContractStatus `json:"status,omitempty"`
	ExpiresAt    *time.Time             `json:"expiresAt,omitempty"`
	RenewalDate  *time.Time             `json:"renewalDate,omitempty"`
	UpdatedBy    string                 `json:"updatedBy"`
	IPAddress    string                 `json:"-"`
	UserAgent    string                 `json:"-"`
}

// UpdateContract applies a patch under the transition rules: a status change
// must appear in the transition table, and parties/content are immutable once
// the contract has left draft. The version increments by exactly one.
func (s *ContractService) UpdateContract(ctx context.Context, req *UpdateContractRequest) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != contract.Status {
		if err := domain.ValidateTransition(contract.Status, *req.Status); err != nil {
			return nil, err
		}
	}
	if !domain.Mutable(contract.Status) {
		if req.Content != nil || req.RenderedHTML != nil {
			return nil, errors.Newf(errors.ErrCodeValidation,
				"content is immutable once status has left draft (current: %s)", contract.Status)
		}
		if req.Parties != nil {
			return nil, errors.Newf(errors.ErrCodeValidation,
				"parties are immutable once status has left draft (current: %s)", contract.Status)
		}
	}

	changed := make([]string, 0, 4)

	if req.Title != nil {
		contract.Title = *req.Title
		changed = append(changed, "title")
	}
	if req.Content != nil {
		contract.Content = *req.Content
		changed = append(changed, "content")
	}
	if req.RenderedHTML != nil {
		contract.RenderedHTML = *req.RenderedHTML
		changed = append(changed, "renderedHtml")
	}
	if req.Parties != nil {
		parties, err := buildParties(req.Parties)
		if err != nil {
			return nil, err
		}
		contract.Parties = parties
		changed = append(changed, "parties")
	}
	if req.Metadata != nil {
		contract.Metadata = req.Metadata
		changed = append(changed, "metadata")
	}
	if req.Tags != nil {
		contract.Tags = dedupeTags(req.Tags)
		changed = append(changed, "tags")
	}
	if req.ExpiresAt != nil {
		contract.ExpiresAt = req.ExpiresAt
		changed = append(changed, "expiresAt")
	}
	if req.RenewalDate != nil {
		contract.RenewalDate = req.RenewalDate
		changed = append(changed, "renewalDate")
	}

	// Re-render only when the contract is template-backed and variables change.
	if req.Variables != nil {
		contract.Variables = req.Variables
		changed = append(changed, "variables")
		if contract.TemplateID != nil {
			if s.renderer == nil {
				return nil, errors.New(errors.ErrCodeTemplate, "no template renderer configured")
			}
			content, err := s.renderer.Render(ctx, *contract.TemplateID, contract.Variables)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeTemplate, "template rendering failed")
			}
			contract.Content = content
		}
	}

	if req.Status != nil && *req.Status != contract.Status {
		contract.Status = *req.Status
		changed = append(changed, "status")
	}

	contract.Version++
	contract.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditUpdated,
		PerformedBy: req.UpdatedBy,
		Details:     map[string]any{"fields": changed},
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractUpdated, contract.ID, map[string]any{"fields": changed})
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Int("version", contract.Version).
		Strs("fields", changed).
		Msg("Contract updated")

	return contract, nil
}

// DeleteContract removes a draft contract. Deleting any other status is
// refused.
func (s *ContractService) DeleteContract(ctx context.Context, id, deletedBy string) error {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if contract.Status != domain.StatusDraft {
		return errors.Newf(errors.ErrCodeConflict,
			"cannot delete contract with status %q; only drafts may be deleted", contract.Status)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  id,
		Action:      domain.AuditDeleted,
		PerformedBy: deletedBy,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractDeleted, id, nil)
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().Str("contract_id", id).Msg("Contract deleted")
	return nil
}

// GetAuditTrail returns a contract's case history, oldest first.
func (s *ContractService) GetAuditTrail(ctx context.Context, contractID string) ([]*domain.AuditEntry, error) {
	if _, err := s.store.Load(ctx, contractID); err != nil {
		return nil, err
	}
	return s.audit.ByContract(ctx, contractID)
}

// ── internal helpers ──────────────────────────────────────────────────────────

// buildParties validates and materializes party inputs. A contract needs at
// least one client and one contractor, and emails must be unique within it.
func buildParties(inputs []PartyInput) ([]*domain.Party, error) {
	if len(inputs) == 0 {
		return nil, errors.InvalidInput("parties", "at least one client and one contractor party are required")
	}

	seen := make(map[string]bool, len(inputs))
	hasClient, hasContractor := false, false
	parties := make([]*domain.Party, 0, len(inputs))

	for _, in := range inputs {
		if !in.Role.Valid() {
			return nil, errors.InvalidInput("parties", "unknown party role "+string(in.Role))
		}
		if !in.Type.Valid() {
			return nil, errors.InvalidInput("parties", "unknown party type "+string(in.Type))
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, errors.InvalidInput("parties", "party name is required")
		}
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, errors.InvalidInput("parties", "invalid party email "+in.Email)
		}
		if seen[in.Email] {
			return nil, errors.InvalidInput("parties", "duplicate party email "+in.Email)
		}
		seen[in.Email] = true

		switch in.Role {
		case domain.RoleClient:
			hasClient = true
		case domain.RoleContractor:
			hasContractor = true
		}

		parties = append(parties, &domain.Party{
			ID:    uuid.NewString(),
			Type:  in.Type,
			Name:  in.Name,
			Email: in.Email,
			Role:  in.Role,
		})
	}

	if !hasClient || !hasContractor {
		return nil, errors.InvalidInput("parties",
			"a contract requires at least one client and one contractor party")
	}
	return parties, nil
}

// undefinedVariables returns {{placeholders}} in content with no entry in
// variables.
func undefinedVariables(content string, variables map[string]string) []string {
	var missing []string
	rest := content
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			break
		}
		name := strings.TrimSpace(rest[start+2 : start+end])
		if name != "" {
			if _, ok := variables[name]; !ok {
				missing = append(missing, name)
			}
		}
		rest = rest[start+end+2:]
	}
	return missing
}

func dedupeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// appendAudit stamps and writes an audit entry, logging a warning on failure.
// A failed audit write never rolls back the committed contract mutation.
func (s *ContractService) appendAudit(ctx context.Context, entry *domain.AuditEntry) {
	entry.ID = uuid.NewString()
	entry.PerformedAt = time.Now().UTC()
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("contract_id", entry.ContractID).
			Str("action", string(entry.Action)).
			Msg("Failed to write audit log entry")
	}
}

// notify hands one notification to the notification collaborator,
// fire-and-forget.
func (s *ContractService) notify(ctx context.Context, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("contract_id", n.ContractID).
			Str("recipient", n.Recipient).
			Msg("Notification delivery failed (non-fatal)")
	}
}
