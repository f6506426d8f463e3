package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
	"github.com/covenant-ai/be-contracts/internal/events"
)

// SendContractRequest routes a contract to its parties for signature.
type SendContractRequest struct {
	ID            string `json:"-"`
	SentBy        string `json:"sentBy"`
	Message       string `json:"message,omitempty"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
	IPAddress     string `json:"-"`
	UserAgent     string `json:"-"`
}

// SendContract moves a draft or approved contract to sent, stamps sentAt and
// hands one notification per client/contractor party to the notification
// collaborator.
func (s *ContractService) SendContract(ctx context.Context, req *SendContractRequest) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if contract.Status != domain.StatusDraft && contract.Status != domain.StatusApproved {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"contract can only be sent from draft or approved (current: %s)", contract.Status)
	}
	if err := domain.ValidateTransition(contract.Status, domain.StatusSent); err != nil {
		return nil, err
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays <= 0 {
		return nil, errors.InvalidInput("expiresInDays", "expiry must be positive")
	}

	now := time.Now().UTC()
	contract.Status = domain.StatusSent
	contract.SentAt = &now
	if req.ExpiresInDays != nil {
		expires := now.AddDate(0, 0, *req.ExpiresInDays)
		contract.ExpiresAt = &expires
	}
	contract.Version++
	contract.UpdatedAt = now

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	for _, p := range contract.Parties {
		if !p.Role.Signing() {
			continue
		}
		s.notify(ctx, Notification{
			Type:       domain.EventContractSent,
			ContractID: contract.ID,
			Recipient:  p.Email,
			PartyName:  p.Name,
			Subject:    fmt.Sprintf("Contract ready for signature: %s", contract.Title),
			Message:    req.Message,
		})
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditSent,
		PerformedBy: req.SentBy,
		Details:     map[string]any{"recipients": signingRecipients(contract)},
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractSent, contract.ID, nil)
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Int("recipients", len(signingRecipients(contract))).
		Msg("Contract sent for signature")

	return contract, nil
}

// SignContractRequest records one party's signature.
type SignContractRequest struct {
	ContractID  string               `json:"-"`
	SignerEmail string               `json:"signerEmail"`
	Type        domain.SignatureType `json:"type"`
	Data        string               `json:"data"`
	IPAddress   string               `json:"ipAddress,omitempty"`
	UserAgent   string               `json:"userAgent,omitempty"`
	Geolocation *domain.Geolocation  `json:"geolocation,omitempty"`
}

// SignResult reports the outcome of a signing operation. Verified is false
// when the verifier rejected the payload; the signature is recorded either
// way and the caller decides how to surface the failure.
type SignResult struct {
	Contract  *domain.Contract  `json:"contract"`
	Signature *domain.Signature `json:"signature"`
	Verified  bool              `json:"verified"`
	Completed bool              `json:"completed"`
}

// SignContract runs the signing protocol: resolve the party by email, check
// the contract accepts signatures, verify the payload, append the signature,
// stamp the party, recompute completion, and record the action. A second
// signature from the same party is rejected; callers wanting idempotence
// should consult GetSigningStatus first.
func (s *ContractService) SignContract(ctx context.Context, req *SignContractRequest) (*SignResult, error) {
	contract, err := s.store.Load(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}

	party := contract.PartyByEmail(req.SignerEmail)
	if party == nil {
		return nil, errors.Newf(errors.ErrCodeSignature,
			"%s is not a party to this contract", req.SignerEmail)
	}
	if !domain.Signable(contract.Status) {
		return nil, errors.Newf(errors.ErrCodeSignature,
			"contract cannot be signed in status %q", contract.Status)
	}
	if len(contract.SignaturesForParty(party.ID)) > 0 {
		return nil, errors.Newf(errors.ErrCodeSignature,
			"party %s has already signed this contract", req.SignerEmail)
	}

	verified := s.verifier.Verify(ctx, req.Type, req.Data)

	now := time.Now().UTC()
	sig := &domain.Signature{
		ID:          uuid.NewString(),
		PartyID:     party.ID,
		Type:        req.Type,
		Data:        req.Data,
		Timestamp:   now,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Geolocation: req.Geolocation,
		Verified:    verified,
	}
	contract.Signatures = append(contract.Signatures, sig)
	party.SignedAt = &now

	completed := contract.FullySigned()
	target := domain.StatusPartiallySigned
	if completed {
		target = domain.StatusSigned
	}
	if contract.Status != target {
		if err := domain.ValidateTransition(contract.Status, target); err != nil {
			return nil, err
		}
		contract.Status = target
	}
	if completed && contract.CompletedAt == nil {
		contract.CompletedAt = &now
	}

	contract.Version++
	contract.UpdatedAt = now
	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditSigned,
		PerformedBy: req.SignerEmail,
		Details: map[string]any{
			"signatureType": string(req.Type),
			"verified":      verified,
			"completed":     completed,
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractSigned, contract.ID, map[string]any{
		"signerEmail": req.SignerEmail,
		"verified":    verified,
	})
	if completed {
		outbox.Add(domain.EventContractCompleted, contract.ID, nil)
		s.generateFinalArtifact(ctx, contract)
		for _, p := range contract.Parties {
			if !p.Role.Signing() {
				continue
			}
			s.notify(ctx, Notification{
				Type:       domain.EventContractCompleted,
				ContractID: contract.ID,
				Recipient:  p.Email,
				PartyName:  p.Name,
				Subject:    fmt.Sprintf("Contract fully signed: %s", contract.Title),
			})
		}
	}
	s.dispatcher.Dispatch(ctx, outbox.Events())

	s.log.Info().
		Str("contract_id", contract.ID).
		Str("signer", req.SignerEmail).
		Str("type", string(req.Type)).
		Bool("verified", verified).
		Bool("completed", completed).
		Msg("Contract signed")

	return &SignResult{Contract: contract, Signature: sig, Verified: verified, Completed: completed}, nil
}

// MarkViewed records that a party opened the contract. The first view from
// sent moves the contract to viewed; later views only refresh the party's
// viewedAt stamp.
func (s *ContractService) MarkViewed(ctx context.Context, id, partyEmail, ipAddress, userAgent string) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	party := contract.PartyByEmail(partyEmail)
	if party == nil {
		return nil, errors.Newf(errors.ErrCodeSignature,
			"%s is not a party to this contract", partyEmail)
	}

	now := time.Now().UTC()
	party.ViewedAt = &now

	if contract.Status == domain.StatusSent {
		if err := domain.ValidateTransition(contract.Status, domain.StatusViewed); err != nil {
			return nil, err
		}
		contract.Status = domain.StatusViewed
	}

	contract.Version++
	contract.UpdatedAt = now
	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditViewed,
		PerformedBy: partyEmail,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractViewed, contract.ID, map[string]any{"partyEmail": partyEmail})
	s.dispatcher.Dispatch(ctx, outbox.Events())

	return contract, nil
}

// SendReminder nudges one unsigned signing party while the contract is out
// for signature.
func (s *ContractService) SendReminder(ctx context.Context, id, partyEmail, sentBy string) (*domain.Contract, error) {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.Signable(contract.Status) {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"reminders can only be sent while the contract is out for signature (current: %s)", contract.Status)
	}

	party := contract.PartyByEmail(partyEmail)
	if party == nil {
		return nil, errors.Newf(errors.ErrCodeSignature,
			"%s is not a party to this contract", partyEmail)
	}
	if !party.Role.Signing() {
		return nil, errors.InvalidInput("partyEmail", "reminders only apply to client and contractor parties")
	}
	if party.SignedAt != nil {
		return nil, errors.Conflict("party has already signed; no reminder needed")
	}

	now := time.Now().UTC()
	party.RemindersSent++
	party.LastReminderAt = &now
	contract.Version++
	contract.UpdatedAt = now

	if err := s.store.Save(ctx, contract); err != nil {
		return nil, err
	}

	s.notify(ctx, Notification{
		Type:       domain.EventContractReminder,
		ContractID: contract.ID,
		Recipient:  party.Email,
		PartyName:  party.Name,
		Subject:    fmt.Sprintf("Reminder: contract awaiting your signature: %s", contract.Title),
	})

	s.appendAudit(ctx, &domain.AuditEntry{
		ContractID:  contract.ID,
		Action:      domain.AuditReminderSent,
		PerformedBy: sentBy,
		Details:     map[string]any{"partyEmail": partyEmail, "remindersSent": party.RemindersSent},
	})

	var outbox events.Outbox
	outbox.Add(domain.EventContractReminder, contract.ID, map[string]any{"partyEmail": partyEmail})
	s.dispatcher.Dispatch(ctx, outbox.Events())

	return contract, nil
}

// PartySigningStatus is the per-party projection of signing progress.
type PartySigningStatus struct {
	PartyID        string           `json:"partyId"`
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Role           domain.PartyRole `json:"role"`
	Signed         bool             `json:"signed"`
	SignedAt       *time.Time       `json:"signedAt,omitempty"`
	ViewedAt       *time.Time       `json:"viewedAt,omitempty"`
	RemindersSent  int              `json:"remindersSent"`
	LastReminderAt *time.Time       `json:"lastReminderAt,omitempty"`
}

// SigningStatus is a pure read projection of a contract's signing progress.
type SigningStatus struct {
	ContractID  string                `json:"contractId"`
	Status      domain.ContractStatus `json:"status"`
	SentAt      *time.Time            `json:"sentAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	ExpiresAt   *time.Time            `json:"expiresAt,omitempty"`
	Complete    bool                  `json:"complete"`
	Parties     []PartySigningStatus  `json:"parties"`
}

// GetSigningStatus derives per-party signing progress without mutating
// anything.
func (s *ContractService) GetSigningStatus(ctx context.Context, id string) (*SigningStatus, error) {
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &SigningStatus{
		ContractID:  contract.ID,
		Status:      contract.Status,
		SentAt:      contract.SentAt,
		CompletedAt: contract.CompletedAt,
		ExpiresAt:   contract.ExpiresAt,
		Complete:    contract.FullySigned(),
		Parties:     make([]PartySigningStatus, 0, len(contract.Parties)),
	}
	for _, p := range contract.Parties {
		status.Parties = append(status.Parties, PartySigningStatus{
			PartyID:        p.ID,
			Name:           p.Name,
			Email:          p.Email,
			Role:           p.Role,
			Signed:         len(contract.SignaturesForParty(p.ID)) > 0,
			SignedAt:       p.SignedAt,
			ViewedAt:       p.ViewedAt,
			RemindersSent:  p.RemindersSent,
			LastReminderAt: p.LastReminderAt,
		})
	}
	return status, nil
}

// generateFinalArtifact asks the artifact collaborator for the final signed
// document. Failures are logged; the signed status is already the durable
// fact of record.
func (s *ContractService) generateFinalArtifact(ctx context.Context, contract *domain.Contract) {
	if s.artifacts == nil {
		return
	}
	artifact, err := s.artifacts.RenderFinal(ctx, contract)
	if err != nil {
		s.log.Warn().Err(err).
			Str("contract_id", contract.ID).
			Msg("Final artifact generation failed (non-fatal)")
		return
	}
	s.log.Info().
		Str("contract_id", contract.ID).
		Int("artifact_bytes", len(artifact)).
		Msg("Final artifact generated")
}

func signingRecipients(c *domain.Contract) []string {
	out := make([]string, 0, len(c.Parties))
	for _, p := range c.Parties {
		if p.Role.Signing() {
			out = append(out, p.Email)
		}
	}
	return out
}
