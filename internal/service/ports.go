package service

import (
	"context"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// ContractStore is keyed persistence for contract aggregates. Save must fail
// with a conflict when the stored version does not precede the saved one.
type ContractStore interface {
	Save(ctx context.Context, c *domain.Contract) error
	Load(ctx context.Context, id string) (*domain.Contract, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Contract, error)
	ListByStatuses(ctx context.Context, statuses []domain.ContractStatus) ([]*domain.Contract, error)
}

// AuditLog is the append-only record of state-changing actions.
type AuditLog interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ByContract(ctx context.Context, contractID string) ([]*domain.AuditEntry, error)
	ByActor(ctx context.Context, actor string) ([]*domain.AuditEntry, error)
	ByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditEntry, error)
	ByDateRange(ctx context.Context, from, to time.Time) ([]*domain.AuditEntry, error)
}

// SignatureVerifier performs the per-kind accept/reject check on a signature
// payload. It never fails hard; an unverifiable signature reports false.
type SignatureVerifier interface {
	Verify(ctx context.Context, sigType domain.SignatureType, data string) bool
}

// TemplateRenderer produces contract text from a template reference and
// variables. Render failures surface as template errors, never defaults.
type TemplateRenderer interface {
	Render(ctx context.Context, templateID string, variables map[string]string) (string, error)
}

// Notification is one delivery request handed to the notification service.
type Notification struct {
	Type       domain.EventType
	ContractID string
	Recipient  string
	PartyName  string
	Subject    string
	Message    string
}

// NotificationSender delivers notifications. Calls are fire-and-forget from
// the engine's perspective: failures are logged, never propagated.
type NotificationSender interface {
	Notify(ctx context.Context, n Notification) error
}

// ArtifactGenerator renders the final signed document. Invoked once on the
// transition to signed.
type ArtifactGenerator interface {
	RenderFinal(ctx context.Context, c *domain.Contract) ([]byte, error)
}

// EventDispatcher receives the event batch of a committed operation.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []domain.Event)
}
