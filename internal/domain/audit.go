package domain

import "time"

// AuditAction labels the state-changing operation an audit entry documents.
type AuditAction string

const (
	AuditCreated      AuditAction = "created"
	AuditUpdated      AuditAction = "updated"
	AuditSent         AuditAction = "sent"
	AuditViewed       AuditAction = "viewed"
	AuditSigned       AuditAction = "signed"
	AuditDownloaded   AuditAction = "downloaded"
	AuditReminderSent AuditAction = "reminder_sent"
	AuditExpired      AuditAction = "expired"
	AuditRenewed      AuditAction = "renewed"
	AuditTerminated   AuditAction = "terminated"
	AuditDeleted      AuditAction = "deleted"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditCreated, AuditUpdated, AuditSent, AuditViewed, AuditSigned,
		AuditDownloaded, AuditReminderSent, AuditExpired, AuditRenewed,
		AuditTerminated, AuditDeleted:
		return true
	}
	return false
}

// AuditEntry is one immutable record of a state-changing action. Entries are
// appended in the same logical operation as the contract mutation they
// document and never updated or deleted.
type AuditEntry struct {
	ID          string         `json:"id"`
	ContractID  string         `json:"contractId"`
	Action      AuditAction    `json:"action"`
	PerformedBy string         `json:"performedBy"`
	PerformedAt time.Time      `json:"performedAt"`
	Details     map[string]any `json:"details,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
}
