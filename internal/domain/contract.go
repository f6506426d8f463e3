// Package domain holds the contract aggregate, its value objects and the
// lifecycle transition table. The service layer is the only writer of these
// types; everything else treats them as read-only.
package domain

import "time"

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusDraft           ContractStatus = "draft"
	StatusReview          ContractStatus = "review"
	StatusPendingApproval ContractStatus = "pending_approval"
	StatusApproved        ContractStatus = "approved"
	StatusSent            ContractStatus = "sent"
	StatusViewed          ContractStatus = "viewed"
	StatusPartiallySigned ContractStatus = "partially_signed"
	StatusSigned          ContractStatus = "signed"
	StatusActive          ContractStatus = "active"
	StatusExpired         ContractStatus = "expired"
	StatusCancelled       ContractStatus = "cancelled"
	StatusTerminated      ContractStatus = "terminated"
)

// Valid reports whether s is a known status.
func (s ContractStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusPendingApproval, StatusApproved,
		StatusSent, StatusViewed, StatusPartiallySigned, StatusSigned,
		StatusActive, StatusExpired, StatusCancelled, StatusTerminated:
		return true
	}
	return false
}

// PartyType classifies the kind of participant.
type PartyType string

const (
	PartyTypeBrand      PartyType = "brand"
	PartyTypeInfluencer PartyType = "influencer"
	PartyTypeAgency     PartyType = "agency"
	PartyTypeVendor     PartyType = "vendor"
	PartyTypeOther      PartyType = "other"
)

func (t PartyType) Valid() bool {
	switch t {
	case PartyTypeBrand, PartyTypeInfluencer, PartyTypeAgency, PartyTypeVendor, PartyTypeOther:
		return true
	}
	return false
}

// PartyRole determines a party's part in the signing protocol. Only client
// and contractor signatures count toward completion.
type PartyRole string

const (
	RoleClient     PartyRole = "client"
	RoleContractor PartyRole = "contractor"
	RoleWitness    PartyRole = "witness"
	RoleApprover   PartyRole = "approver"
)

func (r PartyRole) Valid() bool {
	switch r {
	case RoleClient, RoleContractor, RoleWitness, RoleApprover:
		return true
	}
	return false
}

// Signing reports whether parties with this role must sign before a contract
// is complete.
func (r PartyRole) Signing() bool {
	return r == RoleClient || r == RoleContractor
}

// SignatureType is the declared kind of a recorded signature.
type SignatureType string

const (
	SignatureFreehand      SignatureType = "freehand"
	SignatureTyped         SignatureType = "typed"
	SignatureUploaded      SignatureType = "uploaded"
	SignatureCryptographic SignatureType = "cryptographic"
)

func (t SignatureType) Valid() bool {
	switch t {
	case SignatureFreehand, SignatureTyped, SignatureUploaded, SignatureCryptographic:
		return true
	}
	return false
}

// Party is a named participant in a contract. Email is the signing lookup key
// within one contract. signedAt/viewedAt/remindersSent/lastReminderAt are
// written only by the lifecycle engine.
type Party struct {
	ID             string     `json:"id"`
	Type           PartyType  `json:"type"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           PartyRole  `json:"role"`
	SignedAt       *time.Time `json:"signedAt,omitempty"`
	ViewedAt       *time.Time `json:"viewedAt,omitempty"`
	RemindersSent  int        `json:"remindersSent"`
	LastReminderAt *time.Time `json:"lastReminderAt,omitempty"`
}

// Geolocation is optional signer location evidence.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Signature is one party's recorded assent. Created once, never updated.
// Verified is set by the signature verifier at creation time and never
// recomputed.
type Signature struct {
	ID          string        `json:"id"`
	PartyID     string        `json:"partyId"`
	Type        SignatureType `json:"type"`
	Data        string        `json:"data"`
	Timestamp   time.Time     `json:"timestamp"`
	IPAddress   string        `json:"ipAddress,omitempty"`
	UserAgent   string        `json:"userAgent,omitempty"`
	Geolocation *Geolocation  `json:"geolocation,omitempty"`
	Verified    bool          `json:"verified"`
}

// Contract is the agreement aggregate. Version increments by exactly one on
// every mutation; stale-version writes fail at the store.
type Contract struct {
	ID           string            `json:"id"`
	Version      int               `json:"version"`
	ParentID     *string           `json:"parentId,omitempty"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	RenderedHTML string            `json:"renderedHtml,omitempty"`
	TemplateID   *string           `json:"templateId,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Parties      []*Party          `json:"parties"`
	Signatures   []*Signature      `json:"signatures"`
	Status       ContractStatus    `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RenewalDate *time.Time `json:"renewalDate,omitempty"`
}

// PartyByEmail returns the party with the given email, or nil.
func (c *Contract) PartyByEmail(email string) *Party {
	for _, p := range c.Parties {
		if p.Email == email {
			return p
		}
	}
	return nil
}

// PartyByID returns the party with the given id, or nil.
func (c *Contract) PartyByID(id string) *Party {
	for _, p := range c.Parties {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// SignaturesForParty returns the signatures recorded for a party.
func (c *Contract) SignaturesForParty(partyID string) []*Signature {
	var sigs []*Signature
	for _, s := range c.Signatures {
		if s.PartyID == partyID {
			sigs = append(sigs, s)
		}
	}
	return sigs
}

// FullySigned reports whether every client and contractor party has at least
// one signature. Witness and approver parties never block completion.
func (c *Contract) FullySigned() bool {
	for _, p := range c.Parties {
		if !p.Role.Signing() {
			continue
		}
		if len(c.SignaturesForParty(p.ID)) == 0 {
			return false
		}
	}
	return true
}

// HasTag reports whether the contract carries the tag. Tags have set
// semantics; order is irrelevant.
func (c *Contract) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
