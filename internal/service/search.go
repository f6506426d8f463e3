package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/covenant-ai/be-contracts/internal/domain"
	"github.com/covenant-ai/be-contracts/internal/errors"
)

// DateField selects which temporal marker a date-range filter applies to.
type DateField string

const (
	DateFieldCreated DateField = "created"
	DateFieldSent    DateField = "sent"
	DateFieldSigned  DateField = "signed"
	DateFieldExpires DateField = "expires"
)

// SearchFilters narrows a contract search. Every filter is optional; an
// empty filter matches all contracts.
type SearchFilters struct {
	Statuses   []domain.ContractStatus `json:"statuses,omitempty"`
	PartyEmail string                  `json:"partyEmail,omitempty"`
	PartyType  domain.PartyType        `json:"partyType,omitempty"`
	PartyName  string                  `json:"partyName,omitempty"`
	DateField  DateField               `json:"dateField,omitempty"`
	DateFrom   *time.Time              `json:"dateFrom,omitempty"`
	DateTo     *time.Time              `json:"dateTo,omitempty"`
	TemplateID *string                 `json:"templateId,omitempty"`
	Tags       []string                `json:"tags,omitempty"`
	Text       string                  `json:"text,omitempty"`

	SortBy   string `json:"sortBy,omitempty"` // createdAt | updatedAt | title | status | expiresAt
	SortDesc bool   `json:"sortDesc,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"` // 0 = no limit
}

// SearchResult is one page of matches plus the unpaginated total.
type SearchResult struct {
	Contracts []*domain.Contract `json:"contracts"`
	Total     int                `json:"total"`
}

// SearchContracts filters, sorts and paginates the contract set in memory.
func (s *ContractService) SearchContracts(ctx context.Context, filters SearchFilters) (*SearchResult, error) {
	if filters.DateField != "" {
		switch filters.DateField {
		case DateFieldCreated, DateFieldSent, DateFieldSigned, DateFieldExpires:
		default:
			return nil, errors.InvalidInput("dateField", "unknown date field "+string(filters.DateField))
		}
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.Contract, 0, len(all))
	for _, c := range all {
		if matches(c, filters) {
			matched = append(matched, c)
		}
	}

	sortContracts(matched, filters.SortBy, filters.SortDesc)
	total := len(matched)

	offset := filters.Offset
	if offset > total {
		offset = total
	}
	end := total
	if filters.Limit > 0 && offset+filters.Limit < end {
		end = offset + filters.Limit
	}

	return &SearchResult{Contracts: matched[offset:end], Total: total}, nil
}

func matches(c *domain.Contract, f SearchFilters) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	if f.PartyEmail != "" && c.PartyByEmail(f.PartyEmail) == nil {
		return false
	}
	if f.PartyType != "" && !hasPartyType(c, f.PartyType) {
		return false
	}
	if f.PartyName != "" && !hasPartyName(c, f.PartyName) {
		return false
	}
	if f.TemplateID != nil {
		if c.TemplateID == nil || *c.TemplateID != *f.TemplateID {
			return false
		}
	}
	if len(f.Tags) > 0 && !hasAnyTag(c, f.Tags) {
		return false
	}
	if f.Text != "" && !matchesText(c, f.Text) {
		return false
	}
	if f.DateFrom != nil || f.DateTo != nil {
		ts := dateFieldValue(c, f.DateField)
		if ts == nil {
			return false
		}
		if f.DateFrom != nil && ts.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && ts.After(*f.DateTo) {
			return false
		}
	}
	return true
}

func containsStatus(set []domain.ContractStatus, s domain.ContractStatus) bool {
	for _, st := range set {
		if st == s {
			return true
		}
	}
	return false
}

func hasPartyType(c *domain.Contract, t domain.PartyType) bool {
	for _, p := range c.Parties {
		if p.Type == t {
			return true
		}
	}
	return false
}

func hasPartyName(c *domain.Contract, name string) bool {
	needle := strings.ToLower(name)
	for _, p := range c.Parties {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return true
		}
	}
	return false
}

// hasAnyTag reports whether the contract's tag set intersects the filter set.
func hasAnyTag(c *domain.Contract, tags []string) bool {
	for _, t := range tags {
		if c.HasTag(t) {
			return true
		}
	}
	return false
}

func matchesText(c *domain.Contract, text string) bool {
	needle := strings.ToLower(text)
	return strings.Contains(strings.ToLower(c.Title), needle) ||
		strings.Contains(strings.ToLower(c.Content), needle)
}

// dateFieldValue resolves the temporal marker for a date filter. An unset
// field defaults to the creation time.
func dateFieldValue(c *domain.Contract, field DateField) *time.Time {
	switch field {
	case DateFieldSent:
		return c.SentAt
	case DateFieldSigned:
		return c.CompletedAt
	case DateFieldExpires:
		return c.ExpiresAt
	default:
		t := c.CreatedAt
		return &t
	}
}

// sortContracts sorts stably by the requested field, defaulting to creation
// time ascending.
func sortContracts(contracts []*domain.Contract, sortBy string, desc bool) {
	less := func(a, b *domain.Contract) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch sortBy {
	case "updatedAt":
		less = func(a, b *domain.Contract) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "title":
		less = func(a, b *domain.Contract) bool { return a.Title < b.Title }
	case "status":
		less = func(a, b *domain.Contract) bool { return a.Status < b.Status }
	case "expiresAt":
		less = func(a, b *domain.Contract) bool {
			switch {
			case a.ExpiresAt == nil:
				return false
			case b.ExpiresAt == nil:
				return true
			default:
				return a.ExpiresAt.Before(*b.ExpiresAt)
			}
		}
	}

	sort.SliceStable(contracts, func(i, j int) bool {
		if desc {
			return less(contracts[j], contracts[i])
		}
		return less(contracts[i], contracts[j])
	})
}
