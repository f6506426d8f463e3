package domain

// Clone returns a deep copy of the contract. The memory store hands out
// clones so callers can never mutate stored state without going through a
// versioned save.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	out.ParentID = clonePtr(c.ParentID)
	out.TemplateID = clonePtr(c.TemplateID)
	out.Variables = cloneMap(c.Variables)
	out.Metadata = cloneMap(c.Metadata)
	out.SentAt = clonePtr(c.SentAt)
	out.CompletedAt = clonePtr(c.CompletedAt)
	out.ExpiresAt = clonePtr(c.ExpiresAt)
	out.RenewalDate = clonePtr(c.RenewalDate)

	if c.Tags != nil {
		out.Tags = make([]string, len(c.Tags))
		copy(out.Tags, c.Tags)
	}

	out.Parties = make([]*Party, len(c.Parties))
	for i, p := range c.Parties {
		cp := *p
		cp.SignedAt = clonePtr(p.SignedAt)
		cp.ViewedAt = clonePtr(p.ViewedAt)
		cp.LastReminderAt = clonePtr(p.LastReminderAt)
		out.Parties[i] = &cp
	}

	out.Signatures = make([]*Signature, len(c.Signatures))
	for i, s := range c.Signatures {
		cs := *s
		if s.Geolocation != nil {
			g := *s.Geolocation
			cs.Geolocation = &g
		}
		out.Signatures[i] = &cs
	}

	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
