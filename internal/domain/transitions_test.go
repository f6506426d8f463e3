package domain

import "testing"

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to ContractStatus }{
		{StatusDraft, StatusSent},
		{StatusDraft, StatusReview},
		{StatusReview, StatusDraft},
		{StatusPendingApproval, StatusApproved},
		{StatusApproved, StatusSent},
		{StatusSent, StatusViewed},
		{StatusSent, StatusPartiallySigned},
		{StatusViewed, StatusSigned},
		{StatusPartiallySigned, StatusSigned},
		{StatusSigned, StatusActive},
		{StatusActive, StatusExpired},
		{StatusExpired, StatusTerminated},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be legal", tc.from, tc.to)
		}
	}

	refused := []struct{ from, to ContractStatus }{
		{StatusDraft, StatusSigned},
		{StatusSent, StatusDraft},
		{StatusSigned, StatusCancelled},
		{StatusSigned, StatusDraft},
		{StatusExpired, StatusActive},
		{StatusCancelled, StatusDraft},
		{StatusTerminated, StatusActive},
	}
	for _, tc := range refused {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be refused", tc.from, tc.to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, terminal := range []ContractStatus{StatusCancelled, StatusTerminated} {
		if got := AllowedTransitions(terminal); len(got) != 0 {
			t.Fatalf("%s must be terminal, allows %v", terminal, got)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StatusDraft, StatusSent); err != nil {
		t.Fatalf("legal transition refused: %v", err)
	}
	if err := ValidateTransition(StatusDraft, StatusActive); err == nil {
		t.Fatalf("illegal transition accepted")
	}
	if err := ValidateTransition(StatusDraft, ContractStatus("limbo")); err == nil {
		t.Fatalf("unknown target status accepted")
	}
}

func TestSignable(t *testing.T) {
	for _, s := range []ContractStatus{StatusSent, StatusViewed, StatusPartiallySigned} {
		if !Signable(s) {
			t.Fatalf("%s should accept signatures", s)
		}
	}
	for _, s := range []ContractStatus{StatusDraft, StatusSigned, StatusExpired, StatusCancelled} {
		if Signable(s) {
			t.Fatalf("%s should not accept signatures", s)
		}
	}
}

func TestExpirySweepSourcesExcludeExpired(t *testing.T) {
	for _, s := range ExpirySweepSources {
		if s == StatusExpired {
			t.Fatalf("expired must not be a sweep source")
		}
		if !Signable(s) {
			t.Fatalf("sweep source %s should be a signable state", s)
		}
		if !CanTransition(s, StatusExpired) {
			t.Fatalf("sweep source %s must be able to expire", s)
		}
	}
}

func TestFullySigned(t *testing.T) {
	c := &Contract{
		Parties: []*Party{
			{ID: "p1", Role: RoleClient, Email: "a@x.example"},
			{ID: "p2", Role: RoleContractor, Email: "b@x.example"},
			{ID: "p3", Role: RoleWitness, Email: "w@x.example"},
		},
	}
	if c.FullySigned() {
		t.Fatalf("unsigned contract reported fully signed")
	}

	c.Signatures = append(c.Signatures, &Signature{ID: "s1", PartyID: "p1"})
	if c.FullySigned() {
		t.Fatalf("one signing party missing, still reported fully signed")
	}

	// A witness signature never substitutes for a signing party's.
	c.Signatures = append(c.Signatures, &Signature{ID: "s2", PartyID: "p3"})
	if c.FullySigned() {
		t.Fatalf("witness signature counted toward completion")
	}

	c.Signatures = append(c.Signatures, &Signature{ID: "s3", PartyID: "p2"})
	if !c.FullySigned() {
		t.Fatalf("all signing parties signed, not reported fully signed")
	}
}
