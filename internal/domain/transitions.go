package domain

import (
	"fmt"

	"github.com/covenant-ai/be-contracts/internal/errors"
)

// transitions is the exhaustive map of legal from→to status pairs. Cancelled
// and terminated are terminal; expired can only be terminated.
var transitions = map[ContractStatus][]ContractStatus{
	StatusDraft:           {StatusReview, StatusPendingApproval, StatusApproved, StatusSent, StatusCancelled},
	StatusReview:          {StatusDraft, StatusPendingApproval, StatusApproved, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusDraft, StatusCancelled},
	StatusApproved:        {StatusSent, StatusDraft, StatusCancelled},
	StatusSent:            {StatusViewed, StatusPartiallySigned, StatusExpired, StatusCancelled},
	StatusViewed:          {StatusPartiallySigned, StatusSigned, StatusExpired, StatusCancelled},
	StatusPartiallySigned: {StatusSigned, StatusExpired, StatusCancelled},
	StatusSigned:          {StatusActive, StatusTerminated},
	StatusActive:          {StatusExpired, StatusTerminated},
	StatusExpired:         {StatusTerminated},
	StatusCancelled:       {},
	StatusTerminated:      {},
}

// CanTransition reports whether from→to appears in the transition table.
func CanTransition(from, to ContractStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal target statuses from a given status.
func AllowedTransitions(from ContractStatus) []ContractStatus {
	out := make([]ContractStatus, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// ValidateTransition returns a validation error naming the attempted pair
// when from→to is not legal.
func ValidateTransition(from, to ContractStatus) error {
	if !to.Valid() {
		return errors.InvalidInput("status", fmt.Sprintf("unknown status %q", to))
	}
	if !CanTransition(from, to) {
		return errors.Newf(errors.ErrCodeValidation,
			"illegal status transition %s -> %s", from, to)
	}
	return nil
}

// SignableStatuses are the states in which a signature may be recorded.
var SignableStatuses = []ContractStatus{StatusSent, StatusViewed, StatusPartiallySigned}

// Signable reports whether a contract in status s accepts signatures.
func Signable(s ContractStatus) bool {
	for _, st := range SignableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ExpirySweepSources are the states the expiry sweep examines. Expired is
// deliberately absent, which makes re-sweeping a no-op.
var ExpirySweepSources = []ContractStatus{StatusSent, StatusViewed, StatusPartiallySigned}

// Mutable reports whether full-content fields (parties, content) may still
// change. Once status leaves draft they are immutable.
func Mutable(s ContractStatus) bool {
	return s == StatusDraft
}
