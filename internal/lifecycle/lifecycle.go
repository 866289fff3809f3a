// Package lifecycle encodes which marketplace actions are valid for a
// request's current status and the acting user's role.
package lifecycle

import (
	"errors"
	"fmt"

	"taxmatch/pkg/domain"
)

var (
	// ErrNotSeeker rejects request creation by a non-seeker.
	ErrNotSeeker = errors.New("only seekers may create requests")
	// ErrNotProvider rejects proposal submission by a non-provider.
	ErrNotProvider = errors.New("only providers may submit proposals")
	// ErrRequestNotOpen rejects proposals against requests past the open stage.
	ErrRequestNotOpen = errors.New("request is not open for proposals")
	// ErrDuplicateProposal rejects a second proposal from the same provider
	// when the single-proposal policy is enabled.
	ErrDuplicateProposal = errors.New("provider already proposed on this request")
	// ErrInvalidTransition rejects any status change outside the one-way
	// open -> in_progress -> completed progression.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Rules holds the configurable policy knobs.
type Rules struct {
	// SingleProposalPerProvider limits each provider to one proposal per
	// request. Off by default; the platform does not enforce it either.
	SingleProposalPerProvider bool
}

// CanCreate reports whether user may post a new request.
func (Rules) CanCreate(user domain.User) error {
	if user.Role != domain.RoleSeeker {
		return ErrNotSeeker
	}
	return nil
}

// CanPropose reports whether provider may submit a proposal against req.
// existing holds the provider's prior proposals for the request; it is only
// consulted when the single-proposal policy is on.
func (r Rules) CanPropose(provider domain.User, req domain.ServiceRequest, existing []domain.Proposal) error {
	if provider.Role != domain.RoleProvider {
		return ErrNotProvider
	}
	if req.Status != domain.StatusOpen {
		return ErrRequestNotOpen
	}
	if r.SingleProposalPerProvider {
		for _, p := range existing {
			if p.ProviderID == provider.ID && p.RequestID == req.ID {
				return ErrDuplicateProposal
			}
		}
	}
	return nil
}

// ValidateTransition checks the one-directional status progression.
// Completed is terminal.
func ValidateTransition(from, to domain.RequestStatus) error {
	valid := (from == domain.StatusOpen && to == domain.StatusInProgress) ||
		(from == domain.StatusInProgress && to == domain.StatusCompleted)
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Accept computes the request and proposal mutations of accepting a
// proposal: the request moves to in_progress bound to the provider, the
// proposal is marked accepted. No controller operation triggers this yet;
// acceptance has no entry point in the current flows.
func Accept(req domain.ServiceRequest, p domain.Proposal) (domain.ServiceRequest, domain.Proposal, error) {
	if p.RequestID != req.ID {
		return req, p, fmt.Errorf("proposal %s does not target request %s", p.ID, req.ID)
	}
	if err := ValidateTransition(req.Status, domain.StatusInProgress); err != nil {
		return req, p, err
	}
	if p.Status != domain.ProposalPending {
		return req, p, fmt.Errorf("proposal %s is not pending", p.ID)
	}
	req.Status = domain.StatusInProgress
	req.ProviderID = p.ProviderID
	p.Status = domain.ProposalAccepted
	return req, p, nil
}

// CheckProviderBinding verifies the invariant that provider_id is set if
// and only if work has started.
func CheckProviderBinding(req domain.ServiceRequest) error {
	if req.BoundProvider() != (req.ProviderID != "") {
		return fmt.Errorf("request %s: provider binding inconsistent with status %s", req.ID, req.Status)
	}
	return nil
}
