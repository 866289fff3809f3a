package lifecycle

import (
	"errors"
	"testing"

	"taxmatch/pkg/domain"
)

var (
	seeker   = domain.User{ID: "s1", Role: domain.RoleSeeker}
	provider = domain.User{ID: "p1", Role: domain.RoleProvider}
)

func TestOnlySeekersCreateRequests(t *testing.T) {
	var r Rules
	if err := r.CanCreate(seeker); err != nil {
		t.Fatalf("seeker should create: %v", err)
	}
	if err := r.CanCreate(provider); !errors.Is(err, ErrNotSeeker) {
		t.Fatalf("expected ErrNotSeeker, got %v", err)
	}
}

func TestOnlyProvidersProposeOnOpenRequests(t *testing.T) {
	var r Rules
	open := domain.ServiceRequest{ID: "r1", Status: domain.StatusOpen}
	if err := r.CanPropose(provider, open, nil); err != nil {
		t.Fatalf("provider should propose on open request: %v", err)
	}
	if err := r.CanPropose(seeker, open, nil); !errors.Is(err, ErrNotProvider) {
		t.Fatalf("expected ErrNotProvider, got %v", err)
	}
	inProgress := domain.ServiceRequest{ID: "r1", Status: domain.StatusInProgress, ProviderID: "p2"}
	if err := r.CanPropose(provider, inProgress, nil); !errors.Is(err, ErrRequestNotOpen) {
		t.Fatalf("expected ErrRequestNotOpen, got %v", err)
	}
}

func TestSingleProposalPolicy(t *testing.T) {
	open := domain.ServiceRequest{ID: "r1", Status: domain.StatusOpen}
	existing := []domain.Proposal{{ID: "pr1", RequestID: "r1", ProviderID: "p1"}}

	relaxed := Rules{}
	if err := relaxed.CanPropose(provider, open, existing); err != nil {
		t.Fatalf("duplicate should pass with policy off: %v", err)
	}

	strict := Rules{SingleProposalPerProvider: true}
	if err := strict.CanPropose(provider, open, existing); !errors.Is(err, ErrDuplicateProposal) {
		t.Fatalf("expected ErrDuplicateProposal, got %v", err)
	}
	other := []domain.Proposal{{ID: "pr2", RequestID: "r1", ProviderID: "p9"}}
	if err := strict.CanPropose(provider, open, other); err != nil {
		t.Fatalf("other provider's proposal should not block: %v", err)
	}
}

func TestValidateTransitionIsOneDirectional(t *testing.T) {
	valid := [][2]domain.RequestStatus{
		{domain.StatusOpen, domain.StatusInProgress},
		{domain.StatusInProgress, domain.StatusCompleted},
	}
	for _, pair := range valid {
		if err := ValidateTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("%s -> %s should be valid: %v", pair[0], pair[1], err)
		}
	}
	invalid := [][2]domain.RequestStatus{
		{domain.StatusOpen, domain.StatusCompleted},
		{domain.StatusInProgress, domain.StatusOpen},
		{domain.StatusCompleted, domain.StatusInProgress},
		{domain.StatusCompleted, domain.StatusOpen},
		{domain.StatusOpen, domain.StatusOpen},
	}
	for _, pair := range invalid {
		if err := ValidateTransition(pair[0], pair[1]); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s should be invalid, got %v", pair[0], pair[1], err)
		}
	}
}

func TestAcceptBindsProviderAndAdvancesStatus(t *testing.T) {
	req := domain.ServiceRequest{ID: "r1", Status: domain.StatusOpen}
	prop := domain.Proposal{ID: "pr1", RequestID: "r1", ProviderID: "p1", Status: domain.ProposalPending}

	gotReq, gotProp, err := Accept(req, prop)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if gotReq.Status != domain.StatusInProgress || gotReq.ProviderID != "p1" {
		t.Fatalf("request = %+v, want in_progress bound to p1", gotReq)
	}
	if gotProp.Status != domain.ProposalAccepted {
		t.Fatalf("proposal status = %s, want accepted", gotProp.Status)
	}
	if err := CheckProviderBinding(gotReq); err != nil {
		t.Fatalf("binding invariant: %v", err)
	}
}

func TestAcceptRejectsMismatchedOrNonPending(t *testing.T) {
	req := domain.ServiceRequest{ID: "r1", Status: domain.StatusOpen}
	if _, _, err := Accept(req, domain.Proposal{ID: "pr1", RequestID: "other", Status: domain.ProposalPending}); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if _, _, err := Accept(req, domain.Proposal{ID: "pr1", RequestID: "r1", Status: domain.ProposalRejected}); err == nil {
		t.Fatalf("expected non-pending error")
	}
	done := domain.ServiceRequest{ID: "r1", Status: domain.StatusCompleted, ProviderID: "p0"}
	if _, _, err := Accept(done, domain.Proposal{ID: "pr1", RequestID: "r1", Status: domain.ProposalPending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCheckProviderBinding(t *testing.T) {
	good := []domain.ServiceRequest{
		{ID: "a", Status: domain.StatusOpen},
		{ID: "b", Status: domain.StatusInProgress, ProviderID: "p1"},
		{ID: "c", Status: domain.StatusCompleted, ProviderID: "p1"},
	}
	for _, r := range good {
		if err := CheckProviderBinding(r); err != nil {
			t.Fatalf("request %s: %v", r.ID, err)
		}
	}
	bad := []domain.ServiceRequest{
		{ID: "d", Status: domain.StatusOpen, ProviderID: "p1"},
		{ID: "e", Status: domain.StatusInProgress},
	}
	for _, r := range bad {
		if err := CheckProviderBinding(r); err == nil {
			t.Fatalf("request %s: expected binding violation", r.ID)
		}
	}
}
