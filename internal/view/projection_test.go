package view

import (
	"reflect"
	"testing"

	"taxmatch/internal/state"
	"taxmatch/pkg/domain"
)

func sample() []domain.ServiceRequest {
	return []domain.ServiceRequest{
		{ID: "r1", Status: domain.StatusOpen},
		{ID: "r2", Status: domain.StatusInProgress},
		{ID: "r3", Status: domain.StatusOpen},
		{ID: "r4", Status: domain.StatusCompleted},
		{ID: "r5", Status: domain.StatusInProgress},
	}
}

func ids(items []domain.ServiceRequest) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}

func TestProjectFiltersByStatusPreservingOrder(t *testing.T) {
	got := ids(Project(sample(), domain.StatusOpen))
	if !reflect.DeepEqual(got, []string{"r1", "r3"}) {
		t.Fatalf("open projection = %v, want [r1 r3]", got)
	}
}

func TestProjectionsPartitionTheSource(t *testing.T) {
	requests := sample()
	statuses := []domain.RequestStatus{domain.StatusOpen, domain.StatusInProgress, domain.StatusCompleted}

	seen := make(map[string]int)
	total := 0
	for _, status := range statuses {
		for _, r := range Project(requests, status) {
			seen[r.ID]++
			total++
		}
	}
	if total != len(requests) {
		t.Fatalf("projections cover %d items, want %d", total, len(requests))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("request %s appears in %d projections, want 1", id, count)
		}
	}
}

func TestProjectDoesNotMutateSource(t *testing.T) {
	requests := sample()
	before := ids(requests)
	Project(requests, domain.StatusCompleted)
	if got := ids(requests); !reflect.DeepEqual(got, before) {
		t.Fatalf("source order changed: %v", got)
	}
}

func TestProjectEmptyInput(t *testing.T) {
	if got := Project(nil, domain.StatusOpen); len(got) != 0 {
		t.Fatalf("expected empty projection, got %v", got)
	}
}

func TestStateOfDistinguishesLoadingErrorAndEmpty(t *testing.T) {
	cases := []struct {
		name string
		snap state.Snapshot[domain.ServiceRequest]
		n    int
		want DisplayState
	}{
		{"loading wins", state.Snapshot[domain.ServiceRequest]{Loading: true, Err: "x"}, 0, StateLoading},
		{"error", state.Snapshot[domain.ServiceRequest]{Err: "boom"}, 0, StateError},
		{"empty", state.Snapshot[domain.ServiceRequest]{}, 0, StateEmpty},
		{"ready", state.Snapshot[domain.ServiceRequest]{}, 3, StateReady},
	}
	for _, tc := range cases {
		if got := StateOf(tc.snap, tc.n); got != tc.want {
			t.Fatalf("%s: state = %d, want %d", tc.name, got, tc.want)
		}
	}
}
