// Package view derives role- and status-filtered projections from store
// snapshots. Everything here is pure: recomputed from current inputs on
// every call, never cached.
package view

import (
	"taxmatch/internal/state"
	"taxmatch/pkg/domain"
)

// DisplayState is the mutually exclusive rendering state of a list view.
type DisplayState int

const (
	StateLoading DisplayState = iota
	StateError
	StateEmpty
	StateReady
)

// Project returns the requests whose status equals filter, preserving the
// source order. It never mutates its input.
func Project(requests []domain.ServiceRequest, filter domain.RequestStatus) []domain.ServiceRequest {
	out := make([]domain.ServiceRequest, 0)
	for _, r := range requests {
		if r.Status == filter {
			out = append(out, r)
		}
	}
	return out
}

// StateOf collapses a snapshot plus its projection into the single display
// state a view renders: loading wins, then error, then empty, then ready.
func StateOf[T any](snap state.Snapshot[T], projected int) DisplayState {
	switch {
	case snap.Loading:
		return StateLoading
	case snap.Err != "":
		return StateError
	case projected == 0:
		return StateEmpty
	default:
		return StateReady
	}
}
