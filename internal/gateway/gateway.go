package gateway

import (
	"context"
	"errors"
	"time"
)

// Collection names exposed by the remote data platform.
const (
	CollectionUsers     = "users"
	CollectionRequests  = "service_requests"
	CollectionMessages  = "messages"
	CollectionProposals = "proposals"
)

// Record is a raw row as returned by the data platform. Field names are the
// platform's column names; joined rows appear as nested records.
type Record map[string]any

// Filter matches rows whose column equals the given value.
type Filter struct {
	Column string
	Value  any
}

// Join embeds a single field from the users row referenced by Column,
// keyed under Alias in the result record.
type Join struct {
	Alias  string
	Column string
	Field  string
}

// Query describes a list read against one collection.
type Query struct {
	Filters    []Filter
	Joins      []Join
	OrderBy    string
	Descending bool
}

// Session is the identity handed out by the platform's auth endpoints.
type Session struct {
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Gateway is the remote data platform: collection-scoped reads and writes,
// plus the auth operations the client delegates. Implementations must return
// ErrNotFound (possibly wrapped) from QueryOne when no row matches.
type Gateway interface {
	Query(ctx context.Context, collection string, q Query) ([]Record, error)
	QueryOne(ctx context.Context, collection, id string, joins ...Join) (Record, error)
	Insert(ctx context.Context, collection string, rec Record) (Record, error)
	Update(ctx context.Context, collection, id string, changes Record) (Record, error)

	SignUp(ctx context.Context, email, password string, profile Record) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
}

// ErrNotFound indicates a QueryOne for an id with no matching row.
var ErrNotFound = errors.New("record not found")

// APIError is an error response from the remote platform.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// MappingError reports a gateway record whose shape does not match the
// declared entity mapping.
type MappingError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *MappingError) Error() string {
	return "map " + e.Collection + ": " + e.Field + ": " + e.Reason
}
