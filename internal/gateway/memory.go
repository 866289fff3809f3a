package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxmatch/pkg/auth"
)

// MemoryGateway is an in-process Gateway for tests and offline development.
// It mirrors the remote platform's observable behavior: generated row ids,
// server-side created_at, equality filters, ordering, and user joins.
type MemoryGateway struct {
	mu     sync.RWMutex
	rows   map[string]map[string]Record
	order  map[string][]string
	creds  map[string]memoryCred
	tokens map[string]string // access token -> user id
	clock  func() time.Time
}

type memoryCred struct {
	userID       string
	passwordHash string
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		rows:   make(map[string]map[string]Record),
		order:  make(map[string][]string),
		creds:  make(map[string]memoryCred),
		tokens: make(map[string]string),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source, for deterministic tests.
func (m *MemoryGateway) SetClock(clock func() time.Time) {
	m.mu.Lock()
	m.clock = clock
	m.mu.Unlock()
}

func (m *MemoryGateway) Query(_ context.Context, collection string, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0)
	for _, id := range m.order[collection] {
		rec := m.rows[collection][id]
		if !matches(rec, q.Filters) {
			continue
		}
		out = append(out, m.joined(cloneRecord(rec), q.Joins))
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := compareValues(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Descending {
				return !less && !equalValues(out[i][q.OrderBy], out[j][q.OrderBy])
			}
			return less
		})
	}
	return out, nil
}

func (m *MemoryGateway) QueryOne(_ context.Context, collection, id string, joins ...Join) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	return m.joined(cloneRecord(rec), joins), nil
}

func (m *MemoryGateway) Insert(_ context.Context, collection string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneRecord(rec)
	id, ok := stored["id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = m.clock()
	}
	if m.rows[collection] == nil {
		m.rows[collection] = make(map[string]Record)
	}
	if _, exists := m.rows[collection][id]; exists {
		return nil, &APIError{Status: http.StatusConflict, Message: "duplicate id"}
	}
	m.rows[collection][id] = stored
	m.order[collection] = append(m.order[collection], id)
	return cloneRecord(stored), nil
}

func (m *MemoryGateway) Update(_ context.Context, collection, id string, changes Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	for k, v := range changes {
		rec[k] = v
	}
	return cloneRecord(rec), nil
}

func (m *MemoryGateway) SignUp(ctx context.Context, email, password string, profile Record) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Session{}, &APIError{Status: http.StatusBadRequest, Message: "email required"}
	}
	m.mu.RLock()
	_, exists := m.creds[email]
	m.mu.RUnlock()
	if exists {
		return Session{}, &APIError{Status: http.StatusConflict, Message: "email already registered"}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, &APIError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	row := Record{"id": uuid.NewString(), "email": email}
	for k, v := range profile {
		row[k] = v
	}
	created, err := m.Insert(ctx, CollectionUsers, row)
	if err != nil {
		return Session{}, err
	}
	userID := created["id"].(string)
	m.mu.Lock()
	m.creds[email] = memoryCred{userID: userID, passwordHash: hash}
	token := uuid.NewString()
	m.tokens[token] = userID
	m.mu.Unlock()
	return Session{AccessToken: token, UserID: userID, ExpiresAt: m.clock().Add(time.Hour)}, nil
}

func (m *MemoryGateway) SignIn(_ context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[email]
	if !ok || !auth.CheckPassword(password, cred.passwordHash) {
		return Session{}, &APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	token := uuid.NewString()
	m.tokens[token] = cred.userID
	return Session{AccessToken: token, UserID: cred.userID, ExpiresAt: m.clock().Add(time.Hour)}, nil
}

func (m *MemoryGateway) joined(rec Record, joins []Join) Record {
	for _, j := range joins {
		fk, ok := rec[j.Column].(string)
		if !ok || fk == "" {
			continue
		}
		user, ok := m.rows[CollectionUsers][fk]
		if !ok {
			continue
		}
		rec[j.Alias] = map[string]any{j.Field: user[j.Field]}
	}
	return rec
}

func matches(rec Record, filters []Filter) bool {
	for _, f := range filters {
		if fmt.Sprint(rec[f.Column]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func compareValues(a, b any) bool {
	at, aok := parseTimeValue(a)
	bt, bok := parseTimeValue(b)
	if aok && bok {
		return at.Before(bt)
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func equalValues(a, b any) bool {
	at, aok := parseTimeValue(a)
	bt, bok := parseTimeValue(b)
	if aok && bok {
		return at.Equal(bt)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
