package session

import (
	"context"
	"sync"

	"taxmatch/internal/gateway"
)

// MemoryStore keeps the session in process. Suitable for tests and for
// runs where re-authenticating on restart is acceptable.
type MemoryStore struct {
	mu   sync.Mutex
	sess gateway.Session
	set  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, sess gateway.Session) error {
	m.mu.Lock()
	m.sess = sess
	m.set = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (gateway.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set || expired(m.sess) {
		return gateway.Session{}, false, nil
	}
	return m.sess, true, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.sess = gateway.Session{}
	m.set = false
	m.mu.Unlock()
	return nil
}
