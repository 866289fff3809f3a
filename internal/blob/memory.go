package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps uploaded objects in process, for tests and offline runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailWhen makes Upload fail for matching paths, to exercise
	// partial-failure behavior in tests.
	FailWhen func(path string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailWhen != nil {
		if err := m.FailWhen(path); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[path] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PublicURL(path string) string {
	return fmt.Sprintf("memory://documents/%s", path)
}

// Object returns a stored object's bytes.
func (m *MemoryStore) Object(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	return data, ok
}
