package certificate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	certs map[string]Certificate
}

// NewMemoryStore creates an in-memory certificate store for tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{certs: make(map[string]Certificate)}
}

func (s *memoryStore) Save(_ context.Context, cert Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[cert.ID]; exists {
		return fmt.Errorf("certificate %s exists", cert.ID)
	}
	s.certs[cert.ID] = cert
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return cert, nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string) ([]Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Certificate
	for _, cert := range s.certs {
		if cert.UserID == userID {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out, nil
}
