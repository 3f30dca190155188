package ports_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/ports"
)

// MockStore is a minimal in-memory SessionStore used to exercise the contract itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]domain.Session)}
}

func (m *MockStore) Save(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = *s.Clone()
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

// MockTokens is a minimal TokenStore.
type MockTokens struct {
	mu   sync.Mutex
	data map[string]time.Time
}

func (m *MockTokens) Put(ctx context.Context, token string, expiresAt, now time.Time) error {
	if !now.Before(expiresAt) {
		return domain.ErrTokenInvalid
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]time.Time)
	}
	m.data[token] = expiresAt
	return nil
}

func (m *MockTokens) Take(ctx context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.data[token]
	delete(m.data, token)
	return ok && now.Before(exp), nil
}

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewMockStore())
}

func TestTokenStore_Contract(t *testing.T) {
	ports.RunTokenStoreContract(t, &MockTokens{})
}
