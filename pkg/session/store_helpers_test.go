package session_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
// It can also simulate corrupt records and an unreachable backend.
type SlowStore struct {
	delay   time.Duration
	mu      sync.Mutex
	data    map[string]*domain.Session
	corrupt map[string]bool
	failing bool
}

func NewSlowStore(delay time.Duration) *SlowStore {
	return &SlowStore{
		delay:   delay,
		data:    make(map[string]*domain.Session),
		corrupt: make(map[string]bool),
	}
}

func (s *SlowStore) Corrupt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[id] = true
}

func (s *SlowStore) Fail(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = on
}

func (s *SlowStore) Save(ctx context.Context, session *domain.Session) error {
	time.Sleep(s.delay) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: simulated outage", domain.ErrStorageUnavailable)
	}
	delete(s.corrupt, session.ID)
	s.data[session.ID] = session.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(s.delay) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, fmt.Errorf("%w: simulated outage", domain.ErrStorageUnavailable)
	}
	if s.corrupt[id] {
		return nil, fmt.Errorf("%w: %s", domain.ErrCorruptRecord, id)
	}
	if session, ok := s.data[id]; ok {
		return session.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("%w: simulated outage", domain.ErrStorageUnavailable)
	}
	delete(s.data, id)
	delete(s.corrupt, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, fmt.Errorf("%w: simulated outage", domain.ErrStorageUnavailable)
	}
	ids := make([]string, 0, len(s.data)+len(s.corrupt))
	for id := range s.data {
		ids = append(ids, id)
	}
	for id := range s.corrupt {
		if _, ok := s.data[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
