package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// MemoryStore is an in-memory Store for tests and zero-configuration use.
// Records are deep-copied on the way in and out so callers cannot mutate
// stored state by aliasing.
type MemoryStore struct {
	mu       sync.RWMutex
	streaks  map[string]model.StreakRecord
	pending  map[string]model.PendingPayment
	resolver map[string]model.ResolverEntry
	failures map[string]map[string]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streaks:  make(map[string]model.StreakRecord),
		pending:  make(map[string]model.PendingPayment),
		resolver: make(map[string]model.ResolverEntry),
		failures: make(map[string]map[string]time.Time),
	}
}

// GetStreak loads the streak record for an identity.
func (s *MemoryStore) GetStreak(identity string) (*model.StreakRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.streaks[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// PutStreak replaces the streak record for its identity.
func (s *MemoryStore) PutStreak(rec *model.StreakRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[rec.Identity] = *rec
	return nil
}

// GetPending loads the in-flight payment for an identity.
func (s *MemoryStore) GetPending(identity string) (*model.PendingPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	cp.Attempts = append([]model.PaymentAttempt(nil), p.Attempts...)
	return &cp, nil
}

// PutPending replaces the pending payment for its identity.
func (s *MemoryStore) PutPending(p *model.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Attempts = append([]model.PaymentAttempt(nil), p.Attempts...)
	s.pending[p.Identity] = cp
	return nil
}

// DeletePending removes the pending payment for an identity.
func (s *MemoryStore) DeletePending(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, identity)
	return nil
}

// GetResolverEntry loads the cached destination list for an identity.
func (s *MemoryStore) GetResolverEntry(identity string) (*model.ResolverEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.resolver[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := e
	cp.Destinations = append([]string(nil), e.Destinations...)
	return &cp, nil
}

// PutResolverEntry replaces the cache entry for its identity.
func (s *MemoryStore) PutResolverEntry(e *model.ResolverEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.Destinations = append([]string(nil), e.Destinations...)
	s.resolver[e.Identity] = cp
	return nil
}

// DeleteResolverEntry removes the cache entry for an identity.
func (s *MemoryStore) DeleteResolverEntry(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resolver, identity)
	return nil
}

// FailedDestinations lists destinations recorded as failed for an identity.
func (s *MemoryStore) FailedDestinations(identity string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.failures[identity]
	out := make([]string, 0, len(set))
	for dest := range set {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out, nil
}

// MarkFailed records a destination as having failed payment for an identity.
func (s *MemoryStore) MarkFailed(identity, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[identity] == nil {
		s.failures[identity] = make(map[string]time.Time)
	}
	s.failures[identity][destination] = time.Now().UTC()
	return nil
}

// ClearFailed drops all failure marks for an identity.
func (s *MemoryStore) ClearFailed(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, identity)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
