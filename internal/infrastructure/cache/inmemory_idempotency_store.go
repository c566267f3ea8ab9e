package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/wms/shopsync/internal/domain/shared"
)

const sweepEvery = 5 * time.Minute

// InMemoryIdempotencyStore keeps delivery IDs in a map local to the
// process. Expired IDs are swept during writes, at most once per
// sweepEvery.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiries  map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		expiries: make(map[string]time.Time),
		now:      time.Now,
	}
}

// MarkProcessed reports true when id was not recorded or had expired
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.After(s.nextSweep) {
		s.sweep(now)
	}
	if until, ok := s.expiries[id]; ok && now.Before(until) {
		return false, nil
	}
	s.expiries[id] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.expiries[id]
	return ok && s.now().Before(until), nil
}

// sweep drops expired IDs. Callers hold mu.
func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	maps.DeleteFunc(s.expiries, func(_ string, until time.Time) bool {
		return !now.Before(until)
	})
	s.nextSweep = now.Add(sweepEvery)
}

// Close forgets every ID
func (s *InMemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.expiries)
	return nil
}

// Size counts recorded IDs, including expired ones not yet swept
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiries)
}
