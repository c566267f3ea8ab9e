package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wms/shopsync/internal/infrastructure/shopify"
)

type budgetWindow struct {
	count   int64
	resetAt time.Time
}

// InMemoryCallBudgetStore is a fixed-window counter local to the process.
// It is the fallback when Redis is unavailable and does not coordinate
// between replicas.
type InMemoryCallBudgetStore struct {
	mu      sync.Mutex
	windows map[string]*budgetWindow
	now     func() time.Time
}

// NewInMemoryCallBudgetStore creates an empty store
func NewInMemoryCallBudgetStore() *InMemoryCallBudgetStore {
	return &InMemoryCallBudgetStore{
		windows: make(map[string]*budgetWindow),
		now:     time.Now,
	}
}

// Increment counts one call against key
func (s *InMemoryCallBudgetStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &budgetWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// Ensure InMemoryCallBudgetStore implements CallBudgetStore
var _ shopify.CallBudgetStore = (*InMemoryCallBudgetStore)(nil)
