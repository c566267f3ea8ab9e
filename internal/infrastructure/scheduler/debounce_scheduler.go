package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncFunc runs one inventory sync. Nil productIDs means every mapped product.
type SyncFunc func(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) error

// DebounceConfig holds debounce scheduler configuration
type DebounceConfig struct {
	// Window is how long an integration must stay quiet before its sync fires
	Window time.Duration
	// RunTimeout bounds one sync run
	RunTimeout time.Duration
	// MaxConcurrent bounds parallel sync runs across integrations
	MaxConcurrent int
}

// DefaultDebounceConfig returns default debounce configuration
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Window:        5 * time.Second,
		RunTimeout:    5 * time.Minute,
		MaxConcurrent: 4,
	}
}

// pendingSync is the state of one integration's open debounce window
type pendingSync struct {
	timer    Timer
	products map[uuid.UUID]struct{}
	// all is set once any caller asked for a full sync
	all bool
	// generation identifies the armed timer; a fired timer whose generation
	// no longer matches was superseded
	generation uint64
}

func (p *pendingSync) add(productIDs []uuid.UUID) {
	if len(productIDs) == 0 {
		p.all = true
		return
	}
	for _, id := range productIDs {
		p.products[id] = struct{}{}
	}
}

func (p *pendingSync) productIDs() []uuid.UUID {
	if p.all {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(p.products))
	for id := range p.products {
		ids = append(ids, id)
	}
	return ids
}

// DebounceScheduler coalesces bursts of inventory changes into one sync per
// integration. Each Schedule call restarts the integration's window and
// widens its product set; the sync runs once the window elapses.
type DebounceScheduler struct {
	config DebounceConfig
	run    SyncFunc
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingSync
	stopped bool

	slots  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDebounceScheduler creates a debounce scheduler. A nil clock uses the wall clock.
func NewDebounceScheduler(config DebounceConfig, run SyncFunc, clock Clock, logger *zap.Logger) *DebounceScheduler {
	if config.Window <= 0 {
		config.Window = DefaultDebounceConfig().Window
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultDebounceConfig().MaxConcurrent
	}
	if clock == nil {
		clock = RealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DebounceScheduler{
		config:  config,
		run:     run,
		clock:   clock,
		logger:  logger,
		pending: make(map[uuid.UUID]*pendingSync),
		slots:   make(chan struct{}, config.MaxConcurrent),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule adds productIDs to the integration's pending set and restarts its
// window. Empty productIDs widens the pending run to every product.
func (s *DebounceScheduler) Schedule(integrationID uuid.UUID, productIDs []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	p, ok := s.pending[integrationID]
	if ok {
		p.timer.Stop()
	} else {
		p = &pendingSync{products: make(map[uuid.UUID]struct{})}
		s.pending[integrationID] = p
	}
	p.add(productIDs)
	p.generation++

	generation := p.generation
	p.timer = s.clock.AfterFunc(s.config.Window, func() {
		s.fire(integrationID, generation)
	})
}

// FireNow cancels any pending window for the integration and syncs the
// pending products together with productIDs immediately
func (s *DebounceScheduler) FireNow(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.pending[integrationID]
	if ok {
		p.timer.Stop()
		delete(s.pending, integrationID)
	} else {
		p = &pendingSync{products: make(map[uuid.UUID]struct{})}
	}
	s.mu.Unlock()

	p.add(productIDs)
	return s.execute(ctx, integrationID, p.productIDs())
}

// Pending returns the number of integrations with an open window
func (s *DebounceScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *DebounceScheduler) fire(integrationID uuid.UUID, generation uint64) {
	s.mu.Lock()
	p, ok := s.pending[integrationID]
	if !ok || p.generation != generation || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, integrationID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.execute(s.ctx, integrationID, p.productIDs()); err != nil {
		s.logger.Error("debounced inventory sync failed",
			zap.String("integration_id", integrationID.String()),
			zap.Error(err),
		)
	}
}

func (s *DebounceScheduler) execute(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) (err error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slots }()

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inventory sync panic: %v", r)
		}
	}()

	s.logger.Debug("running inventory sync",
		zap.String("integration_id", integrationID.String()),
		zap.Int("products", len(productIDs)),
	)
	return s.run(ctx, integrationID, productIDs)
}

// Stop cancels every open window and waits for running syncs to finish
func (s *DebounceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.pending)
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Debounce scheduler stopped", zap.Int("dropped_windows", dropped))
		return nil
	case <-ctx.Done():
		s.logger.Warn("Debounce scheduler stop timed out")
		return ctx.Err()
	}
}
