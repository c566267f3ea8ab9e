package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OutboxProcessorConfig tunes the outbox processor
type OutboxProcessorConfig struct {
	BatchSize    int
	Workers      int // subjects handled in parallel within a batch
	PollInterval time.Duration
	TaskTimeout  time.Duration
	StaleAfter   time.Duration

	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns the production defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		Workers:          4,
		PollInterval:     5 * time.Second,
		TaskTimeout:      2 * time.Minute,
		StaleAfter:       10 * time.Minute,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

var errProcessorStarted = errors.New("outbox processor already started")

// OutboxProcessor polls the outbox, claims due tasks and runs the handler
// registered for each task type. Tasks about the same subject run one after
// another in creation order; different subjects run on up to Workers
// goroutines.
type OutboxProcessor struct {
	repo     shared.OutboxRepository
	registry *TaskRegistry
	config   OutboxProcessorConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(repo shared.OutboxRepository, registry *TaskRegistry, config OutboxProcessorConfig, logger *zap.Logger) *OutboxProcessor {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &OutboxProcessor{repo: repo, registry: registry, config: config, logger: logger}
}

// Start launches the poll loop and, when enabled, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	if p.cancel != nil {
		return errProcessorStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		every(ctx, p.config.PollInterval, p.processBatch)
		return nil
	})
	if p.config.CleanupEnabled {
		g.Go(func() error {
			every(ctx, p.config.CleanupInterval, p.cleanup)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(p.done)
	}()

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.Workers),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Strings("task_types", p.registry.TaskTypes()),
	)
	return nil
}

// Stop cancels both loops and waits for in-flight tasks, or for ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// every calls fn each interval until ctx ends
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// processBatch handles new tasks first, then failed tasks whose backoff
// has elapsed
func (p *OutboxProcessor) processBatch(ctx context.Context) {
	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending tasks", zap.Error(err))
		return
	}
	p.claimAndRun(ctx, pending)

	due, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable tasks", zap.Error(err))
		return
	}
	p.claimAndRun(ctx, due)
}

func (p *OutboxProcessor) claimAndRun(ctx context.Context, found []*shared.OutboxEntry) {
	if len(found) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(found))
	for i, e := range found {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim tasks", zap.Int("tasks", len(ids)), zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for _, tasks := range bySubject(claimed) {
		g.Go(func() error {
			for _, task := range tasks {
				if ctx.Err() != nil {
					return nil
				}
				p.settle(ctx, task, p.dispatch(ctx, task))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// bySubject splits tasks into per-subject queues, keeping their order
func bySubject(tasks []*shared.OutboxEntry) [][]*shared.OutboxEntry {
	index := make(map[uuid.UUID]int)
	var queues [][]*shared.OutboxEntry
	for _, t := range tasks {
		i, ok := index[t.SubjectID]
		if !ok {
			i = len(queues)
			index[t.SubjectID] = i
			queues = append(queues, nil)
		}
		queues[i] = append(queues[i], t)
	}
	return queues
}

// dispatch runs the task's handler under TaskTimeout. A panic becomes an
// error.
func (p *OutboxProcessor) dispatch(ctx context.Context, task *shared.OutboxEntry) (err error) {
	handler, ok := p.registry.Handler(task.TaskType)
	if !ok {
		return fmt.Errorf("no handler registered for task type %q", task.TaskType)
	}
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, task)
}

// settle records the outcome of one attempt
func (p *OutboxProcessor) settle(ctx context.Context, task *shared.OutboxEntry, outcome error) {
	log := p.logger.With(
		zap.String("task_id", task.ID.String()),
		zap.String("task_type", task.TaskType),
		zap.String("subject_id", task.SubjectID.String()),
	)

	if outcome == nil {
		task.MarkSent()
	} else {
		task.MarkFailed(outcome.Error())
		if task.IsDead() {
			log.Warn("task moved to dead letter queue", zap.Int("attempts", task.RetryCount), zap.Error(outcome))
		} else {
			log.Error("task failed", zap.Int("attempts", task.RetryCount), zap.Timep("next_retry_at", task.NextRetryAt), zap.Error(outcome))
		}
	}

	if err := p.repo.Update(ctx, task); err != nil {
		log.Error("failed to record task outcome", zap.String("status", string(task.Status)), zap.Error(err))
		return
	}
	if outcome == nil {
		log.Debug("task processed")
	}
}

// cleanup releases tasks stuck in processing and deletes old sent tasks
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	now := time.Now()
	if p.config.StaleAfter > 0 {
		switch released, err := p.repo.ReleaseStale(ctx, now.Add(-p.config.StaleAfter)); {
		case err != nil:
			p.logger.Error("failed to release stale tasks", zap.Error(err))
		case released > 0:
			p.logger.Warn("released stale outbox tasks", zap.Int64("released", released))
		}
	}

	cutoff := now.Add(-p.config.CleanupRetention)
	switch deleted, err := p.repo.DeleteOlderThan(ctx, cutoff); {
	case err != nil:
		p.logger.Error("failed to delete old outbox tasks", zap.Error(err))
	case deleted > 0:
		p.logger.Info("deleted old outbox tasks", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
