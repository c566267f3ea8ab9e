package event

import (
	"context"

	"github.com/wms/shopsync/internal/domain/shared"
	"go.uber.org/zap"
)

// Task outcomes reported to a TaskRecorder
const (
	TaskHandled   = "handled"
	TaskDuplicate = "duplicate"
	TaskFailed    = "failed"
)

// TaskRecorder receives one outcome per task run
type TaskRecorder interface {
	RecordTask(ctx context.Context, taskType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTask(context.Context, string, string) {}

// IdempotentHandler skips a task whose ID is already in the store. That
// happens when the processor stops between Handle and MarkSent and the task
// is claimed again. The ID is stored only after the inner handler succeeds.
type IdempotentHandler struct {
	next     shared.TaskHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	recorder TaskRecorder
	logger   *zap.Logger
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.config = config }
}

// WithTaskRecorder reports every run's outcome to r
func WithTaskRecorder(r TaskRecorder) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if r != nil {
			h.recorder = r
		}
	}
}

func NewIdempotentHandler(next shared.TaskHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		next:     next,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) TaskTypes() []string {
	return h.next.TaskTypes()
}

func taskKey(task *shared.OutboxEntry) string {
	return "task:" + task.ID.String()
}

func (h *IdempotentHandler) Handle(ctx context.Context, task *shared.OutboxEntry) error {
	if !h.config.Enabled {
		return h.run(ctx, task)
	}

	key := taskKey(task)
	done, err := h.store.IsProcessed(ctx, key)
	switch {
	case err != nil:
		// an unreachable store must not drop work; the handlers tolerate a rerun
		h.logger.Warn("Idempotency check failed, running task",
			zap.Stringer("task_id", task.ID), zap.Error(err))
	case done:
		h.recorder.RecordTask(ctx, task.TaskType, TaskDuplicate)
		h.logger.Debug("Task already handled", zap.Stringer("task_id", task.ID), zap.String("task_type", task.TaskType))
		return nil
	}

	if err := h.run(ctx, task); err != nil {
		return err
	}
	if _, err := h.store.MarkProcessed(ctx, key, h.config.TTL); err != nil {
		h.logger.Warn("Failed to record handled task", zap.Stringer("task_id", task.ID), zap.Error(err))
	}
	return nil
}

func (h *IdempotentHandler) run(ctx context.Context, task *shared.OutboxEntry) error {
	if err := h.next.Handle(ctx, task); err != nil {
		h.recorder.RecordTask(ctx, task.TaskType, TaskFailed)
		return err
	}
	h.recorder.RecordTask(ctx, task.TaskType, TaskHandled)
	return nil
}

var _ shared.TaskHandler = (*IdempotentHandler)(nil)

// WrapHandlersWithIdempotency wraps each handler with the same store and options
func WrapHandlersWithIdempotency(handlers []shared.TaskHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) []shared.TaskHandler {
	wrapped := make([]shared.TaskHandler, 0, len(handlers))
	for _, h := range handlers {
		wrapped = append(wrapped, NewIdempotentHandler(h, store, logger, opts...))
	}
	return wrapped
}
