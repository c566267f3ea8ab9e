package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxEnqueuer writes tasks to the outbox table
type OutboxEnqueuer struct {
	db         *gorm.DB
	maxRetries int
}

// EnqueuerOption configures an OutboxEnqueuer
type EnqueuerOption func(*OutboxEnqueuer)

// WithMaxRetries overrides the retry budget of new tasks. Values below one
// keep shared.DefaultMaxRetries.
func WithMaxRetries(n int) EnqueuerOption {
	return func(p *OutboxEnqueuer) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewOutboxEnqueuer creates a new outbox enqueuer
func NewOutboxEnqueuer(db *gorm.DB, opts ...EnqueuerOption) *OutboxEnqueuer {
	p := &OutboxEnqueuer{db: db, maxRetries: shared.DefaultMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue persists a task outside any caller transaction
func (p *OutboxEnqueuer) Enqueue(ctx context.Context, taskType string, subjectID uuid.UUID, payload any) error {
	return p.EnqueueWithTx(ctx, p.db, taskType, subjectID, payload)
}

// EnqueueWithTx persists a task inside tx, so the task commits or rolls back
// together with the write that produced it
func (p *OutboxEnqueuer) EnqueueWithTx(ctx context.Context, tx *gorm.DB, taskType string, subjectID uuid.UUID, payload any) error {
	entry, err := newTaskEntry(taskType, subjectID, payload)
	if err != nil {
		return err
	}
	entry.MaxRetries = p.maxRetries
	return NewGormOutboxRepository(tx).Save(ctx, entry)
}

func newTaskEntry(taskType string, subjectID uuid.UUID, payload any) (*shared.OutboxEntry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	return shared.NewOutboxEntry(taskType, subjectID, body)
}

// DecodePayload unmarshals a task payload into v
func DecodePayload(task *shared.OutboxEntry, v any) error {
	if err := json.Unmarshal(task.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.TaskType, err)
	}
	return nil
}

var _ shared.TaskEnqueuer = (*OutboxEnqueuer)(nil)
