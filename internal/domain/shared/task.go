package shared

import (
	"context"

	"github.com/google/uuid"
)

// TaskHandler handles outbox tasks
type TaskHandler interface {
	// Handle runs one task. A returned error schedules a retry.
	Handle(ctx context.Context, task *OutboxEntry) error
	// TaskTypes returns the task types this handler accepts
	TaskTypes() []string
}

// TaskEnqueuer persists tasks for asynchronous handling. Payload is JSON encoded.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType string, subjectID uuid.UUID, payload any) error
}
