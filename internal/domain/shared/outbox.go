package shared

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the lifecycle state of a queued task.
//
//	PENDING -> PROCESSING -> SENT
//	              |
//	              v
//	           FAILED -> PROCESSING ... -> DEAD -> (manual retry) PENDING
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// ClaimableStatuses are the states a processor may pick a task up from
var ClaimableStatuses = []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	maxBackoff         = 15 * time.Minute
)

var (
	ErrOutboxInvalidTaskType = errors.New("outbox: task type is required")
	ErrOutboxNotProcessable  = errors.New("outbox: can only mark pending or failed entries as processing")
	ErrOutboxNotDead         = errors.New("outbox: can only retry dead letter entries")
	ErrOutboxEntryNotFound   = errors.New("outbox: entry not found")
)

// OutboxEntry is a side-effect task stored in the same transaction as the
// write that caused it. Handlers run later and a failing handler never
// undoes that write.
type OutboxEntry struct {
	ID uuid.UUID
	// TaskType selects the handler, e.g. "inventory.changed"
	TaskType string
	// SubjectID is the entity the task is about. Tasks sharing a subject
	// are handled one at a time.
	SubjectID   uuid.UUID
	Payload     []byte // JSON
	Status      OutboxStatus
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOutboxEntry(taskType string, subjectID uuid.UUID, payload []byte) (*OutboxEntry, error) {
	if taskType == "" {
		return nil, ErrOutboxInvalidTaskType
	}
	now := time.Now()
	return &OutboxEntry{
		ID:         uuid.New(),
		TaskType:   taskType,
		SubjectID:  subjectID,
		Payload:    payload,
		Status:     OutboxStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RetryDelay is the wait before attempt n+1 after n failures: one second
// doubled per failure, capped at fifteen minutes.
func RetryDelay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	d := DefaultBaseBackoff
	for range failures - 1 {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (e *OutboxEntry) touch() time.Time {
	e.UpdatedAt = time.Now()
	return e.UpdatedAt
}

// CanRetry reports whether a failed entry still has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

func (e *OutboxEntry) MarkProcessing() error {
	if !slices.Contains(ClaimableStatuses, e.Status) {
		return ErrOutboxNotProcessable
	}
	e.Status = OutboxStatusProcessing
	e.touch()
	return nil
}

func (e *OutboxEntry) MarkSent() {
	now := e.touch()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
}

// MarkFailed counts the failure. The entry goes dead once it has failed
// MaxRetries times, otherwise it is due again after RetryDelay.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	now := e.touch()
	e.RetryCount++
	e.LastError = errMsg
	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(RetryDelay(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry gives a dead entry a fresh set of attempts
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return ErrOutboxNotDead
	}
	e.touch()
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	return nil
}

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindPending returns the oldest pending entries
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries due at or before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims the claimable entries among ids and returns
	// them. Entries claimed concurrently by another caller are left out.
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// ReleaseStale makes entries stuck in processing since before cutoff
	// due again, for example after a crash mid-task
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteOlderThan removes sent entries processed before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
