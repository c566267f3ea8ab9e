package event

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	deadPageDefault = 50
	deadPageMax     = 200
	requeueBatch    = 100
)

// DeadLetterService is the operator's view of tasks that ran out of
// attempts. A requeued task gets a fresh retry budget and is picked up by
// the next poll.
type DeadLetterService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

func NewDeadLetterService(repo shared.OutboxRepository, logger *zap.Logger) *DeadLetterService {
	return &DeadLetterService{repo: repo, logger: logger.Named("dead-letters")}
}

// List returns one page of dead tasks, most recently failed first
func (s *DeadLetterService) List(ctx context.Context, page, pageSize int) (shared.Paginated[*shared.OutboxEntry], error) {
	page = max(page, 1)
	if pageSize < 1 || pageSize > deadPageMax {
		pageSize = deadPageDefault
	}
	entries, total, err := s.repo.FindDead(ctx, page, pageSize)
	if err != nil {
		return shared.Paginated[*shared.OutboxEntry]{}, err
	}
	return shared.NewPaginated(entries, total, page, pageSize), nil
}

func (s *DeadLetterService) Get(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	return s.repo.FindByID(ctx, id)
}

// Retry requeues one dead task. Live tasks are refused with ErrOutboxNotDead.
func (s *DeadLetterService) Retry(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requeue(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("requeued task", zap.Stringer("task_id", id), zap.String("task_type", entry.TaskType))
	return entry, nil
}

func (s *DeadLetterService) requeue(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.ResetForRetry(); err != nil {
		return err
	}
	return s.repo.Update(ctx, entry)
}

// RetryAll requeues every dead task. Tasks that fail to save are logged and
// skipped; the count covers the ones that made it back to pending.
func (s *DeadLetterService) RetryAll(ctx context.Context) (int64, error) {
	var total int64
	for {
		// requeued tasks leave the dead set, so page one is always the rest
		batch, _, err := s.repo.FindDead(ctx, 1, requeueBatch)
		if err != nil {
			return total, err
		}
		var moved int64
		for _, entry := range batch {
			if err := s.requeue(ctx, entry); err != nil {
				s.logger.Warn("requeue failed", zap.Stringer("task_id", entry.ID), zap.Error(err))
				continue
			}
			moved++
		}
		total += moved
		if moved == 0 || len(batch) < requeueBatch {
			break
		}
	}
	s.logger.Info("requeued dead tasks", zap.Int64("count", total))
	return total, nil
}

// OutboxStats counts tasks per status
type OutboxStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

func (s *DeadLetterService) Stats(ctx context.Context) (*OutboxStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var stats OutboxStats
	slots := map[shared.OutboxStatus]*int64{
		shared.OutboxStatusPending:    &stats.Pending,
		shared.OutboxStatusProcessing: &stats.Processing,
		shared.OutboxStatusSent:       &stats.Sent,
		shared.OutboxStatusFailed:     &stats.Failed,
		shared.OutboxStatusDead:       &stats.Dead,
	}
	for status, n := range counts {
		if slot, ok := slots[status]; ok {
			*slot = n
		}
		stats.Total += n
	}
	return &stats, nil
}
