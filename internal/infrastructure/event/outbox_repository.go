package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository stores outbox tasks in the outbox_tasks table
type GormOutboxRepository struct {
	db *gorm.DB
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func inStatus(statuses ...shared.OutboxStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN ?", statuses)
	}
}

func (r *GormOutboxRepository) tasks(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxTaskModel{})
}

func (r *GormOutboxRepository) find(q *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxTaskModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.OutboxTasksToDomain(rows), nil
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxTaskModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.OutboxTaskModelFromDomain(e))
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.tasks(ctx).Scopes(inStatus(shared.OutboxStatusPending)).
		Order("created_at").Limit(limit))
}

func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.tasks(ctx).Scopes(inStatus(shared.OutboxStatusFailed)).
		Where("next_retry_at <= ?", before).
		Order("next_retry_at").Limit(limit))
}

// MarkProcessing locks the candidate rows with SKIP LOCKED so two
// processors never claim the same task.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.OutboxTaskModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Scopes(inStatus(shared.ClaimableStatuses...)).
			Where("id IN ?", ids).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}

		now := time.Now()
		owned := make([]uuid.UUID, len(rows))
		for i := range rows {
			owned[i] = rows[i].ID
			rows[i].Status = shared.OutboxStatusProcessing
			rows[i].UpdatedAt = now
		}
		return tx.Model(&models.OutboxTaskModel{}).
			Where("id IN ?", owned).
			Updates(models.OutboxTaskModel{Status: shared.OutboxStatusProcessing, UpdatedAt: now}).Error
	})
	if err != nil {
		return nil, err
	}
	return models.OutboxTasksToDomain(rows), nil
}

func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.OutboxTaskModelFromDomain(entry)).Error
}

// ReleaseStale turns abandoned processing rows into failures due now. The
// retry count is left alone since the handler may never have run.
func (r *GormOutboxRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now()
	res := r.tasks(ctx).Scopes(inStatus(shared.OutboxStatusProcessing)).
		Where("updated_at < ?", cutoff).
		Updates(map[string]any{
			"status":        shared.OutboxStatusFailed,
			"next_retry_at": now,
			"last_error":    "released after processing timeout",
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Scopes(inStatus(shared.OutboxStatusSent)).
		Where("processed_at < ?", before).
		Delete(&models.OutboxTaskModel{})
	return res.RowsAffected, res.Error
}

// FindDead pages through dead letters, most recently failed first
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	if err := r.tasks(ctx).Scopes(inStatus(shared.OutboxStatusDead)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	dead, err := r.find(r.tasks(ctx).Scopes(inStatus(shared.OutboxStatusDead)).
		Order("updated_at DESC").
		Offset((max(page, 1) - 1) * pageSize).
		Limit(pageSize))
	return dead, total, err
}

func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxTaskModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrOutboxEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	rows, err := r.tasks(ctx).Select("status, COUNT(*)").Group("status").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[shared.OutboxStatus]int64)
	for rows.Next() {
		var status shared.OutboxStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
