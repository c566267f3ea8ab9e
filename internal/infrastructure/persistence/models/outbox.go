package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
)

// OutboxTaskModel is the persistence model for outbox tasks
type OutboxTaskModel struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TaskType    string              `gorm:"type:varchar(100);not null"`
	SubjectID   uuid.UUID           `gorm:"type:uuid;not null;index"`
	Payload     []byte              `gorm:"type:jsonb;not null"`
	Status      shared.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_status_created,priority:1"`
	RetryCount  int                 `gorm:"not null"`
	MaxRetries  int                 `gorm:"not null"`
	LastError   string              `gorm:"type:text"`
	NextRetryAt *time.Time          `gorm:"index:idx_outbox_next_retry"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxTaskModel) TableName() string {
	return "outbox_tasks"
}

// ToDomain converts the persistence model to a domain OutboxEntry
func (m *OutboxTaskModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:          m.ID,
		TaskType:    m.TaskType,
		SubjectID:   m.SubjectID,
		Payload:     m.Payload,
		Status:      m.Status,
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		LastError:   m.LastError,
		NextRetryAt: m.NextRetryAt,
		ProcessedAt: m.ProcessedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain OutboxEntry
func (m *OutboxTaskModel) FromDomain(e *shared.OutboxEntry) {
	m.ID = e.ID
	m.TaskType = e.TaskType
	m.SubjectID = e.SubjectID
	m.Payload = e.Payload
	m.Status = e.Status
	m.RetryCount = e.RetryCount
	m.MaxRetries = e.MaxRetries
	m.LastError = e.LastError
	m.NextRetryAt = e.NextRetryAt
	m.ProcessedAt = e.ProcessedAt
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// OutboxTaskModelFromDomain creates a new persistence model from a domain OutboxEntry
func OutboxTaskModelFromDomain(e *shared.OutboxEntry) *OutboxTaskModel {
	m := &OutboxTaskModel{}
	m.FromDomain(e)
	return m
}

// OutboxTasksToDomain converts a slice of models
func OutboxTasksToDomain(ms []OutboxTaskModel) []*shared.OutboxEntry {
	out := make([]*shared.OutboxEntry, len(ms))
	for i := range ms {
		out[i] = ms[i].ToDomain()
	}
	return out
}
