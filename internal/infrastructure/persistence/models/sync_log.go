package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"gorm.io/datatypes"
)

// SyncLogModel is the persistence model for SyncLogEntry. Rows are insert-only.
type SyncLogModel struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	IntegrationID  uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_log_integration_created,priority:1"`
	SyncType       integration.SyncType      `gorm:"type:varchar(20);not null"`
	Direction      integration.SyncDirection `gorm:"type:varchar(10);not null"`
	Trigger        integration.SyncTrigger   `gorm:"column:trigger_type;type:varchar(20);not null"`
	ItemsProcessed int                       `gorm:"not null"`
	ItemsFailed    int                       `gorm:"not null"`
	Errors         datatypes.JSON
	DurationMs     int64 `gorm:"not null"`
	Metadata       datatypes.JSON
	CreatedAt      time.Time `gorm:"not null;index:idx_sync_log_integration_created,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry
func (m *SyncLogModel) ToDomain() *integration.SyncLogEntry {
	e := &integration.SyncLogEntry{
		ID:             m.ID,
		IntegrationID:  m.IntegrationID,
		SyncType:       m.SyncType,
		Direction:      m.Direction,
		Trigger:        m.Trigger,
		ItemsProcessed: m.ItemsProcessed,
		ItemsFailed:    m.ItemsFailed,
		Duration:       time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Errors) > 0 {
		_ = json.Unmarshal(m.Errors, &e.Errors)
	}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &e.Metadata)
	}
	return e
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLogEntry
func SyncLogModelFromDomain(e *integration.SyncLogEntry) (*SyncLogModel, error) {
	errs := e.Errors
	if errs == nil {
		errs = []integration.SyncItemError{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return nil, err
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return &SyncLogModel{
		ID:             e.ID,
		IntegrationID:  e.IntegrationID,
		SyncType:       e.SyncType,
		Direction:      e.Direction,
		Trigger:        e.Trigger,
		ItemsProcessed: e.ItemsProcessed,
		ItemsFailed:    e.ItemsFailed,
		Errors:         datatypes.JSON(errorsJSON),
		DurationMs:     e.Duration.Milliseconds(),
		Metadata:       datatypes.JSON(metaJSON),
		CreatedAt:      e.CreatedAt,
	}, nil
}
