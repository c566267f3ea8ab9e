package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncType is the kind of sync a log entry records
type SyncType string

const (
	SyncTypeInventory   SyncType = "inventory"
	SyncTypeOrders      SyncType = "orders"
	SyncTypePrice       SyncType = "price"
	SyncTypeReturn      SyncType = "return"
	SyncTypeFulfillment SyncType = "fulfillment"
	SyncTypeIncoming    SyncType = "incoming"
)

// SyncDirection is the data flow direction relative to the warehouse
type SyncDirection string

const (
	SyncDirectionInbound  SyncDirection = "inbound"
	SyncDirectionOutbound SyncDirection = "outbound"
)

// SyncTrigger is what started a sync
type SyncTrigger string

const (
	SyncTriggerEvent     SyncTrigger = "event"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerWebhook   SyncTrigger = "webhook"
)

// IsValid returns true if the trigger is known
func (t SyncTrigger) IsValid() bool {
	switch t {
	case SyncTriggerEvent, SyncTriggerManual, SyncTriggerScheduled, SyncTriggerWebhook:
		return true
	}
	return false
}

// SyncOutcome summarizes a log entry
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomePartial SyncOutcome = "partial"
	SyncOutcomeFailed  SyncOutcome = "failed"
)

// SyncItemError is a per-item failure
type SyncItemError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// SyncLogEntry is an immutable record of one sync attempt. ItemsProcessed
// counts every attempted item, ItemsFailed the subset that failed.
type SyncLogEntry struct {
	ID             uuid.UUID
	IntegrationID  uuid.UUID
	SyncType       SyncType
	Direction      SyncDirection
	Trigger        SyncTrigger
	ItemsProcessed int
	ItemsFailed    int
	Errors         []SyncItemError
	Duration       time.Duration
	Metadata       map[string]any
	CreatedAt      time.Time
}

// NewSyncLogEntry creates an entry stamped now
func NewSyncLogEntry(integrationID uuid.UUID, syncType SyncType, direction SyncDirection, trigger SyncTrigger) *SyncLogEntry {
	return &SyncLogEntry{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		SyncType:      syncType,
		Direction:     direction,
		Trigger:       trigger,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now(),
	}
}

// Outcome derives success, partial or failed from the counts
func (e *SyncLogEntry) Outcome() SyncOutcome {
	switch {
	case e.ItemsFailed == 0:
		return SyncOutcomeSuccess
	case e.ItemsFailed < e.ItemsProcessed:
		return SyncOutcomePartial
	default:
		return SyncOutcomeFailed
	}
}

// SyncLogFilter filters sync log listings
type SyncLogFilter struct {
	SyncType SyncType
	Page     int
	PageSize int
}

// SyncLogRepository appends and lists sync log entries. There is no update.
type SyncLogRepository interface {
	// Create appends an entry
	Create(ctx context.Context, entry *SyncLogEntry) error
	// FindByIntegration lists entries newest first
	FindByIntegration(ctx context.Context, integrationID uuid.UUID, filter SyncLogFilter) ([]SyncLogEntry, int64, error)
}
