package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
)

// CountData reports how many items an operation touched
type CountData struct {
	Count int64 `json:"count"`
}

// QueuedTask describes work accepted into the outbox
type QueuedTask struct {
	TaskType  string    `json:"task_type"`
	SubjectID uuid.UUID `json:"subject_id"`
}

// IncomingData is the computed in-transit quantity for an integration
type IncomingData struct {
	IntegrationID uuid.UUID `json:"integration_id"`
	Incoming      int       `json:"incoming"`
}

// OutboxEntryResponse represents an outbox task in API responses
type OutboxEntryResponse struct {
	ID          uuid.UUID           `json:"id"`
	TaskType    string              `json:"task_type"`
	SubjectID   uuid.UUID           `json:"subject_id"`
	Status      shared.OutboxStatus `json:"status"`
	RetryCount  int                 `json:"retry_count"`
	MaxRetries  int                 `json:"max_retries"`
	LastError   string              `json:"last_error,omitempty"`
	NextRetryAt *time.Time          `json:"next_retry_at,omitempty"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toOutboxEntryResponse(e *shared.OutboxEntry) OutboxEntryResponse {
	return OutboxEntryResponse{
		ID:          e.ID,
		TaskType:    e.TaskType,
		SubjectID:   e.SubjectID,
		Status:      e.Status,
		RetryCount:  e.RetryCount,
		MaxRetries:  e.MaxRetries,
		LastError:   e.LastError,
		NextRetryAt: e.NextRetryAt,
		ProcessedAt: e.ProcessedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toOutboxEntryResponses(entries []*shared.OutboxEntry) []OutboxEntryResponse {
	out := make([]OutboxEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toOutboxEntryResponse(e)
	}
	return out
}
