package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/event"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

// DeadLetters inspects and requeues outbox tasks
type DeadLetters interface {
	List(ctx context.Context, page, pageSize int) (shared.Paginated[*shared.OutboxEntry], error)
	Get(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	Retry(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	RetryAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*event.OutboxStats, error)
}

// OutboxHandler handles outbox management HTTP requests
type OutboxHandler struct {
	BaseHandler
	service DeadLetters
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(service DeadLetters) *OutboxHandler {
	return &OutboxHandler{service: service}
}

// GetDeadLetterEntries lists tasks that exhausted their retries
//
// GET /system/outbox/dead
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var query dto.PageRequest
	if !h.BindQuery(c, &query) {
		return
	}
	query = query.Normalize(50)

	result, err := h.service.List(c.Request.Context(), query.Page, query.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toOutboxEntryResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// GetEntry returns one task in any status
//
// GET /system/outbox/:id
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryDeadEntry requeues a dead task
//
// POST /system/outbox/:id/retry
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryAllDeadEntries requeues every dead task
//
// POST /system/outbox/dead/retry-all
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.service.RetryAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: count})
}

// GetStats returns task counts per status
//
// GET /system/outbox/stats
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
