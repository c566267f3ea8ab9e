package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

// IntegrationService is the integration lifecycle the handler needs
type IntegrationService interface {
	Get(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
	Disconnect(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, settings integration.Settings) (*integration.Integration, error)
	ListSyncLogs(ctx context.Context, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error)
}

// IntegrationHandler handles integration HTTP requests
type IntegrationHandler struct {
	BaseHandler
	service IntegrationService
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(service IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

// Get returns one integration without its access token
//
// GET /integrations/:integration_id
func (h *IntegrationHandler) Get(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.service)
	if !ok {
		return
	}
	h.Success(c, appintegration.ToIntegrationResponse(in))
}

// UpdateSettings replaces the integration settings
//
// PUT /integrations/:integration_id/settings
func (h *IntegrationHandler) UpdateSettings(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.service)
	if !ok {
		return
	}
	var req appintegration.UpdateSettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdateSettings(c.Request.Context(), in.ID, req.ToSettings())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToIntegrationResponse(updated))
}

// Disconnect deactivates the integration
//
// POST /integrations/:integration_id/disconnect
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.service)
	if !ok {
		return
	}
	updated, err := h.service.Disconnect(c.Request.Context(), in.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToIntegrationResponse(updated))
}

// SyncLogQuery filters the sync log listing
type SyncLogQuery struct {
	dto.PageRequest
	SyncType string `form:"sync_type" binding:"omitempty,oneof=inventory orders price return fulfillment incoming"`
}

// ListSyncLogs returns the integration's sync history, newest first
//
// GET /integrations/:integration_id/sync-logs
func (h *IntegrationHandler) ListSyncLogs(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.service)
	if !ok {
		return
	}
	var query SyncLogQuery
	if !h.BindQuery(c, &query) {
		return
	}
	page := query.PageRequest.Normalize(20)

	entries, total, err := h.service.ListSyncLogs(c.Request.Context(), in.ID, integration.SyncLogFilter{
		SyncType: integration.SyncType(query.SyncType),
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToSyncLogResponses(entries), total, page.Page, page.PageSize)
}
