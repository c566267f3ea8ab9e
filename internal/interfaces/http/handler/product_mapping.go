package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

// ProductMappingService manages product to variant links
type ProductMappingService interface {
	CreateMapping(ctx context.Context, integrationID, productID uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error)
	GetMapping(ctx context.Context, integrationID, id uuid.UUID) (*integration.ProductMapping, error)
	ListMappings(ctx context.Context, integrationID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error)
	Remap(ctx context.Context, integrationID, id uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error)
	SetSyncFlags(ctx context.Context, integrationID, id uuid.UUID, inventory, price *bool) (*integration.ProductMapping, error)
}

// MappingImporter creates mappings in bulk from a CSV file
type MappingImporter interface {
	ImportMappings(ctx context.Context, integrationID uuid.UUID, r io.Reader, dryRun bool) (*appintegration.MappingImportResult, error)
}

// ProductMappingHandler handles product mapping HTTP requests
type ProductMappingHandler struct {
	BaseHandler
	integrations IntegrationGetter
	service      ProductMappingService
	importer     MappingImporter
}

// NewProductMappingHandler creates a new product mapping handler
func NewProductMappingHandler(integrations IntegrationGetter, service ProductMappingService, importer MappingImporter) *ProductMappingHandler {
	return &ProductMappingHandler{integrations: integrations, service: service, importer: importer}
}

// Create links a warehouse product to a platform variant
//
// POST /integrations/:integration_id/mappings
func (h *ProductMappingHandler) Create(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	var req appintegration.CreateProductMappingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	mapping, err := h.service.CreateMapping(c.Request.Context(), in.ID, req.ProductID, req.ToExternalRef())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appintegration.ToProductMappingResponse(mapping))
}

// Get returns one mapping
//
// GET /integrations/:integration_id/mappings/:mapping_id
func (h *ProductMappingHandler) Get(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "mapping_id")
	if !ok {
		return
	}

	mapping, err := h.service.GetMapping(c.Request.Context(), in.ID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToProductMappingResponse(mapping))
}

// MappingListQuery filters the mapping listing
type MappingListQuery struct {
	dto.PageRequest
	Search        string `form:"search" binding:"omitempty,max=100"`
	SyncInventory *bool  `form:"sync_inventory"`
	SyncPrice     *bool  `form:"sync_price"`
	SortBy        string `form:"sort_by" binding:"omitempty,oneof=created_at updated_at external_sku last_synced_at"`
	SortOrder     string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// List returns a page of mappings
//
// GET /integrations/:integration_id/mappings
func (h *ProductMappingHandler) List(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	var query MappingListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	page := query.PageRequest.Normalize(50)

	mappings, total, err := h.service.ListMappings(c.Request.Context(), in.ID, integration.ProductMappingFilter{
		Search:        query.Search,
		SyncInventory: query.SyncInventory,
		SyncPrice:     query.SyncPrice,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
		Page:          page.Page,
		PageSize:      page.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToProductMappingResponses(mappings), total, page.Page, page.PageSize)
}

// Remap points a mapping at a different variant
//
// PUT /integrations/:integration_id/mappings/:mapping_id/external-ref
func (h *ProductMappingHandler) Remap(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "mapping_id")
	if !ok {
		return
	}
	var req appintegration.ExternalRefRequest
	if !h.BindJSON(c, &req) {
		return
	}

	mapping, err := h.service.Remap(c.Request.Context(), in.ID, id, req.ToExternalRef())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToProductMappingResponse(mapping))
}

// SetSyncFlags enables or disables inventory and price sync
//
// PATCH /integrations/:integration_id/mappings/:mapping_id/sync-flags
func (h *ProductMappingHandler) SetSyncFlags(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "mapping_id")
	if !ok {
		return
	}
	var req appintegration.SetSyncFlagsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.SyncInventory == nil && req.SyncPrice == nil {
		h.BadRequest(c, "sync_inventory or sync_price is required")
		return
	}

	mapping, err := h.service.SetSyncFlags(c.Request.Context(), in.ID, id, req.SyncInventory, req.SyncPrice)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToProductMappingResponse(mapping))
}

// MappingImportQuery controls a CSV import
type MappingImportQuery struct {
	DryRun bool `form:"dry_run"`
}

// Import creates mappings from an uploaded CSV file. Rows that cannot be
// mapped are listed in the result; a file that cannot be read at all is
// rejected with ERR_INVALID_FILE.
//
// POST /integrations/:integration_id/mappings/import
func (h *ProductMappingHandler) Import(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.integrations)
	if !ok {
		return
	}
	var query MappingImportQuery
	if !h.BindQuery(c, &query) {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.BadRequest(c, "file could not be read")
		return
	}
	defer file.Close()

	result, err := h.importer.ImportMappings(c.Request.Context(), in.ID, file, query.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
