package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
)

// InventorySyncer pushes warehouse quantities to the platform
type InventorySyncer interface {
	SyncInventory(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID, trigger integration.SyncTrigger) (*appintegration.InventorySyncResult, error)
}

// OrderPuller imports platform orders
type OrderPuller interface {
	SyncShopifyOrders(ctx context.Context, integrationID uuid.UUID, since *time.Time, trigger integration.SyncTrigger) (*appintegration.OrderSyncResult, error)
}

// IncomingSyncer computes and publishes in-transit quantities
type IncomingSyncer interface {
	CalculateIncoming(ctx context.Context, integrationID uuid.UUID) (int, error)
	SyncIncomingToShopify(ctx context.Context, integrationID uuid.UUID, trigger integration.SyncTrigger) (*appintegration.IncomingSyncResult, error)
}

// FulfillmentSyncer reports shipments to the platform
type FulfillmentSyncer interface {
	SyncFulfillment(ctx context.Context, req integration.FulfillmentSyncRequest) (*appintegration.FulfillmentSyncResult, error)
}

// ReturnSyncer turns completed returns into refunds
type ReturnSyncer interface {
	SyncReturn(ctx context.Context, returnID uuid.UUID) (*appintegration.ReturnSyncResult, error)
}

// SyncServices groups the services behind the manual sync endpoints
type SyncServices struct {
	Integrations IntegrationGetter
	Inventory    InventorySyncer
	Orders       OrderPuller
	Incoming     IncomingSyncer
	Fulfillment  FulfillmentSyncer
	Returns      ReturnSyncer
}

// SyncHandler runs sync operations on operator request and waits for them
type SyncHandler struct {
	BaseHandler
	svc SyncServices
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(svc SyncServices) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// SyncInventory pushes quantities for some or all mapped products
//
// POST /integrations/:integration_id/sync/inventory
func (h *SyncHandler) SyncInventory(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.svc.Integrations)
	if !ok {
		return
	}
	var req appintegration.SyncInventoryRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Inventory.SyncInventory(c.Request.Context(), in.ID, req.ProductIDs, integration.SyncTriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PullOrders imports recent platform orders
//
// POST /integrations/:integration_id/sync/orders
func (h *SyncHandler) PullOrders(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.svc.Integrations)
	if !ok {
		return
	}
	var req appintegration.PullOrdersRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Orders.SyncShopifyOrders(c.Request.Context(), in.ID, req.Since, integration.SyncTriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CalculateIncoming returns the in-transit quantity without publishing it
//
// GET /integrations/:integration_id/incoming
func (h *SyncHandler) CalculateIncoming(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.svc.Integrations)
	if !ok {
		return
	}
	incoming, err := h.svc.Incoming.CalculateIncoming(c.Request.Context(), in.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, IncomingData{IntegrationID: in.ID, Incoming: incoming})
}

// SyncIncoming publishes per-product incoming quantities as metafields
//
// POST /integrations/:integration_id/sync/incoming
func (h *SyncHandler) SyncIncoming(c *gin.Context) {
	in, ok := h.scopedIntegration(c, h.svc.Integrations)
	if !ok {
		return
	}
	result, err := h.svc.Incoming.SyncIncomingToShopify(c.Request.Context(), in.ID, integration.SyncTriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// FulfillmentItemRequest is one shipped product and quantity
type FulfillmentItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// FulfillmentRequest reports a warehouse shipment. Omitting items fulfills
// every open line.
type FulfillmentRequest struct {
	OrderID        uuid.UUID                `json:"order_id" binding:"required"`
	TrackingNumber string                   `json:"tracking_number" binding:"max=255"`
	Carrier        string                   `json:"carrier" binding:"max=100"`
	TrackingURL    string                   `json:"tracking_url" binding:"omitempty,url"`
	Items          []FulfillmentItemRequest `json:"items" binding:"omitempty,dive"`
}

// ToSyncRequest converts the request to the task payload
func (r FulfillmentRequest) ToSyncRequest() integration.FulfillmentSyncRequest {
	req := integration.FulfillmentSyncRequest{
		OrderID:        r.OrderID,
		TrackingNumber: r.TrackingNumber,
		Carrier:        r.Carrier,
		TrackingURL:    r.TrackingURL,
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, integration.FulfillmentItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return req
}

// SyncFulfillment reports a shipment and waits for the platform answer
//
// POST /fulfillments/sync
func (h *SyncHandler) SyncFulfillment(c *gin.Context) {
	var req FulfillmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Fulfillment.SyncFulfillment(c.Request.Context(), req.ToSyncRequest())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncReturn refunds a completed return and waits for the platform answer
//
// POST /returns/:return_id/sync
func (h *SyncHandler) SyncReturn(c *gin.Context) {
	id, ok := h.ParamUUID(c, "return_id")
	if !ok {
		return
	}
	result, err := h.svc.Returns.SyncReturn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
