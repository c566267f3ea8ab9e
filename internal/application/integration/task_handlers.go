package integration

import (
	"context"
	"fmt"

	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/event"
	"go.uber.org/zap"
)

// InventoryChangedHandler routes inventory.changed tasks to the sync trigger
type InventoryChangedHandler struct {
	trigger *InventorySyncTrigger
	logger  *zap.Logger
}

// NewInventoryChangedHandler creates the handler
func NewInventoryChangedHandler(trigger *InventorySyncTrigger, logger *zap.Logger) *InventoryChangedHandler {
	return &InventoryChangedHandler{trigger: trigger, logger: logger}
}

// TaskTypes implements shared.TaskHandler
func (h *InventoryChangedHandler) TaskTypes() []string {
	return []string{integration.TaskInventoryChanged}
}

// Handle implements shared.TaskHandler
func (h *InventoryChangedHandler) Handle(ctx context.Context, task *shared.OutboxEntry) error {
	var payload integration.InventoryChangedTask
	if err := event.DecodePayload(task, &payload); err != nil {
		return err
	}
	if len(payload.ProductIDs) == 0 {
		return nil
	}
	if payload.Immediate {
		return h.trigger.TriggerImmediateInventorySync(ctx, payload.ProductIDs)
	}
	return h.trigger.TriggerInventorySync(ctx, payload.ProductIDs)
}

// FulfillmentSyncHandler handles fulfillment.sync_requested tasks
type FulfillmentSyncHandler struct {
	service *FulfillmentSyncService
	logger  *zap.Logger
}

// NewFulfillmentSyncHandler creates the handler
func NewFulfillmentSyncHandler(service *FulfillmentSyncService, logger *zap.Logger) *FulfillmentSyncHandler {
	return &FulfillmentSyncHandler{service: service, logger: logger}
}

// TaskTypes implements shared.TaskHandler
func (h *FulfillmentSyncHandler) TaskTypes() []string {
	return []string{integration.TaskFulfillmentSyncRequested}
}

// Handle implements shared.TaskHandler
func (h *FulfillmentSyncHandler) Handle(ctx context.Context, task *shared.OutboxEntry) error {
	var req integration.FulfillmentSyncRequest
	if err := event.DecodePayload(task, &req); err != nil {
		return err
	}
	result, err := h.service.SyncFulfillment(ctx, req)
	if err != nil {
		return fmt.Errorf("sync fulfillment for order %s: %w", req.OrderID, err)
	}
	if !result.Synced {
		h.logger.Debug("fulfillment sync skipped",
			zap.String("order_id", req.OrderID.String()),
			zap.String("reason", result.Reason),
		)
	}
	return nil
}

// ReturnSyncHandler handles return.sync_requested tasks
type ReturnSyncHandler struct {
	service *ReturnsSyncService
	logger  *zap.Logger
}

// NewReturnSyncHandler creates the handler
func NewReturnSyncHandler(service *ReturnsSyncService, logger *zap.Logger) *ReturnSyncHandler {
	return &ReturnSyncHandler{service: service, logger: logger}
}

// TaskTypes implements shared.TaskHandler
func (h *ReturnSyncHandler) TaskTypes() []string {
	return []string{integration.TaskReturnSyncRequested}
}

// Handle implements shared.TaskHandler
func (h *ReturnSyncHandler) Handle(ctx context.Context, task *shared.OutboxEntry) error {
	var payload integration.ReturnSyncTask
	if err := event.DecodePayload(task, &payload); err != nil {
		return err
	}
	result, err := h.service.SyncReturn(ctx, payload.ReturnID)
	if err != nil {
		return fmt.Errorf("sync return %s: %w", payload.ReturnID, err)
	}
	if !result.Refunded {
		h.logger.Debug("return sync skipped",
			zap.String("return_id", payload.ReturnID.String()),
			zap.String("reason", result.Reason),
		)
	}
	return nil
}

var (
	_ shared.TaskHandler = (*InventoryChangedHandler)(nil)
	_ shared.TaskHandler = (*FulfillmentSyncHandler)(nil)
	_ shared.TaskHandler = (*ReturnSyncHandler)(nil)
)
