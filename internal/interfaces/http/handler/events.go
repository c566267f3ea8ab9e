package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
)

// EventHandler accepts warehouse events and queues the matching sync in the
// outbox. The caller's operation is never blocked on the platform.
type EventHandler struct {
	BaseHandler
	tasks shared.TaskEnqueuer
}

// NewEventHandler creates a new event handler
func NewEventHandler(tasks shared.TaskEnqueuer) *EventHandler {
	return &EventHandler{tasks: tasks}
}

// InventoryChanged queues a debounced (or immediate) inventory sync
//
// POST /events/inventory-changed
func (h *EventHandler) InventoryChanged(c *gin.Context) {
	var req appintegration.TriggerInventoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	// one task per event, the processor fans out to integrations
	h.enqueue(c, integration.TaskInventoryChanged, uuid.New(), integration.InventoryChangedTask{
		ProductIDs: req.ProductIDs,
		Immediate:  req.Immediate,
	})
}

// FulfillmentCreated queues a fulfillment sync for a shipped order
//
// POST /events/fulfillments
func (h *EventHandler) FulfillmentCreated(c *gin.Context) {
	var req FulfillmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.enqueue(c, integration.TaskFulfillmentSyncRequested, req.OrderID, req.ToSyncRequest())
}

// ReturnCompleted queues a refund sync for a completed return
//
// POST /events/returns/:return_id/completed
func (h *EventHandler) ReturnCompleted(c *gin.Context) {
	id, ok := h.ParamUUID(c, "return_id")
	if !ok {
		return
	}
	h.enqueue(c, integration.TaskReturnSyncRequested, id, integration.ReturnSyncTask{ReturnID: id})
}

func (h *EventHandler) enqueue(c *gin.Context, taskType string, subjectID uuid.UUID, payload any) {
	if err := h.tasks.Enqueue(c.Request.Context(), taskType, subjectID, payload); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, QueuedTask{TaskType: taskType, SubjectID: subjectID})
}
