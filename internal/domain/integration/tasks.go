package integration

import "github.com/google/uuid"

// Outbox task types enqueued by warehouse operations
const (
	TaskInventoryChanged         = "inventory.changed"
	TaskFulfillmentSyncRequested = "fulfillment.sync_requested"
	TaskReturnSyncRequested      = "return.sync_requested"
)

// InventoryChangedTask is the payload of TaskInventoryChanged
type InventoryChangedTask struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
	// Immediate bypasses the debounce window, e.g. after a stock count
	Immediate bool `json:"immediate,omitempty"`
}

// FulfillmentItem is one shipped product and quantity
type FulfillmentItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// FulfillmentSyncRequest asks for an internal shipment to be reported to the
// platform. Empty Items fulfills everything that remains open.
type FulfillmentSyncRequest struct {
	OrderID        uuid.UUID         `json:"order_id"`
	TrackingNumber string            `json:"tracking_number"`
	Carrier        string            `json:"carrier"`
	TrackingURL    string            `json:"tracking_url,omitempty"`
	Items          []FulfillmentItem `json:"items,omitempty"`
}

// ReturnSyncTask is the payload of TaskReturnSyncRequested
type ReturnSyncTask struct {
	ReturnID uuid.UUID `json:"return_id"`
}
