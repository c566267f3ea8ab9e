package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform value objects
// ---------------------------------------------------------------------------

// InventoryQuantity sets the absolute available quantity of one inventory
// item at one location
type InventoryQuantity struct {
	InventoryItemID string
	LocationID      string
	Quantity        int
}

// PlatformUserError is a per-field error returned by a platform mutation
type PlatformUserError struct {
	Field   []string
	Message string
	Code    string
}

// FulfillmentOrderStatus is the platform status of a fulfillment order
type FulfillmentOrderStatus string

const (
	FulfillmentOrderOpen       FulfillmentOrderStatus = "open"
	FulfillmentOrderInProgress FulfillmentOrderStatus = "in_progress"
	FulfillmentOrderClosed     FulfillmentOrderStatus = "closed"
	FulfillmentOrderCancelled  FulfillmentOrderStatus = "cancelled"
)

// FulfillmentOrder is the still-shippable portion of an external order
type FulfillmentOrder struct {
	ID        string
	Status    FulfillmentOrderStatus
	LineItems []FulfillmentOrderLine
}

// IsOpen returns true if the fulfillment order still accepts fulfillments
func (fo FulfillmentOrder) IsOpen() bool {
	return fo.Status == FulfillmentOrderOpen || fo.Status == FulfillmentOrderInProgress
}

// FulfillmentOrderLine is one line of a fulfillment order
type FulfillmentOrderLine struct {
	ID                  string
	LineItemID          string
	VariantID           string
	FulfillableQuantity int
}

// FulfillmentLine fulfills Quantity units of one fulfillment order line
type FulfillmentLine struct {
	FulfillmentOrderLineID string
	Quantity               int
}

// FulfillmentOrderSelection picks lines of one fulfillment order. Empty Lines
// fulfills everything that remains.
type FulfillmentOrderSelection struct {
	FulfillmentOrderID string
	Lines              []FulfillmentLine
}

// FulfillmentRequest creates one platform fulfillment
type FulfillmentRequest struct {
	Orders          []FulfillmentOrderSelection
	TrackingNumber  string
	TrackingCompany string
	TrackingURL     string
	NotifyCustomer  bool
}

// RefundLine refunds quantity of one external line item
type RefundLine struct {
	LineItemID  string
	Quantity    int
	RestockType RestockType
	LocationID  string
}

// Metafield is a typed key/value attached to a platform product
type Metafield struct {
	Namespace string
	Key       string
	Type      string
	Value     string
}

// OrderQuery selects open unfulfilled orders created after CreatedAtMin
type OrderQuery struct {
	CreatedAtMin time.Time
	Limit        int
}

// ---------------------------------------------------------------------------
// Gateway port
// ---------------------------------------------------------------------------

// PlatformGateway is the per-store API used by the sync services. One value
// is bound to one integration's credentials.
type PlatformGateway interface {
	// PrimaryLocationID returns the store's primary inventory location
	PrimaryLocationID(ctx context.Context) (string, error)
	// SetInventoryQuantities sets absolute available quantities in one batch.
	// Per-item rejections are returned as user errors, not as err.
	SetInventoryQuantities(ctx context.Context, reason string, quantities []InventoryQuantity) ([]PlatformUserError, error)
	// SetInventoryLevel sets one absolute available quantity
	SetInventoryLevel(ctx context.Context, quantity InventoryQuantity) error
	// UpdateVariantPrice sets a variant's price
	UpdateVariantPrice(ctx context.Context, variantID string, price decimal.Decimal) error
	// ListOpenOrders returns open unfulfilled orders, following every page
	ListOpenOrders(ctx context.Context, query OrderQuery) ([]ExternalOrder, error)
	// GetOrder fetches one order with its live line items
	GetOrder(ctx context.Context, orderID string) (*ExternalOrder, error)
	// ListFulfillmentOrders lists every fulfillment order of an order
	ListFulfillmentOrders(ctx context.Context, orderID string) ([]FulfillmentOrder, error)
	// CreateFulfillment creates a fulfillment and returns its ID
	CreateFulfillment(ctx context.Context, request FulfillmentRequest) (string, error)
	// CalculateRefund asks the platform to price a refund
	CalculateRefund(ctx context.Context, orderID string, lines []RefundLine) (json.RawMessage, error)
	// CreateRefund applies a calculated refund and returns the refund ID
	CreateRefund(ctx context.Context, orderID string, calculated json.RawMessage) (string, error)
	// SetProductMetafield creates or replaces a product metafield
	SetProductMetafield(ctx context.Context, productID string, metafield Metafield) error
}

// GatewayFactory builds a gateway for an integration, decrypting its token
type GatewayFactory interface {
	ForIntegration(ctx context.Context, integration *Integration) (PlatformGateway, error)
}

// ---------------------------------------------------------------------------
// Side-effect ports
// ---------------------------------------------------------------------------

// Notifier receives fire-and-forget notifications after state changes
type Notifier interface {
	OrderImported(ctx context.Context, order *InternalOrder) error
	FulfillmentSynced(ctx context.Context, orderID uuid.UUID, trackingNumber string) error
}

// OrderArchive stores raw external order payloads
type OrderArchive interface {
	ArchiveOrder(ctx context.Context, integrationID uuid.UUID, externalOrderID string, payload []byte) error
}
