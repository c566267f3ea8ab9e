package shopify

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Admin API REST payloads. Field names follow the published resource schema.

type shopEnvelope struct {
	Shop struct {
		ID                int64 `json:"id"`
		PrimaryLocationID int64 `json:"primary_location_id"`
	} `json:"shop"`
}

type location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Legacy bool   `json:"legacy"`
}

type locationsEnvelope struct {
	Locations []location `json:"locations"`
}

type inventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

type variantPriceUpdate struct {
	Variant struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	} `json:"variant"`
}

type address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Phone        string `json:"phone"`
}

type shippingLine struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

type lineItem struct {
	ID                  int64           `json:"id"`
	ProductID           *int64          `json:"product_id"`
	VariantID           *int64          `json:"variant_id"`
	SKU                 string          `json:"sku"`
	Title               string          `json:"title"`
	VariantTitle        string          `json:"variant_title"`
	Quantity            int             `json:"quantity"`
	FulfillableQuantity int             `json:"fulfillable_quantity"`
	RequiresShipping    bool            `json:"requires_shipping"`
	Price               decimal.Decimal `json:"price"`
}

type order struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Note            string          `json:"note"`
	Tags            string          `json:"tags"`
	Currency        string          `json:"currency"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	CreatedAt       time.Time       `json:"created_at"`
	ShippingAddress *address        `json:"shipping_address"`
	ShippingLines   []shippingLine  `json:"shipping_lines"`
	LineItems       []lineItem      `json:"line_items"`
}

type fulfillmentOrderLineItem struct {
	ID                  int64 `json:"id"`
	LineItemID          int64 `json:"line_item_id"`
	VariantID           int64 `json:"variant_id"`
	Quantity            int   `json:"quantity"`
	FulfillableQuantity int   `json:"fulfillable_quantity"`
}

type fulfillmentOrder struct {
	ID        int64                      `json:"id"`
	Status    string                     `json:"status"`
	LineItems []fulfillmentOrderLineItem `json:"line_items"`
}

type fulfillmentOrdersEnvelope struct {
	FulfillmentOrders []fulfillmentOrder `json:"fulfillment_orders"`
}

type fulfillmentOrderLineItemRef struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type lineItemsByFulfillmentOrder struct {
	FulfillmentOrderID        int64                         `json:"fulfillment_order_id"`
	FulfillmentOrderLineItems []fulfillmentOrderLineItemRef `json:"fulfillment_order_line_items,omitempty"`
}

type trackingInfo struct {
	Number  string `json:"number,omitempty"`
	Company string `json:"company,omitempty"`
	URL     string `json:"url,omitempty"`
}

type fulfillmentCreate struct {
	Fulfillment struct {
		LineItemsByFulfillmentOrder []lineItemsByFulfillmentOrder `json:"line_items_by_fulfillment_order"`
		TrackingInfo                trackingInfo                  `json:"tracking_info"`
		NotifyCustomer              bool                          `json:"notify_customer"`
	} `json:"fulfillment"`
}

type fulfillmentEnvelope struct {
	Fulfillment struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"fulfillment"`
}

type refundLineItem struct {
	LineItemID  int64  `json:"line_item_id"`
	Quantity    int    `json:"quantity"`
	RestockType string `json:"restock_type"`
	LocationID  *int64 `json:"location_id,omitempty"`
}

type refundCalculate struct {
	Refund struct {
		Shipping        map[string]any   `json:"shipping,omitempty"`
		RefundLineItems []refundLineItem `json:"refund_line_items"`
	} `json:"refund"`
}

type refundEnvelope struct {
	Refund struct {
		ID int64 `json:"id"`
	} `json:"refund"`
}

// GraphQL payloads

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

type inventorySetQuantitiesData struct {
	InventorySetQuantities struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"inventorySetQuantities"`
}

type metafieldsSetData struct {
	MetafieldsSet struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"metafieldsSet"`
}

// ---------------------------------------------------------------------------
// ID helpers
// ---------------------------------------------------------------------------

const gidPrefix = "gid://shopify/"

// GID returns the global ID of a numeric resource ID. Values that are
// already global IDs are returned unchanged.
func GID(resource, id string) string {
	if strings.HasPrefix(id, gidPrefix) {
		return id
	}
	return gidPrefix + resource + "/" + id
}

// LegacyID returns the numeric part of a global ID, or id itself
func LegacyID(id string) string {
	if !strings.HasPrefix(id, gidPrefix) {
		return id
	}
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func parseID(id string) (int64, error) {
	return strconv.ParseInt(LegacyID(strings.TrimSpace(id)), 10, 64)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return formatID(*id)
}
