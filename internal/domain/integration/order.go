package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// External order (platform side)
// ---------------------------------------------------------------------------

// ExternalOrder is an order as received from the platform
type ExternalOrder struct {
	// ID is the platform order ID
	ID string
	// Name is the display name, e.g. "#1001"
	Name  string
	Email string
	Phone string
	// Note is the customer note
	Note string
	Tags []string
	// ShippingMethod is the title of the first shipping line
	ShippingMethod  string
	Currency        string
	TotalPrice      decimal.Decimal
	ShippingAddress *ShippingAddress
	LineItems       []ExternalLineItem
	CreatedAt       time.Time
	// Raw is the original payload, kept for archiving
	Raw []byte
}

// ExternalLineItem is one line of an external order
type ExternalLineItem struct {
	ID                  string
	ProductID           string
	VariantID           string
	SKU                 string
	Title               string
	VariantTitle        string
	Quantity            int
	FulfillableQuantity int
	RequiresShipping    bool
	Price               decimal.Decimal
}

// IsShippable returns true if the line still needs to leave the warehouse
func (li ExternalLineItem) IsShippable() bool {
	return li.RequiresShipping && li.FulfillableQuantity > 0
}

// DisplayName returns the title with the variant title when present
func (li ExternalLineItem) DisplayName() string {
	if li.VariantTitle == "" || li.VariantTitle == "Default Title" {
		return li.Title
	}
	return li.Title + " - " + li.VariantTitle
}

// ShippingAddress is a ship-to address
type ShippingAddress struct {
	Name         string `json:"name,omitempty"`
	Company      string `json:"company,omitempty"`
	Address1     string `json:"address1,omitempty"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`
	ProvinceCode string `json:"province_code,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

var rushKeywords = []string{"rush", "express", "overnight", "priority"}

// IsRush returns true if any tag or the shipping method mentions a rush keyword
func (o ExternalOrder) IsRush() bool {
	for _, tag := range o.Tags {
		if containsRushKeyword(tag) {
			return true
		}
	}
	return containsRushKeyword(o.ShippingMethod)
}

func containsRushKeyword(s string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return false
	}
	for _, kw := range rushKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// OrderNumber derives the internal order number from the display name
func (o ExternalOrder) OrderNumber() string {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(o.Name), "#"))
	if name == "" {
		name = o.ID
	}
	return "SH-" + name
}

// FallbackOrderNumber is used when OrderNumber is already taken by another order
func (o ExternalOrder) FallbackOrderNumber() string {
	suffix := o.ID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("%s-%s", o.OrderNumber(), suffix)
}

// ---------------------------------------------------------------------------
// Internal order (warehouse side)
// ---------------------------------------------------------------------------

// OrderStatus is the warehouse order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPicking   OrderStatus = "picking"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// InternalOrder is an outbound warehouse order
type InternalOrder struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	// OrderNumber is unique across the warehouse
	OrderNumber    string
	Status         OrderStatus
	IsRush         bool
	Notes          string
	ShipTo         ShippingAddress
	Email          string
	ShippingMethod string
	// ExternalOrderID and ExternalPlatform form the import dedup key
	ExternalOrderID     string
	ExternalOrderNumber string
	ExternalPlatform    Platform
	IntegrationID       *uuid.UUID
	Items               []InternalOrderItem
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLinkedTo returns true if the order came from platform through an integration
func (o *InternalOrder) IsLinkedTo(platform Platform) bool {
	return o.ExternalOrderID != "" && o.ExternalPlatform == platform && o.IntegrationID != nil
}

// InternalOrderItem is one line of an internal order
type InternalOrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	ProductID          uuid.UUID
	Quantity           int
	UnitPrice          decimal.Decimal
	ExternalLineItemID string
}

// OrderRepository persists warehouse orders created by imports
type OrderRepository interface {
	// FindByID finds an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*InternalOrder, error)
	// ExistsByExternalID checks the import dedup key
	ExistsByExternalID(ctx context.Context, platform Platform, externalOrderID string) (bool, error)
	// OrderNumberExists checks order number uniqueness
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	// Create inserts the order row only. It returns ErrOrderAlreadyImported
	// when the dedup key is already taken.
	Create(ctx context.Context, order *InternalOrder) error
	// CreateItems inserts order lines
	CreateItems(ctx context.Context, items []InternalOrderItem) error
}
