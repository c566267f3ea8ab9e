package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/shopsync/internal/domain/integration"
	"gorm.io/datatypes"
)

// The models in this file map tables owned by the warehouse system. The sync
// engine reads them and, for orders, inserts imported rows.

// ---------------------------------------------------------------------------
// Products and stock
// ---------------------------------------------------------------------------

// ProductModel is the read model of an internal product
type ProductModel struct {
	BaseModel
	ClientID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU      string          `gorm:"column:sku;type:varchar(100);not null;index"`
	Name     string          `gorm:"type:varchar(255);not null"`
	Price    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a ProductSnapshot
func (m *ProductModel) ToDomain() *integration.ProductSnapshot {
	return &integration.ProductSnapshot{
		ID:       m.ID,
		ClientID: m.ClientID,
		SKU:      m.SKU,
		Name:     m.Name,
		Price:    m.Price,
	}
}

// StockLevelModel is the quantity of one product at one internal location
type StockLevelModel struct {
	BaseModel
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_location,priority:1"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_location,priority:2"`
	OnHand     int       `gorm:"not null"`
	Reserved   int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderModel is an outbound warehouse order
type OrderModel struct {
	BaseModel
	ClientID            uuid.UUID               `gorm:"type:uuid;not null;index"`
	OrderNumber         string                  `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status              integration.OrderStatus `gorm:"type:varchar(20);not null"`
	IsRush              bool                    `gorm:"not null"`
	Notes               string                  `gorm:"type:text"`
	ShipTo              datatypes.JSON
	Email               string                `gorm:"type:varchar(255)"`
	ShippingMethod      string                `gorm:"type:varchar(255)"`
	ExternalOrderID     *string               `gorm:"type:varchar(64);uniqueIndex:idx_order_external,priority:1"`
	ExternalOrderNumber string                `gorm:"type:varchar(64)"`
	ExternalPlatform    *integration.Platform `gorm:"type:varchar(20);uniqueIndex:idx_order_external,priority:2"`
	IntegrationID       *uuid.UUID            `gorm:"type:uuid;index"`
	Items               []OrderItemModel      `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain InternalOrder
func (m *OrderModel) ToDomain() *integration.InternalOrder {
	o := &integration.InternalOrder{
		ID:                  m.ID,
		ClientID:            m.ClientID,
		OrderNumber:         m.OrderNumber,
		Status:              m.Status,
		IsRush:              m.IsRush,
		Notes:               m.Notes,
		Email:               m.Email,
		ShippingMethod:      m.ShippingMethod,
		ExternalOrderNumber: m.ExternalOrderNumber,
		IntegrationID:       m.IntegrationID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.ExternalOrderID != nil {
		o.ExternalOrderID = *m.ExternalOrderID
	}
	if m.ExternalPlatform != nil {
		o.ExternalPlatform = *m.ExternalPlatform
	}
	if len(m.ShipTo) > 0 {
		// A malformed address is left empty rather than failing the order read
		_ = json.Unmarshal(m.ShipTo, &o.ShipTo)
	}
	o.Items = make([]integration.InternalOrderItem, len(m.Items))
	for i := range m.Items {
		o.Items[i] = m.Items[i].ToDomain()
	}
	return o
}

// FromDomain populates the order row. Items are stored separately.
func (m *OrderModel) FromDomain(o *integration.InternalOrder) error {
	shipTo, err := json.Marshal(o.ShipTo)
	if err != nil {
		return err
	}
	m.setBase(o.ID, o.CreatedAt, o.UpdatedAt)
	m.ClientID = o.ClientID
	m.OrderNumber = o.OrderNumber
	m.Status = o.Status
	m.IsRush = o.IsRush
	m.Notes = o.Notes
	m.ShipTo = datatypes.JSON(shipTo)
	m.Email = o.Email
	m.ShippingMethod = o.ShippingMethod
	m.ExternalOrderNumber = o.ExternalOrderNumber
	m.IntegrationID = o.IntegrationID
	m.ExternalOrderID = nil
	m.ExternalPlatform = nil
	if o.ExternalOrderID != "" {
		extID, platform := o.ExternalOrderID, o.ExternalPlatform
		m.ExternalOrderID = &extID
		m.ExternalPlatform = &platform
	}
	return nil
}

// OrderItemModel is one line of an order
type OrderItemModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity           int             `gorm:"not null"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExternalLineItemID string          `gorm:"type:varchar(64)"`
	CreatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain InternalOrderItem
func (m *OrderItemModel) ToDomain() integration.InternalOrderItem {
	return integration.InternalOrderItem{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		ProductID:          m.ProductID,
		Quantity:           m.Quantity,
		UnitPrice:          m.UnitPrice,
		ExternalLineItemID: m.ExternalLineItemID,
	}
}

// OrderItemModelFromDomain creates a new persistence model from a domain InternalOrderItem
func OrderItemModelFromDomain(item integration.InternalOrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:                 item.ID,
		OrderID:            item.OrderID,
		ProductID:          item.ProductID,
		Quantity:           item.Quantity,
		UnitPrice:          item.UnitPrice,
		ExternalLineItemID: item.ExternalLineItemID,
	}
}

// ---------------------------------------------------------------------------
// Returns
// ---------------------------------------------------------------------------

// ReturnModel is a customer return
type ReturnModel struct {
	BaseModel
	ClientID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	OriginalOrderID *uuid.UUID        `gorm:"type:uuid;index"`
	Status          string            `gorm:"type:varchar(20);not null"`
	Items           []ReturnItemModel `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (ReturnModel) TableName() string {
	return "returns"
}

// ToDomain converts the persistence model to a domain Return
func (m *ReturnModel) ToDomain() *integration.Return {
	r := &integration.Return{
		ID:              m.ID,
		ClientID:        m.ClientID,
		OriginalOrderID: m.OriginalOrderID,
		Status:          m.Status,
		Items:           make([]integration.ReturnItem, len(m.Items)),
	}
	for i, item := range m.Items {
		r.Items[i] = integration.ReturnItem{
			ProductID:   item.ProductID,
			QtyReceived: item.QtyReceived,
			Disposition: item.Disposition,
		}
	}
	return r
}

// ReturnItemModel is one returned product
type ReturnItemModel struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primaryKey"`
	ReturnID    uuid.UUID                     `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID                     `gorm:"type:uuid;not null"`
	QtyReceived int                           `gorm:"not null"`
	Disposition integration.ReturnDisposition `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (ReturnItemModel) TableName() string {
	return "return_items"
}

// ---------------------------------------------------------------------------
// Inbound orders
// ---------------------------------------------------------------------------

// InboundOrderModel is a purchase order expected at the warehouse
type InboundOrderModel struct {
	BaseModel
	ClientID uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Status   integration.InboundStatus `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (InboundOrderModel) TableName() string {
	return "inbound_orders"
}

// InboundLineModel is one product line of an inbound order
type InboundLineModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	InboundOrderID uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"type:uuid;not null;index"`
	QtyExpected    int       `gorm:"not null"`
	QtyReceived    int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InboundLineModel) TableName() string {
	return "inbound_order_lines"
}
