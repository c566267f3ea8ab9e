package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Integration DTOs
// ---------------------------------------------------------------------------

// IntegrationResponse represents an integration in API responses. The access
// token is never exposed.
type IntegrationResponse struct {
	ID                  uuid.UUID                     `json:"id"`
	ClientID            uuid.UUID                     `json:"client_id"`
	Platform            integration.Platform          `json:"platform"`
	ShopDomain          string                        `json:"shop_domain"`
	Status              integration.IntegrationStatus `json:"status"`
	HasCredentials      bool                          `json:"has_credentials"`
	Settings            integration.Settings          `json:"settings"`
	LastInventorySyncAt *time.Time                    `json:"last_inventory_sync_at,omitempty"`
	LastOrderSyncAt     *time.Time                    `json:"last_order_sync_at,omitempty"`
	LastErrorAt         *time.Time                    `json:"last_error_at,omitempty"`
	LastErrorMessage    string                        `json:"last_error_message,omitempty"`
	CreatedAt           time.Time                     `json:"created_at"`
	UpdatedAt           time.Time                     `json:"updated_at"`
}

// ToIntegrationResponse converts an integration to its response
func ToIntegrationResponse(in *integration.Integration) IntegrationResponse {
	return IntegrationResponse{
		ID:                  in.ID,
		ClientID:            in.ClientID,
		Platform:            in.Platform,
		ShopDomain:          in.ShopDomain,
		Status:              in.Status,
		HasCredentials:      in.HasCredentials(),
		Settings:            in.Settings,
		LastInventorySyncAt: in.LastInventorySyncAt,
		LastOrderSyncAt:     in.LastOrderSyncAt,
		LastErrorAt:         in.LastErrorAt,
		LastErrorMessage:    in.LastErrorMessage,
		CreatedAt:           in.CreatedAt,
		UpdatedAt:           in.UpdatedAt,
	}
}

// UpdateSettingsRequest replaces an integration's settings
type UpdateSettingsRequest struct {
	InventoryBuffer             int        `json:"inventory_buffer" binding:"gte=0"`
	AutoSyncInventory           bool       `json:"auto_sync_inventory"`
	AutoSyncOrders              bool       `json:"auto_sync_orders"`
	ShopifyLocationID           string     `json:"shopify_location_id" binding:"omitempty,numeric"`
	DefaultWarehouseLocationID  *uuid.UUID `json:"default_warehouse_location_id"`
	NotifyCustomerOnFulfillment bool       `json:"notify_customer_on_fulfillment"`
	ClearTokenOnDisconnect      bool       `json:"clear_token_on_disconnect"`
}

// ToSettings converts the request to domain settings
func (r UpdateSettingsRequest) ToSettings() integration.Settings {
	return integration.Settings{
		SchemaVersion:               integration.CurrentSettingsVersion,
		InventoryBuffer:             r.InventoryBuffer,
		AutoSyncInventory:           r.AutoSyncInventory,
		AutoSyncOrders:              r.AutoSyncOrders,
		ShopifyLocationID:           r.ShopifyLocationID,
		DefaultWarehouseLocationID:  r.DefaultWarehouseLocationID,
		NotifyCustomerOnFulfillment: r.NotifyCustomerOnFulfillment,
		ClearTokenOnDisconnect:      r.ClearTokenOnDisconnect,
	}
}

// ---------------------------------------------------------------------------
// Product Mapping DTOs
// ---------------------------------------------------------------------------

// ProductMappingResponse represents a product mapping in API responses
type ProductMappingResponse struct {
	ID                      uuid.UUID  `json:"id"`
	IntegrationID           uuid.UUID  `json:"integration_id"`
	ProductID               uuid.UUID  `json:"product_id"`
	SyncInventory           bool       `json:"sync_inventory"`
	SyncPrice               bool       `json:"sync_price"`
	ExternalSKU             string     `json:"external_sku,omitempty"`
	ExternalProductID       string     `json:"external_product_id,omitempty"`
	ExternalVariantID       string     `json:"external_variant_id"`
	ExternalInventoryItemID string     `json:"external_inventory_item_id,omitempty"`
	IncomingQty             int        `json:"incoming_qty"`
	LastSyncedAt            *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// ToProductMappingResponse converts a mapping to its response
func ToProductMappingResponse(m *integration.ProductMapping) ProductMappingResponse {
	return ProductMappingResponse{
		ID:                      m.ID,
		IntegrationID:           m.IntegrationID,
		ProductID:               m.ProductID,
		SyncInventory:           m.SyncInventory,
		SyncPrice:               m.SyncPrice,
		ExternalSKU:             m.ExternalSKU,
		ExternalProductID:       m.ExternalProductID,
		ExternalVariantID:       m.ExternalVariantID,
		ExternalInventoryItemID: m.ExternalInventoryItemID,
		IncomingQty:             m.IncomingQty,
		LastSyncedAt:            m.LastSyncedAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// ToProductMappingResponses converts a list of mappings
func ToProductMappingResponses(mappings []integration.ProductMapping) []ProductMappingResponse {
	out := make([]ProductMappingResponse, len(mappings))
	for i := range mappings {
		out[i] = ToProductMappingResponse(&mappings[i])
	}
	return out
}

// ExternalRefRequest identifies the platform side of a mapping
type ExternalRefRequest struct {
	SKU             string `json:"external_sku"`
	ProductID       string `json:"external_product_id"`
	VariantID       string `json:"external_variant_id" binding:"required"`
	InventoryItemID string `json:"external_inventory_item_id"`
}

// ToExternalRef converts the request to a domain reference
func (r ExternalRefRequest) ToExternalRef() integration.ExternalRef {
	return integration.ExternalRef{
		SKU:             r.SKU,
		ProductID:       r.ProductID,
		VariantID:       r.VariantID,
		InventoryItemID: r.InventoryItemID,
	}
}

// CreateProductMappingRequest represents a request to create a product mapping
type CreateProductMappingRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	ExternalRefRequest
}

// SetSyncFlagsRequest toggles inventory and price sync. Omitted flags are kept.
type SetSyncFlagsRequest struct {
	SyncInventory *bool `json:"sync_inventory"`
	SyncPrice     *bool `json:"sync_price"`
}

// ---------------------------------------------------------------------------
// Sync DTOs
// ---------------------------------------------------------------------------

// SyncLogResponse represents a sync log entry in API responses
type SyncLogResponse struct {
	ID             uuid.UUID                   `json:"id"`
	SyncType       integration.SyncType        `json:"sync_type"`
	Direction      integration.SyncDirection   `json:"direction"`
	Trigger        integration.SyncTrigger     `json:"trigger"`
	Outcome        integration.SyncOutcome     `json:"outcome"`
	ItemsProcessed int                         `json:"items_processed"`
	ItemsFailed    int                         `json:"items_failed"`
	Errors         []integration.SyncItemError `json:"errors,omitempty"`
	DurationMs     int64                       `json:"duration_ms"`
	Metadata       map[string]any              `json:"metadata,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// ToSyncLogResponses converts sync log entries
func ToSyncLogResponses(entries []integration.SyncLogEntry) []SyncLogResponse {
	out := make([]SyncLogResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		out[i] = SyncLogResponse{
			ID:             e.ID,
			SyncType:       e.SyncType,
			Direction:      e.Direction,
			Trigger:        e.Trigger,
			Outcome:        e.Outcome(),
			ItemsProcessed: e.ItemsProcessed,
			ItemsFailed:    e.ItemsFailed,
			Errors:         e.Errors,
			DurationMs:     e.Duration.Milliseconds(),
			Metadata:       e.Metadata,
			CreatedAt:      e.CreatedAt,
		}
	}
	return out
}

// SyncInventoryRequest limits a manual inventory sync to some products.
// Empty ProductIDs syncs every mapped product.
type SyncInventoryRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// PullOrdersRequest overrides the start of a manual order pull
type PullOrdersRequest struct {
	Since *time.Time `json:"since"`
}

// TriggerInventoryRequest reports changed products to the sync trigger
type TriggerInventoryRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" binding:"required,min=1"`
	Immediate  bool        `json:"immediate"`
}
