package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links one internal product to one external variant and
// inventory item within one integration. External identifiers are fixed once
// matched and only change through Remap.
type ProductMapping struct {
	// ID is the unique identifier of this mapping
	ID uuid.UUID
	// IntegrationID is the owning integration
	IntegrationID uuid.UUID
	// ProductID is the internal product
	ProductID uuid.UUID
	// SyncInventory enables inventory pushes for this product
	SyncInventory bool
	// SyncPrice enables price pushes for this product
	SyncPrice bool
	// ExternalSKU is the SKU on the platform variant
	ExternalSKU string
	// ExternalProductID is the platform product owning the variant
	ExternalProductID string
	// ExternalVariantID is the platform variant
	ExternalVariantID string
	// ExternalInventoryItemID is the platform inventory item quantities are set on
	ExternalInventoryItemID string
	// IncomingQty is the projected in-transit quantity
	IncomingQty int
	// LastSyncedAt is when inventory was last pushed successfully
	LastSyncedAt *time.Time
	// CreatedAt is when this mapping was created
	CreatedAt time.Time
	// UpdatedAt is when this mapping was last updated
	UpdatedAt time.Time
}

// ExternalRef identifies the platform side of a mapping
type ExternalRef struct {
	SKU             string
	ProductID       string
	VariantID       string
	InventoryItemID string
}

// NewProductMapping creates a mapping with inventory sync enabled
func NewProductMapping(integrationID, productID uuid.UUID, ref ExternalRef) (*ProductMapping, error) {
	if integrationID == uuid.Nil {
		return nil, ErrMappingInvalidIntegrationID
	}
	if productID == uuid.Nil {
		return nil, ErrMappingInvalidProductID
	}
	if strings.TrimSpace(ref.VariantID) == "" {
		return nil, ErrMappingMissingVariant
	}

	now := time.Now()
	m := &ProductMapping{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		ProductID:     productID,
		SyncInventory: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.applyRef(ref)
	return m, nil
}

// Remap replaces the external identifiers. This is the only way to correct a
// mapping that was matched to the wrong variant.
func (m *ProductMapping) Remap(ref ExternalRef) error {
	if strings.TrimSpace(ref.VariantID) == "" {
		return ErrMappingMissingVariant
	}
	m.applyRef(ref)
	m.LastSyncedAt = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (m *ProductMapping) applyRef(ref ExternalRef) {
	m.ExternalSKU = strings.TrimSpace(ref.SKU)
	m.ExternalProductID = strings.TrimSpace(ref.ProductID)
	m.ExternalVariantID = strings.TrimSpace(ref.VariantID)
	m.ExternalInventoryItemID = strings.TrimSpace(ref.InventoryItemID)
}

// HasInventoryItem returns true if quantities can be pushed for this mapping
func (m *ProductMapping) HasInventoryItem() bool {
	return m.ExternalInventoryItemID != ""
}

// SetSyncFlags enables or disables inventory and price sync
func (m *ProductMapping) SetSyncFlags(inventory, price bool) {
	m.SyncInventory = inventory
	m.SyncPrice = price
	m.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// ProductSnapshot
// ---------------------------------------------------------------------------

// ProductSnapshot is the read-only view of an internal product used by sync
type ProductSnapshot struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	SKU      string
	Name     string
	Price    decimal.Decimal
}

// ProductCatalog looks up a client's internal products
type ProductCatalog interface {
	// FindBySKU returns the products whose SKU folds to one of skus, keyed
	// by FoldKey. A key shared by several products maps to all of them.
	FindBySKU(ctx context.Context, clientID uuid.UUID, skus []string) (map[string][]ProductSnapshot, error)
}

// MappedProduct is a sync-eligible mapping joined to its product. Product is
// nil when the product row is missing.
type MappedProduct struct {
	Mapping ProductMapping
	Product *ProductSnapshot
}

// ProductMappingFilter filters mapping listings
type ProductMappingFilter struct {
	// Search matches the external SKU, case-insensitive
	Search        string
	SyncInventory *bool
	SyncPrice     *bool
	SortBy        string
	SortOrder     string
	Page          int
	PageSize      int
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// ProductMappingReader defines the interface for reading product mappings
type ProductMappingReader interface {
	// FindByID finds a mapping by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ProductMapping, error)
	// FindByIntegrationAndProduct finds the mapping of one product
	FindByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (*ProductMapping, error)
	// FindByIntegrationAndProducts finds mappings of several products
	FindByIntegrationAndProducts(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]ProductMapping, error)
	// FindByIntegration lists every mapping of an integration
	FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]ProductMapping, error)
	// ListByIntegration lists mappings of an integration page by page with the total count
	ListByIntegration(ctx context.Context, integrationID uuid.UUID, filter ProductMappingFilter) ([]ProductMapping, int64, error)
	// ExistsByIntegrationAndProduct checks the (integration, product) uniqueness key
	ExistsByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (bool, error)
}

// ProductMappingFinder answers the sync-specific queries
type ProductMappingFinder interface {
	// FindSyncable returns sync_inventory mappings joined to their products,
	// optionally limited to productIDs
	FindSyncable(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]MappedProduct, error)
	// FindIntegrationIDsForProducts returns integrations mapping any of the products
	FindIntegrationIDsForProducts(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error)
}

// ProductMappingWriter defines the interface for persisting product mappings
type ProductMappingWriter interface {
	// Save creates or updates a mapping
	Save(ctx context.Context, mapping *ProductMapping) error
	// MarkSynced sets last_synced_at on the given mappings
	MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) error
	// UpdateIncomingQty writes incoming_qty per mapping ID
	UpdateIncomingQty(ctx context.Context, quantities map[uuid.UUID]int) error
}

// ProductMappingRepository defines the full interface for product mapping persistence
type ProductMappingRepository interface {
	ProductMappingReader
	ProductMappingFinder
	ProductMappingWriter
}
