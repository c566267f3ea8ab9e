package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
)

// MappingResolver selects the mappings a sync run acts on
type MappingResolver struct {
	mappings     integration.ProductMappingFinder
	integrations integration.IntegrationReader
}

// NewMappingResolver creates a resolver
func NewMappingResolver(mappings integration.ProductMappingFinder, integrations integration.IntegrationReader) *MappingResolver {
	return &MappingResolver{mappings: mappings, integrations: integrations}
}

// Resolution is the result of Resolve. Mappings that cannot be pushed are
// reported in Errors rather than failing the run.
type Resolution struct {
	Mappings []integration.MappedProduct
	Errors   []integration.SyncItemError
}

// Resolve returns the inventory-synced mappings of an integration joined to
// their products, limited to productIDs when non-empty
func (r *MappingResolver) Resolve(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) (*Resolution, error) {
	rows, err := r.mappings.FindSyncable(ctx, integrationID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}

	res := &Resolution{Mappings: make([]integration.MappedProduct, 0, len(rows))}
	for _, row := range rows {
		switch {
		case row.Product == nil:
			res.Errors = append(res.Errors, integration.SyncItemError{
				ItemID:  row.Mapping.ProductID.String(),
				Message: "product not found",
			})
		case !row.Mapping.HasInventoryItem():
			res.Errors = append(res.Errors, integration.SyncItemError{
				ItemID:  row.Product.SKU,
				Message: integration.ErrMappingMissingInventoryItem.Error(),
			})
		default:
			res.Mappings = append(res.Mappings, row)
		}
	}
	return res, nil
}

// IntegrationsForProducts returns the active integrations with automatic
// inventory sync that map any of productIDs
func (r *MappingResolver) IntegrationsForProducts(ctx context.Context, productIDs []uuid.UUID) ([]integration.Integration, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	ids, err := r.mappings.FindIntegrationIDsForProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find integrations for products: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	all, err := r.integrations.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}

	out := make([]integration.Integration, 0, len(all))
	for _, in := range all {
		if in.IsActive() && in.Settings.AutoSyncInventory {
			out = append(out, in)
		}
	}
	return out, nil
}
