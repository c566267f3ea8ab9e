package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// ProductMappingService manages the product mappings of an integration
type ProductMappingService struct {
	mappingRepo     integration.ProductMappingRepository
	integrationRepo integration.IntegrationReader
	logger          *zap.Logger
}

// NewProductMappingService creates a new ProductMappingService
func NewProductMappingService(mappingRepo integration.ProductMappingRepository, integrationRepo integration.IntegrationReader, logger *zap.Logger) *ProductMappingService {
	return &ProductMappingService{
		mappingRepo:     mappingRepo,
		integrationRepo: integrationRepo,
		logger:          logger,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// CreateMapping maps a product to a platform variant. A product can be mapped
// at most once per integration.
func (s *ProductMappingService) CreateMapping(ctx context.Context, integrationID, productID uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error) {
	if _, err := s.integrationRepo.FindByID(ctx, integrationID); err != nil {
		return nil, err
	}

	exists, err := s.mappingRepo.ExistsByIntegrationAndProduct(ctx, integrationID, productID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, integration.ErrMappingAlreadyExists
	}

	mapping, err := integration.NewProductMapping(integrationID, productID, ref)
	if err != nil {
		return nil, err
	}
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("product mapping created",
		zap.String("integration_id", integrationID.String()),
		zap.String("product_id", productID.String()),
		zap.String("variant_id", mapping.ExternalVariantID),
	)
	return mapping, nil
}

// GetMapping retrieves a mapping of the integration by ID
func (s *ProductMappingService) GetMapping(ctx context.Context, integrationID, id uuid.UUID) (*integration.ProductMapping, error) {
	mapping, err := s.mappingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mapping.IntegrationID != integrationID {
		return nil, integration.ErrMappingNotFound
	}
	return mapping, nil
}

// ListMappings lists mappings with filtering
func (s *ProductMappingService) ListMappings(ctx context.Context, integrationID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.mappingRepo.ListByIntegration(ctx, integrationID, filter)
}

// ---------------------------------------------------------------------------
// Mapping changes
// ---------------------------------------------------------------------------

// Remap points an existing mapping at different platform identifiers
func (s *ProductMappingService) Remap(ctx context.Context, integrationID, id uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error) {
	mapping, err := s.GetMapping(ctx, integrationID, id)
	if err != nil {
		return nil, err
	}

	previous := mapping.ExternalVariantID
	if err := mapping.Remap(ref); err != nil {
		return nil, err
	}
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("product mapping remapped",
		zap.String("mapping_id", id.String()),
		zap.String("previous_variant_id", previous),
		zap.String("variant_id", mapping.ExternalVariantID),
	)
	return mapping, nil
}

// SetSyncFlags enables or disables inventory and price sync for a mapping.
// A nil flag keeps its current value.
func (s *ProductMappingService) SetSyncFlags(ctx context.Context, integrationID, id uuid.UUID, inventory, price *bool) (*integration.ProductMapping, error) {
	mapping, err := s.GetMapping(ctx, integrationID, id)
	if err != nil {
		return nil, err
	}

	syncInventory, syncPrice := mapping.SyncInventory, mapping.SyncPrice
	if inventory != nil {
		syncInventory = *inventory
	}
	if price != nil {
		syncPrice = *price
	}
	mapping.SetSyncFlags(syncInventory, syncPrice)

	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}
