package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

func newTestMappingService() (*ProductMappingService, *MockProductMappingRepository, *MockIntegrationRepository) {
	mappings := new(MockProductMappingRepository)
	integrations := new(MockIntegrationRepository)
	return NewProductMappingService(mappings, integrations, zap.NewNop()), mappings, integrations
}

func TestProductMappingService_CreateMapping(t *testing.T) {
	ctx := context.Background()
	in := newActiveIntegration()
	productID := uuid.New()
	ref := integration.ExternalRef{SKU: "TEE-RED", ProductID: "632910392", VariantID: "808950810", InventoryItemID: "39072856"}

	t.Run("success", func(t *testing.T) {
		service, mappings, integrations := newTestMappingService()
		integrations.On("FindByID", ctx, in.ID).Return(in, nil)
		mappings.On("ExistsByIntegrationAndProduct", ctx, in.ID, productID).Return(false, nil)
		mappings.On("Save", ctx, mock.AnythingOfType("*integration.ProductMapping")).Return(nil)

		mapping, err := service.CreateMapping(ctx, in.ID, productID, ref)

		require.NoError(t, err)
		assert.Equal(t, "808950810", mapping.ExternalVariantID)
		assert.True(t, mapping.SyncInventory)
		assert.False(t, mapping.SyncPrice)
		mappings.AssertExpectations(t)
	})

	t.Run("already mapped", func(t *testing.T) {
		service, mappings, integrations := newTestMappingService()
		integrations.On("FindByID", ctx, in.ID).Return(in, nil)
		mappings.On("ExistsByIntegrationAndProduct", ctx, in.ID, productID).Return(true, nil)

		_, err := service.CreateMapping(ctx, in.ID, productID, ref)

		assert.ErrorIs(t, err, integration.ErrMappingAlreadyExists)
		mappings.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unknown integration", func(t *testing.T) {
		service, mappings, integrations := newTestMappingService()
		integrations.On("FindByID", ctx, in.ID).Return(nil, integration.ErrIntegrationNotFound)

		_, err := service.CreateMapping(ctx, in.ID, productID, ref)

		assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)
		mappings.AssertNotCalled(t, "ExistsByIntegrationAndProduct", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing variant", func(t *testing.T) {
		service, mappings, integrations := newTestMappingService()
		integrations.On("FindByID", ctx, in.ID).Return(in, nil)
		mappings.On("ExistsByIntegrationAndProduct", ctx, in.ID, productID).Return(false, nil)

		_, err := service.CreateMapping(ctx, in.ID, productID, integration.ExternalRef{SKU: "TEE-RED"})

		assert.ErrorIs(t, err, integration.ErrMappingMissingVariant)
	})
}

func TestProductMappingService_GetMapping_OtherIntegration(t *testing.T) {
	ctx := context.Background()
	service, mappings, _ := newTestMappingService()
	mapping := &integration.ProductMapping{ID: uuid.New(), IntegrationID: uuid.New()}
	mappings.On("FindByID", ctx, mapping.ID).Return(mapping, nil)

	_, err := service.GetMapping(ctx, uuid.New(), mapping.ID)

	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
}

func TestProductMappingService_Remap(t *testing.T) {
	ctx := context.Background()
	service, mappings, _ := newTestMappingService()
	integrationID := uuid.New()
	mapping, err := integration.NewProductMapping(integrationID, uuid.New(), integration.ExternalRef{VariantID: "old", InventoryItemID: "inv-old"})
	require.NoError(t, err)

	mappings.On("FindByID", ctx, mapping.ID).Return(mapping, nil)
	mappings.On("Save", ctx, mapping).Return(nil)

	updated, err := service.Remap(ctx, integrationID, mapping.ID, integration.ExternalRef{VariantID: "new", InventoryItemID: "inv-new"})

	require.NoError(t, err)
	assert.Equal(t, "new", updated.ExternalVariantID)
	assert.Equal(t, "inv-new", updated.ExternalInventoryItemID)
	assert.Nil(t, updated.LastSyncedAt)
}

func TestProductMappingService_SetSyncFlags_KeepsOmittedFlags(t *testing.T) {
	ctx := context.Background()
	service, mappings, _ := newTestMappingService()
	integrationID := uuid.New()
	mapping, err := integration.NewProductMapping(integrationID, uuid.New(), integration.ExternalRef{VariantID: "v"})
	require.NoError(t, err)

	mappings.On("FindByID", ctx, mapping.ID).Return(mapping, nil)
	mappings.On("Save", ctx, mapping).Return(nil)

	enable := true
	updated, err := service.SetSyncFlags(ctx, integrationID, mapping.ID, nil, &enable)

	require.NoError(t, err)
	assert.True(t, updated.SyncInventory)
	assert.True(t, updated.SyncPrice)
}

func TestProductMappingService_ListMappings_DefaultsPaging(t *testing.T) {
	ctx := context.Background()
	service, mappings, _ := newTestMappingService()
	integrationID := uuid.New()

	mappings.On("ListByIntegration", ctx, integrationID, integration.ProductMappingFilter{Page: 1, PageSize: 20}).
		Return([]integration.ProductMapping{}, int64(0), nil)

	_, total, err := service.ListMappings(ctx, integrationID, integration.ProductMappingFilter{})

	require.NoError(t, err)
	assert.Zero(t, total)
	mappings.AssertExpectations(t)
}
