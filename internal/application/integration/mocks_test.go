package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.Integration, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindActive(ctx context.Context, platform integration.Platform) ([]integration.Integration, error) {
	args := m.Called(ctx, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) Save(ctx context.Context, in *integration.Integration) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockIntegrationRepository) UpdateSettings(ctx context.Context, id uuid.UUID, settings integration.Settings) error {
	return m.Called(ctx, id, settings).Error(0)
}

func (m *MockIntegrationRepository) TouchInventorySync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockIntegrationRepository) TouchOrderSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockIntegrationRepository) RecordError(ctx context.Context, id uuid.UUID, at time.Time, message string) error {
	return m.Called(ctx, id, at, message).Error(0)
}

type MockProductMappingRepository struct {
	mock.Mock
}

func (m *MockProductMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ProductMapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (*integration.ProductMapping, error) {
	args := m.Called(ctx, integrationID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByIntegrationAndProducts(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]integration.ProductMapping, error) {
	args := m.Called(ctx, integrationID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]integration.ProductMapping, error) {
	args := m.Called(ctx, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	args := m.Called(ctx, integrationID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.ProductMapping), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductMappingRepository) ExistsByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, integrationID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductMappingRepository) FindSyncable(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]integration.MappedProduct, error) {
	args := m.Called(ctx, integrationID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.MappedProduct), args.Error(1)
}

func (m *MockProductMappingRepository) FindIntegrationIDsForProducts(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockProductMappingRepository) Save(ctx context.Context, mapping *integration.ProductMapping) error {
	return m.Called(ctx, mapping).Error(0)
}

func (m *MockProductMappingRepository) MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

func (m *MockProductMappingRepository) UpdateIncomingQty(ctx context.Context, quantities map[uuid.UUID]int) error {
	return m.Called(ctx, quantities).Error(0)
}

type MockInventoryReader struct {
	mock.Mock
}

func (m *MockInventoryReader) AggregateByProduct(ctx context.Context, productIDs []uuid.UUID, locationID *uuid.UUID) (map[uuid.UUID]integration.InventorySnapshot, error) {
	args := m.Called(ctx, productIDs, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]integration.InventorySnapshot), args.Error(1)
}

type MockProductCatalog struct {
	mock.Mock
}

func (m *MockProductCatalog) FindBySKU(ctx context.Context, clientID uuid.UUID, skus []string) (map[string][]integration.ProductSnapshot, error) {
	args := m.Called(ctx, clientID, skus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]integration.ProductSnapshot), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.InternalOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.InternalOrder), args.Error(1)
}

func (m *MockOrderRepository) ExistsByExternalID(ctx context.Context, platform integration.Platform, externalOrderID string) (bool, error) {
	args := m.Called(ctx, platform, externalOrderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	args := m.Called(ctx, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *integration.InternalOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) CreateItems(ctx context.Context, items []integration.InternalOrderItem) error {
	return m.Called(ctx, items).Error(0)
}

type MockReturnRepository struct {
	mock.Mock
}

func (m *MockReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Return, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Return), args.Error(1)
}

type MockInboundRepository struct {
	mock.Mock
}

func (m *MockInboundRepository) FindLines(ctx context.Context, clientID uuid.UUID, productIDs []uuid.UUID, statuses []integration.InboundStatus) ([]integration.InboundLine, error) {
	args := m.Called(ctx, clientID, productIDs, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.InboundLine), args.Error(1)
}

type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Create(ctx context.Context, entry *integration.SyncLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockSyncLogRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	args := m.Called(ctx, integrationID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.SyncLogEntry), args.Get(1).(int64), args.Error(2)
}

// entries returns every entry passed to Create
func (m *MockSyncLogRepository) entries() []*integration.SyncLogEntry {
	var out []*integration.SyncLogEntry
	for _, call := range m.Calls {
		if call.Method == "Create" {
			out = append(out, call.Arguments.Get(1).(*integration.SyncLogEntry))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PrimaryLocationID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SetInventoryQuantities(ctx context.Context, reason string, quantities []integration.InventoryQuantity) ([]integration.PlatformUserError, error) {
	args := m.Called(ctx, reason, quantities)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformUserError), args.Error(1)
}

func (m *MockGateway) SetInventoryLevel(ctx context.Context, quantity integration.InventoryQuantity) error {
	return m.Called(ctx, quantity).Error(0)
}

func (m *MockGateway) UpdateVariantPrice(ctx context.Context, variantID string, price decimal.Decimal) error {
	return m.Called(ctx, variantID, price).Error(0)
}

func (m *MockGateway) ListOpenOrders(ctx context.Context, query integration.OrderQuery) ([]integration.ExternalOrder, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ExternalOrder), args.Error(1)
}

func (m *MockGateway) GetOrder(ctx context.Context, orderID string) (*integration.ExternalOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalOrder), args.Error(1)
}

func (m *MockGateway) ListFulfillmentOrders(ctx context.Context, orderID string) ([]integration.FulfillmentOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.FulfillmentOrder), args.Error(1)
}

func (m *MockGateway) CreateFulfillment(ctx context.Context, request integration.FulfillmentRequest) (string, error) {
	args := m.Called(ctx, request)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CalculateRefund(ctx context.Context, orderID string, lines []integration.RefundLine) (json.RawMessage, error) {
	args := m.Called(ctx, orderID, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, orderID string, calculated json.RawMessage) (string, error) {
	args := m.Called(ctx, orderID, calculated)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SetProductMetafield(ctx context.Context, productID string, metafield integration.Metafield) error {
	return m.Called(ctx, productID, metafield).Error(0)
}

// staticGatewayFactory hands out one gateway for every integration
type staticGatewayFactory struct {
	gateway integration.PlatformGateway
	err     error
}

func (f staticGatewayFactory) ForIntegration(context.Context, *integration.Integration) (integration.PlatformGateway, error) {
	return f.gateway, f.err
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderImported(ctx context.Context, order *integration.InternalOrder) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockNotifier) FulfillmentSynced(ctx context.Context, orderID uuid.UUID, trackingNumber string) error {
	return m.Called(ctx, orderID, trackingNumber).Error(0)
}

type MockOrderArchive struct {
	mock.Mock
}

func (m *MockOrderArchive) ArchiveOrder(ctx context.Context, integrationID uuid.UUID, externalOrderID string, payload []byte) error {
	return m.Called(ctx, integrationID, externalOrderID, payload).Error(0)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// testOptions disables every delay
func testOptions() SyncOptions {
	opts := DefaultSyncOptions()
	opts.FallbackDelay = 0
	opts.PriceDelay = 0
	opts.MetafieldDelay = 0
	return opts
}

func newActiveIntegration() *integration.Integration {
	in, err := integration.NewIntegration(uuid.New(), integration.PlatformShopify, "acme.myshopify.com", "sealed-token")
	if err != nil {
		panic(err)
	}
	in.Settings.ShopifyLocationID = "555"
	return in
}

func newSyncLogger(repo *MockSyncLogRepository) *SyncLogger {
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	return NewSyncLogger(repo, zap.NewNop())
}

func newMappedProduct(integrationID uuid.UUID, sku string) integration.MappedProduct {
	productID := uuid.New()
	return integration.MappedProduct{
		Mapping: integration.ProductMapping{
			ID:                      uuid.New(),
			IntegrationID:           integrationID,
			ProductID:               productID,
			SyncInventory:           true,
			ExternalSKU:             sku,
			ExternalProductID:       "prod-" + sku,
			ExternalVariantID:       "var-" + sku,
			ExternalInventoryItemID: "inv-" + sku,
		},
		Product: &integration.ProductSnapshot{
			ID:    productID,
			SKU:   sku,
			Name:  "Product " + sku,
			Price: decimal.NewFromInt(10),
		},
	}
}
