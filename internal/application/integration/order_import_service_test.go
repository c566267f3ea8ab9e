package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

type importFixture struct {
	integrations *MockIntegrationRepository
	mappings     *MockProductMappingRepository
	orders       *MockOrderRepository
	gateway      *MockGateway
	notifier     *MockNotifier
	archive      *MockOrderArchive
	syncLogs     *MockSyncLogRepository
	service      *OrderImportService
}

func newImportFixture() *importFixture {
	f := &importFixture{
		integrations: new(MockIntegrationRepository),
		mappings:     new(MockProductMappingRepository),
		orders:       new(MockOrderRepository),
		gateway:      new(MockGateway),
		notifier:     new(MockNotifier),
		archive:      new(MockOrderArchive),
		syncLogs:     new(MockSyncLogRepository),
	}
	f.service = NewOrderImportService(
		f.integrations,
		f.mappings,
		f.orders,
		staticGatewayFactory{gateway: f.gateway},
		f.notifier,
		f.archive,
		newSyncLogger(f.syncLogs),
		testOptions(),
		zap.NewNop(),
	)
	return f
}

func shippableLine(id, variantID, sku, title string, qty int) integration.ExternalLineItem {
	return integration.ExternalLineItem{
		ID:                  id,
		VariantID:           variantID,
		SKU:                 sku,
		Title:               title,
		Quantity:            qty,
		FulfillableQuantity: qty,
		RequiresShipping:    true,
		Price:               decimal.NewFromInt(25),
	}
}

func sampleOrder() *integration.ExternalOrder {
	return &integration.ExternalOrder{
		ID:             "820982911946154508",
		Name:           "#1001",
		Email:          "jane@example.com",
		Note:           "Leave at the back door",
		ShippingMethod: "Standard",
		ShippingAddress: &integration.ShippingAddress{
			Name: "Jane Doe", Address1: "1 Main St", City: "Springfield", CountryCode: "US",
		},
		LineItems: []integration.ExternalLineItem{
			shippableLine("li-1", "var-1", "TEE-RED", "Tee", 2),
			shippableLine("li-2", "var-unknown", "MUG-01", "Mug", 1),
		},
		Raw: []byte(`{"id":820982911946154508}`),
	}
}

func (f *importFixture) expectMappings(in *integration.Integration, productID uuid.UUID) {
	f.mappings.On("FindByIntegration", mock.Anything, in.ID).Return([]integration.ProductMapping{
		{ID: uuid.New(), IntegrationID: in.ID, ProductID: productID, ExternalVariantID: "var-1", ExternalSKU: "TEE-RED"},
	}, nil)
}

func TestProcessExternalOrder_MappedAndUnmapped(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	productID := uuid.New()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, integration.PlatformShopify, order.ID).Return(false, nil)
	f.expectMappings(in, productID)
	f.orders.On("OrderNumberExists", mock.Anything, "SH-1001").Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*integration.InternalOrder")).Return(nil)
	f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(nil)
	f.archive.On("ArchiveOrder", mock.Anything, in.ID, order.ID, order.Raw).Return(nil)
	f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusImported, outcome.Status)
	assert.Equal(t, "SH-1001", outcome.OrderNumber)
	assert.Equal(t, 1, outcome.MappedItems)
	assert.Equal(t, 1, outcome.UnmappedItems)
	assert.Equal(t, "1 items could not be mapped: MUG-01 (Mug)", outcome.Warning)

	created := f.orders.Calls[2].Arguments.Get(1).(*integration.InternalOrder)
	assert.Equal(t, integration.OrderStatusPending, created.Status)
	assert.False(t, created.IsRush)
	assert.Equal(t, "Leave at the back door\n\n1 items could not be mapped: MUG-01 (Mug)", created.Notes)
	assert.Equal(t, "Jane Doe", created.ShipTo.Name)
	assert.Equal(t, order.ID, created.ExternalOrderID)
	assert.Equal(t, "#1001", created.ExternalOrderNumber)
	assert.Equal(t, in.ClientID, created.ClientID)
	require.Len(t, created.Items, 1)
	assert.Equal(t, productID, created.Items[0].ProductID)
	assert.Equal(t, 2, created.Items[0].Quantity)
	assert.Equal(t, "li-1", created.Items[0].ExternalLineItemID)

	f.archive.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestProcessExternalOrder_IsIdempotent(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, integration.PlatformShopify, order.ID).Return(true, nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusSkipped, outcome.Status)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "OrderImported", mock.Anything, mock.Anything)
}

func TestProcessExternalOrder_ConcurrentDuplicateIsSkipped(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, order.ID).Return(false, nil)
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, mock.Anything).Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(integration.ErrOrderAlreadyImported)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusSkipped, outcome.Status)
	f.orders.AssertNotCalled(t, "CreateItems", mock.Anything, mock.Anything)
}

func TestProcessExternalOrder_RacedOrderNumberFallsBack(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, order.ID).Return(false, nil)
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, "SH-1001").Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o *integration.InternalOrder) bool {
		return o.OrderNumber == "SH-1001"
	})).Return(integration.ErrOrderNumberTaken).Once()
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o *integration.InternalOrder) bool {
		return o.OrderNumber == order.FallbackOrderNumber()
	})).Return(nil).Once()
	f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(nil)
	f.archive.On("ArchiveOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusImported, outcome.Status)
	assert.Equal(t, order.FallbackOrderNumber(), outcome.OrderNumber)
	f.orders.AssertNumberOfCalls(t, "Create", 2)
}

func TestProcessExternalOrder_FallbackNumberAlsoTakenFails(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, order.ID).Return(false, nil)
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, "SH-1001").Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(integration.ErrOrderNumberTaken)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, integration.ErrOrderNumberTaken)
	f.orders.AssertNumberOfCalls(t, "Create", 2)
	f.orders.AssertNotCalled(t, "CreateItems", mock.Anything, mock.Anything)
}

func TestProcessExternalOrder_MatchesSKUCaseInsensitively(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	productID := uuid.New()
	order := sampleOrder()
	order.LineItems = []integration.ExternalLineItem{shippableLine("li-1", "var-other", "  tee-red ", "Tee", 1)}
	order.Raw = nil

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, order.ID).Return(false, nil)
	f.expectMappings(in, productID)
	f.orders.On("OrderNumberExists", mock.Anything, mock.Anything).Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("CreateItems", mock.Anything, mock.MatchedBy(func(items []integration.InternalOrderItem) bool {
		return len(items) == 1 && items[0].ProductID == productID
	})).Return(nil)
	f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.MappedItems)
	assert.Empty(t, outcome.Warning)
	f.orders.AssertExpectations(t)
	f.archive.AssertNotCalled(t, "ArchiveOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExternalOrder_RushDetection(t *testing.T) {
	tests := []struct {
		name           string
		tags           []string
		shippingMethod string
		want           bool
	}{
		{name: "rush tag", tags: []string{"VIP", "Rush"}, want: true},
		{name: "express shipping", shippingMethod: "UPS Express Saver", want: true},
		{name: "overnight shipping", shippingMethod: "FedEx Overnight", want: true},
		{name: "priority tag", tags: []string{"priority-customer"}, want: true},
		{name: "standard", tags: []string{"wholesale"}, shippingMethod: "Ground", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImportFixture()
			in := newActiveIntegration()
			order := sampleOrder()
			order.Tags = tt.tags
			order.ShippingMethod = tt.shippingMethod

			f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
			f.expectMappings(in, uuid.New())
			f.orders.On("OrderNumberExists", mock.Anything, mock.Anything).Return(false, nil)
			f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o *integration.InternalOrder) bool {
				return o.IsRush == tt.want
			})).Return(nil)
			f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(nil)
			f.archive.On("ArchiveOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(nil)

			_, err := f.service.ProcessExternalOrder(context.Background(), order, in)

			require.NoError(t, err)
			f.orders.AssertExpectations(t)
		})
	}
}

func TestProcessExternalOrder_FallbackOrderNumber(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, "SH-1001").Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(nil)
	f.archive.On("ArchiveOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, "SH-1001-154508", outcome.OrderNumber)
}

func TestProcessExternalOrder_ItemFailureIsPartialSuccess(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, mock.Anything).Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(errors.New("fk violation"))
	f.archive.On("ArchiveOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("s3 down"))
	f.notifier.On("OrderImported", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusImported, outcome.Status)
	assert.True(t, outcome.ItemsFailed)
}

func TestProcessExternalOrder_SkipsOrdersWithoutShippableLines(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()
	order := sampleOrder()
	for i := range order.LineItems {
		order.LineItems[i].FulfillableQuantity = 0
	}

	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	outcome, err := f.service.ProcessExternalOrder(context.Background(), order, in)

	require.NoError(t, err)
	assert.Equal(t, ImportStatusSkipped, outcome.Status)
	assert.Equal(t, "no shippable items", outcome.Reason)
}

func TestSyncShopifyOrders_AggregatesOutcomes(t *testing.T) {
	f := newImportFixture()
	f.service.opts.NotifyOnImport = false
	in := newActiveIntegration()
	last := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	in.LastOrderSyncAt = &last

	newOrder := sampleOrder()
	newOrder.Raw = nil
	seen := sampleOrder()
	seen.ID = "seen"
	broken := sampleOrder()
	broken.ID = "broken"

	f.integrations.On("FindByID", mock.Anything, in.ID).Return(in, nil)
	f.gateway.On("ListOpenOrders", mock.Anything, integration.OrderQuery{CreatedAtMin: last}).
		Return([]integration.ExternalOrder{*newOrder, *seen, *broken}, nil)
	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, newOrder.ID).Return(false, nil)
	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, "seen").Return(true, nil)
	f.orders.On("ExistsByExternalID", mock.Anything, mock.Anything, "broken").Return(false, errors.New("db timeout"))
	f.expectMappings(in, uuid.New())
	f.orders.On("OrderNumberExists", mock.Anything, mock.Anything).Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("CreateItems", mock.Anything, mock.Anything).Return(nil)
	f.integrations.On("TouchOrderSync", mock.Anything, in.ID, mock.Anything).Return(nil)

	result, err := f.service.SyncShopifyOrders(context.Background(), in.ID, nil, integration.SyncTriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	f.integrations.AssertExpectations(t)

	entries := f.syncLogs.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, integration.SyncTypeOrders, entries[0].SyncType)
	assert.Equal(t, integration.SyncDirectionInbound, entries[0].Direction)
	assert.Equal(t, 3, entries[0].ItemsProcessed)
	assert.Equal(t, 1, entries[0].ItemsFailed)
}

func TestSyncShopifyOrders_DefaultLookback(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()

	f.integrations.On("FindByID", mock.Anything, in.ID).Return(in, nil)
	f.gateway.On("ListOpenOrders", mock.Anything, mock.MatchedBy(func(q integration.OrderQuery) bool {
		age := time.Since(q.CreatedAtMin)
		return age >= 7*24*time.Hour && age < 7*24*time.Hour+time.Minute
	})).Return([]integration.ExternalOrder{}, nil)
	f.integrations.On("TouchOrderSync", mock.Anything, in.ID, mock.Anything).Return(nil)

	result, err := f.service.SyncShopifyOrders(context.Background(), in.ID, nil, integration.SyncTriggerManual)

	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	f.gateway.AssertExpectations(t)
}

func TestSyncShopifyOrders_ListFailureRecordsError(t *testing.T) {
	f := newImportFixture()
	in := newActiveIntegration()

	f.integrations.On("FindByID", mock.Anything, in.ID).Return(in, nil)
	f.gateway.On("ListOpenOrders", mock.Anything, mock.Anything).Return(nil, errors.New("401 unauthorized"))
	f.integrations.On("RecordError", mock.Anything, in.ID, mock.Anything, "401 unauthorized").Return(nil)

	_, err := f.service.SyncShopifyOrders(context.Background(), in.ID, nil, integration.SyncTriggerManual)

	require.Error(t, err)
	f.integrations.AssertExpectations(t)
	f.integrations.AssertNotCalled(t, "TouchOrderSync", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncAllOrders_OnlyAutoSyncIntegrations(t *testing.T) {
	f := newImportFixture()
	enabled := newActiveIntegration()
	disabled := newActiveIntegration()
	disabled.Settings.AutoSyncOrders = false

	f.integrations.On("FindActive", mock.Anything, integration.PlatformShopify).Return([]integration.Integration{*enabled, *disabled}, nil)
	f.integrations.On("FindByID", mock.Anything, enabled.ID).Return(enabled, nil)
	f.gateway.On("ListOpenOrders", mock.Anything, mock.Anything).Return([]integration.ExternalOrder{}, nil)
	f.integrations.On("TouchOrderSync", mock.Anything, enabled.ID, mock.Anything).Return(nil)

	require.NoError(t, f.service.SyncAllOrders(context.Background()))
	f.integrations.AssertNotCalled(t, "FindByID", mock.Anything, disabled.ID)
}
