package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
)

func TestGormInventoryReader_AggregateByProduct(t *testing.T) {
	db := setupTestDB(t)
	reader := NewGormInventoryReader(db)
	ctx := context.Background()

	clientID := uuid.New()
	a := seedProduct(t, db, clientID, "A", "1")
	b := seedProduct(t, db, clientID, "B", "1")
	unstocked := seedProduct(t, db, clientID, "C", "1")
	shelf, overflow := uuid.New(), uuid.New()
	seedStock(t, db, a, shelf, 10, 2)
	seedStock(t, db, a, overflow, 5, 1)
	seedStock(t, db, b, shelf, 3, 0)

	t.Run("all locations", func(t *testing.T) {
		got, err := reader.AggregateByProduct(ctx, []uuid.UUID{a, b, unstocked}, nil)
		require.NoError(t, err)
		assert.Equal(t, integration.InventorySnapshot{ProductID: a, OnHand: 15, Reserved: 3}, got[a])
		assert.Equal(t, 3, got[b].OnHand)
		_, ok := got[unstocked]
		assert.False(t, ok)
	})

	t.Run("one location", func(t *testing.T) {
		got, err := reader.AggregateByProduct(ctx, []uuid.UUID{a}, &overflow)
		require.NoError(t, err)
		assert.Equal(t, 5, got[a].OnHand)
		assert.Equal(t, 1, got[a].Reserved)
	})
}

func TestGormOrderRepository_CreateAndDedup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	integrationID := uuid.New()
	order := &integration.InternalOrder{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		OrderNumber:      "SH-1001",
		Status:           integration.OrderStatusPending,
		ShipTo:           integration.ShippingAddress{Name: "Ada", City: "Leeds", CountryCode: "GB"},
		ExternalOrderID:  "450789469",
		ExternalPlatform: integration.PlatformShopify,
		IntegrationID:    &integrationID,
	}
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.CreateItems(ctx, []integration.InternalOrderItem{{
		ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Quantity: 2,
		UnitPrice: decimal.RequireFromString("12.50"), ExternalLineItemID: "466157049",
	}}))

	exists, err := repo.ExistsByExternalID(ctx, integration.PlatformShopify, "450789469")
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := repo.OrderNumberExists(ctx, "SH-1001")
	require.NoError(t, err)
	assert.True(t, taken)

	dup := *order
	dup.ID = uuid.New()
	dup.OrderNumber = "SH-1001-469"
	assert.ErrorIs(t, repo.Create(ctx, &dup), integration.ErrOrderAlreadyImported)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leeds", found.ShipTo.City)
	assert.True(t, found.IsLinkedTo(integration.PlatformShopify))
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrOrderNotFound)
}

func TestGormOrderRepository_OrderNumberCollisionIsNotADuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	storeA := &integration.InternalOrder{
		ID: uuid.New(), ClientID: uuid.New(), OrderNumber: "SH-1001", Status: integration.OrderStatusPending,
		ExternalOrderID: "111", ExternalPlatform: integration.PlatformShopify,
	}
	require.NoError(t, repo.Create(ctx, storeA))

	storeB := &integration.InternalOrder{
		ID: uuid.New(), ClientID: uuid.New(), OrderNumber: "SH-1001", Status: integration.OrderStatusPending,
		ExternalOrderID: "222", ExternalPlatform: integration.PlatformShopify,
	}
	err := repo.Create(ctx, storeB)
	assert.ErrorIs(t, err, integration.ErrOrderNumberTaken)
	assert.NotErrorIs(t, err, integration.ErrOrderAlreadyImported)

	storeB.OrderNumber = "SH-1001-222"
	require.NoError(t, repo.Create(ctx, storeB))
	exists, err := repo.ExistsByExternalID(ctx, integration.PlatformShopify, "222")
	require.NoError(t, err)
	assert.True(t, exists)

	manual := &integration.InternalOrder{
		ID: uuid.New(), ClientID: uuid.New(), OrderNumber: "SH-1001", Status: integration.OrderStatusPending,
	}
	assert.ErrorIs(t, repo.Create(ctx, manual), integration.ErrOrderNumberTaken)
}

func TestGormOrderRepository_ManualOrdersDoNotCollide(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	for _, number := range []string{"M-1", "M-2"} {
		require.NoError(t, repo.Create(ctx, &integration.InternalOrder{
			ID: uuid.New(), ClientID: uuid.New(), OrderNumber: number, Status: integration.OrderStatusPending,
		}))
	}
}

func TestGormReturnRepository_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormReturnRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	ret := &models.ReturnModel{ClientID: uuid.New(), OriginalOrderID: &orderID, Status: "completed"}
	ret.ID = uuid.New()
	ret.CreatedAt, ret.UpdatedAt = time.Now(), time.Now()
	require.NoError(t, db.Omit("Items").Create(ret).Error)
	require.NoError(t, db.Create(&models.ReturnItemModel{
		ID: uuid.New(), ReturnID: ret.ID, ProductID: uuid.New(), QtyReceived: 1,
		Disposition: integration.ReturnDispositionRestock,
	}).Error)

	found, err := repo.FindByID(ctx, ret.ID)
	require.NoError(t, err)
	require.NotNil(t, found.OriginalOrderID)
	assert.Equal(t, orderID, *found.OriginalOrderID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, integration.ReturnDispositionRestock, found.Items[0].Disposition)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrReturnNotFound)
}

func TestGormInboundRepository_FindLines(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInboundRepository(db)
	ctx := context.Background()

	clientID, product := uuid.New(), uuid.New()
	addInbound := func(client uuid.UUID, status integration.InboundStatus, expected, received int) {
		o := &models.InboundOrderModel{ClientID: client, Status: status}
		o.ID = uuid.New()
		o.CreatedAt, o.UpdatedAt = time.Now(), time.Now()
		require.NoError(t, db.Create(o).Error)
		require.NoError(t, db.Create(&models.InboundLineModel{
			ID: uuid.New(), InboundOrderID: o.ID, ProductID: product, QtyExpected: expected, QtyReceived: received,
		}).Error)
	}
	addInbound(clientID, integration.InboundStatusOrdered, 10, 0)
	addInbound(clientID, integration.InboundStatusArrived, 5, 2)
	addInbound(clientID, integration.InboundStatusReceived, 8, 8)
	addInbound(uuid.New(), integration.InboundStatusOrdered, 99, 0)

	lines, err := repo.FindLines(ctx, clientID, []uuid.UUID{product}, integration.OpenInboundStatuses())
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, 13, integration.SumIncoming(lines)[product])
}

func TestGormSyncLogRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSyncLogRepository(db)
	ctx := context.Background()

	integrationID := uuid.New()
	for i := 0; i < 3; i++ {
		e := integration.NewSyncLogEntry(integrationID, integration.SyncTypeInventory, integration.SyncDirectionOutbound, integration.SyncTriggerEvent)
		e.ItemsProcessed = 4
		e.ItemsFailed = 1
		e.Errors = []integration.SyncItemError{{ItemID: "SKU-1", Message: "not stocked at location"}}
		e.Duration = 1500 * time.Millisecond
		e.Metadata["chunks"] = 1
		e.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, e))
	}
	price := integration.NewSyncLogEntry(integrationID, integration.SyncTypePrice, integration.SyncDirectionOutbound, integration.SyncTriggerEvent)
	require.NoError(t, repo.Create(ctx, price))

	all, total, err := repo.FindByIntegration(ctx, integrationID, integration.SyncLogFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, all, 4)

	inv, total, err := repo.FindByIntegration(ctx, integrationID, integration.SyncLogFilter{
		SyncType: integration.SyncTypeInventory, Page: 1, PageSize: 2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, inv, 2)
	assert.True(t, inv[0].CreatedAt.After(inv[1].CreatedAt))
	assert.Equal(t, 1500*time.Millisecond, inv[0].Duration)
	require.Len(t, inv[0].Errors, 1)
	assert.Equal(t, "SKU-1", inv[0].Errors[0].ItemID)
	assert.Equal(t, integration.SyncOutcomePartial, inv[0].Outcome())
}
