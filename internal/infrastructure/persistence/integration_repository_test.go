package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
)

func newTestIntegration(t *testing.T) *integration.Integration {
	t.Helper()
	in, err := integration.NewIntegration(uuid.New(), integration.PlatformShopify, "acme.myshopify.com", "sealed")
	require.NoError(t, err)
	return in
}

func TestGormIntegrationRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	in := newTestIntegration(t)
	in.Settings.InventoryBuffer = 3
	require.NoError(t, repo.Save(ctx, in))

	found, err := repo.FindByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ShopDomain, found.ShopDomain)
	assert.Equal(t, 3, found.Settings.InventoryBuffer)
	assert.Equal(t, integration.CurrentSettingsVersion, found.Settings.SchemaVersion)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)
}

func TestGormIntegrationRepository_FindActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	active := newTestIntegration(t)
	inactive := newTestIntegration(t)
	inactive.Disconnect()
	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, inactive))

	got, err := repo.FindActive(ctx, integration.PlatformShopify)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)

	both, err := repo.FindByIDs(ctx, []uuid.UUID{active.ID, inactive.ID})
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestGormIntegrationRepository_FieldUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	in := newTestIntegration(t)
	require.NoError(t, repo.Save(ctx, in))

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchInventorySync(ctx, in.ID, at))
	require.NoError(t, repo.RecordError(ctx, in.ID, at, "fulfillment rejected"))
	require.NoError(t, repo.UpdateSettings(ctx, in.ID, in.Settings.WithLocation("905")))

	found, err := repo.FindByID(ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastInventorySyncAt)
	assert.True(t, at.Equal(*found.LastInventorySyncAt))
	assert.Nil(t, found.LastOrderSyncAt)
	assert.Equal(t, "fulfillment rejected", found.LastErrorMessage)
	assert.Equal(t, "905", found.Settings.ShopifyLocationID)

	assert.ErrorIs(t, repo.TouchOrderSync(ctx, uuid.New(), at), integration.ErrIntegrationNotFound)

	bad := in.Settings
	bad.InventoryBuffer = -1
	assert.ErrorIs(t, repo.UpdateSettings(ctx, in.ID, bad), integration.ErrSettingsInvalid)
}

func TestGormIntegrationRepository_CorruptSettings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	in := newTestIntegration(t)
	require.NoError(t, repo.Save(ctx, in))
	require.NoError(t, db.Model(&models.IntegrationModel{}).Where("id = ?", in.ID).
		Update("settings", `{"schema_version": 9}`).Error)

	_, err := repo.FindByID(ctx, in.ID)
	assert.ErrorIs(t, err, integration.ErrSettingsUnsupportedVersion)
}

func TestGormIntegrationRepository_TouchOrderSync_SQL(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormIntegrationRepository(db)

	id := uuid.New()
	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "integrations" SET "last_order_sync_at"=$1,"updated_at"=$2 WHERE id = $3`)).
		WithArgs(at, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchOrderSync(context.Background(), id, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
