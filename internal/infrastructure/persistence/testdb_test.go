package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory sqlite database with every model migrated.
// One connection keeps the in-memory database alive across statements.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, clientID uuid.UUID, sku, price string) uuid.UUID {
	t.Helper()
	p := &models.ProductModel{
		ClientID: clientID,
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.RequireFromString(price),
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	require.NoError(t, db.Create(p).Error)
	return p.ID
}

func seedStock(t *testing.T, db *gorm.DB, productID, locationID uuid.UUID, onHand, reserved int) {
	t.Helper()
	s := &models.StockLevelModel{ProductID: productID, LocationID: locationID, OnHand: onHand, Reserved: reserved}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	require.NoError(t, db.Create(s).Error)
}
