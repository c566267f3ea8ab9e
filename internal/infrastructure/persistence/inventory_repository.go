package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInventoryReader aggregates stock_levels rows
type GormInventoryReader struct {
	db *gorm.DB
}

// NewGormInventoryReader creates a new GormInventoryReader
func NewGormInventoryReader(db *gorm.DB) *GormInventoryReader {
	return &GormInventoryReader{db: db}
}

// AggregateByProduct sums on-hand and reserved per product, across every
// location or only locationID when it is set
func (r *GormInventoryReader) AggregateByProduct(ctx context.Context, productIDs []uuid.UUID, locationID *uuid.UUID) (map[uuid.UUID]integration.InventorySnapshot, error) {
	out := make(map[uuid.UUID]integration.InventorySnapshot)
	if len(productIDs) == 0 {
		return out, nil
	}

	type aggregate struct {
		ProductID uuid.UUID
		OnHand    int
		Reserved  int
	}

	query := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Select("product_id, COALESCE(SUM(on_hand), 0) AS on_hand, COALESCE(SUM(reserved), 0) AS reserved").
		Where("product_id IN ?", productIDs)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}

	var rows []aggregate
	if err := query.Group("product_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = integration.InventorySnapshot{
			ProductID: row.ProductID,
			OnHand:    row.OnHand,
			Reserved:  row.Reserved,
		}
	}
	return out, nil
}

// Ensure GormInventoryReader implements InventoryReader
var _ integration.InventoryReader = (*GormInventoryReader)(nil)
