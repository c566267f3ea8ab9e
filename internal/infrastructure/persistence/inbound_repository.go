package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"gorm.io/gorm"
)

// GormInboundRepository reads inbound order lines
type GormInboundRepository struct {
	db *gorm.DB
}

// NewGormInboundRepository creates a new GormInboundRepository
func NewGormInboundRepository(db *gorm.DB) *GormInboundRepository {
	return &GormInboundRepository{db: db}
}

// FindLines returns lines of the client's inbound orders in the given statuses
func (r *GormInboundRepository) FindLines(ctx context.Context, clientID uuid.UUID, productIDs []uuid.UUID, statuses []integration.InboundStatus) ([]integration.InboundLine, error) {
	if len(productIDs) == 0 || len(statuses) == 0 {
		return []integration.InboundLine{}, nil
	}

	type lineRow struct {
		ProductID   uuid.UUID
		QtyExpected int
		QtyReceived int
	}
	var rows []lineRow
	if err := r.db.WithContext(ctx).
		Table("inbound_order_lines AS l").
		Select("l.product_id, l.qty_expected, l.qty_received").
		Joins("JOIN inbound_orders AS o ON o.id = l.inbound_order_id").
		Where("o.client_id = ? AND o.status IN ? AND l.product_id IN ?", clientID, statuses, productIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]integration.InboundLine, len(rows))
	for i, row := range rows {
		out[i] = integration.InboundLine{
			ProductID:   row.ProductID,
			QtyExpected: row.QtyExpected,
			QtyReceived: row.QtyReceived,
		}
	}
	return out, nil
}

// Ensure GormInboundRepository implements InboundRepository
var _ integration.InboundRepository = (*GormInboundRepository)(nil)
