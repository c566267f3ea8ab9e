package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// skuLookupChunk bounds the IN list of one SKU query
const skuLookupChunk = 500

// GormProductCatalog reads the products table
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// FindBySKU matches SKUs with LOWER() in SQL and re-keys the rows by
// integration.FoldKey, so the result agrees with in-memory comparisons
func (r *GormProductCatalog) FindBySKU(ctx context.Context, clientID uuid.UUID, skus []string) (map[string][]integration.ProductSnapshot, error) {
	out := make(map[string][]integration.ProductSnapshot)

	lowered := make([]string, 0, len(skus))
	seen := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		l := strings.ToLower(strings.TrimSpace(sku))
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		lowered = append(lowered, l)
	}

	for start := 0; start < len(lowered); start += skuLookupChunk {
		end := min(start+skuLookupChunk, len(lowered))
		var rows []models.ProductModel
		err := r.db.WithContext(ctx).
			Where("client_id = ? AND LOWER(sku) IN ?", clientID, lowered[start:end]).
			Order("created_at ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for i := range rows {
			key := integration.FoldKey(rows[i].SKU)
			out[key] = append(out[key], *rows[i].ToDomain())
		}
	}
	return out, nil
}

var _ integration.ProductCatalog = (*GormProductCatalog)(nil)
