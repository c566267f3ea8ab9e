package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductMappingRepository implements ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// ---------------------------------------------------------------------------
// ProductMappingReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a mapping by ID
func (r *GormProductMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntegrationAndProduct finds the mapping of one product
func (r *GormProductMappingRepository) FindByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND product_id = ?", integrationID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntegrationAndProducts finds mappings of several products
func (r *GormProductMappingRepository) FindByIntegrationAndProducts(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]integration.ProductMapping, error) {
	if len(productIDs) == 0 {
		return []integration.ProductMapping{}, nil
	}
	var rows []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND product_id IN ?", integrationID, productIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return mappingsToDomain(rows), nil
}

// FindByIntegration lists every mapping of an integration
func (r *GormProductMappingRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]integration.ProductMapping, error) {
	var rows []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return mappingsToDomain(rows), nil
}

// ListByIntegration lists mappings page by page with the total count
func (r *GormProductMappingRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.ProductMappingModel{}).Where("integration_id = ?", integrationID),
		filter,
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = mappingOrder.apply(query, filter.SortBy, filter.SortOrder)
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rows []models.ProductMappingModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return mappingsToDomain(rows), total, nil
}

// ExistsByIntegrationAndProduct checks the (integration, product) uniqueness key
func (r *GormProductMappingRepository) ExistsByIntegrationAndProduct(ctx context.Context, integrationID, productID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("integration_id = ? AND product_id = ?", integrationID, productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// ProductMappingFinder implementation
// ---------------------------------------------------------------------------

// syncableRow is one row of the mapping/product left join
type syncableRow struct {
	models.ProductMappingModel
	ProductRowID    *uuid.UUID `gorm:"column:p_id"`
	ProductClientID *uuid.UUID `gorm:"column:p_client_id"`
	ProductSKU      *string    `gorm:"column:p_sku"`
	ProductName     *string    `gorm:"column:p_name"`
	ProductPrice    *string    `gorm:"column:p_price"`
}

// FindSyncable returns sync_inventory mappings joined to their products. A
// missing product row yields a MappedProduct with a nil Product.
func (r *GormProductMappingRepository) FindSyncable(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) ([]integration.MappedProduct, error) {
	query := r.db.WithContext(ctx).
		Table("product_mappings AS pm").
		Select(`pm.*, p.id AS p_id, p.client_id AS p_client_id, p.sku AS p_sku, p.name AS p_name, CAST(p.price AS TEXT) AS p_price`).
		Joins("LEFT JOIN products AS p ON p.id = pm.product_id").
		Where("pm.integration_id = ? AND pm.sync_inventory = ?", integrationID, true)
	if len(productIDs) > 0 {
		query = query.Where("pm.product_id IN ?", productIDs)
	}

	var rows []syncableRow
	if err := query.Order("pm.created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]integration.MappedProduct, len(rows))
	for i := range rows {
		out[i] = integration.MappedProduct{
			Mapping: *rows[i].ProductMappingModel.ToDomain(),
			Product: rows[i].snapshot(),
		}
	}
	return out, nil
}

// snapshot normalizes the optional joined product columns once
func (row *syncableRow) snapshot() *integration.ProductSnapshot {
	if row.ProductRowID == nil {
		return nil
	}
	p := models.ProductModel{}
	p.ID = *row.ProductRowID
	if row.ProductClientID != nil {
		p.ClientID = *row.ProductClientID
	}
	if row.ProductSKU != nil {
		p.SKU = *row.ProductSKU
	}
	if row.ProductName != nil {
		p.Name = *row.ProductName
	}
	if row.ProductPrice != nil {
		if price, err := decimal.NewFromString(*row.ProductPrice); err == nil {
			p.Price = price
		}
	}
	return p.ToDomain()
}

// FindIntegrationIDsForProducts returns integrations mapping any of the products
func (r *GormProductMappingRepository) FindIntegrationIDsForProducts(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(productIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Distinct("integration_id").
		Where("product_id IN ?", productIDs).
		Pluck("integration_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// ProductMappingWriter implementation
// ---------------------------------------------------------------------------

// Save creates or updates a mapping. A second mapping for the same
// (integration, product) returns ErrMappingAlreadyExists.
func (r *GormProductMappingRepository) Save(ctx context.Context, mapping *integration.ProductMapping) error {
	model := models.ProductMappingModelFromDomain(mapping)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return integration.ErrMappingAlreadyExists
		}
		return err
	}
	return nil
}

// MarkSynced sets last_synced_at on the given mappings
func (r *GormProductMappingRepository) MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"last_synced_at": at,
			"updated_at":     time.Now(),
		}).Error
}

// UpdateIncomingQty writes incoming_qty per mapping ID in one transaction
func (r *GormProductMappingRepository) UpdateIncomingQty(ctx context.Context, quantities map[uuid.UUID]int) error {
	if len(quantities) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, qty := range quantities {
			if err := tx.Model(&models.ProductMappingModel{}).
				Where("id = ?", id).
				Updates(map[string]any{"incoming_qty": qty, "updated_at": now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Filter helpers
// ---------------------------------------------------------------------------

func (r *GormProductMappingRepository) applyFilter(query *gorm.DB, filter integration.ProductMappingFilter) *gorm.DB {
	if filter.SyncInventory != nil {
		query = query.Where("sync_inventory = ?", *filter.SyncInventory)
	}
	if filter.SyncPrice != nil {
		query = query.Where("sync_price = ?", *filter.SyncPrice)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where(clause.Expr{SQL: `LOWER(external_sku) LIKE ? ESCAPE '\'`, Vars: []any{containsPattern(s)}})
	}
	return query
}

func mappingsToDomain(rows []models.ProductMappingModel) []integration.ProductMapping {
	out := make([]integration.ProductMapping, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormProductMappingRepository implements ProductMappingRepository
var _ integration.ProductMappingRepository = (*GormProductMappingRepository)(nil)
