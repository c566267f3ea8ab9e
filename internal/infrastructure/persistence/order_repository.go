package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.InternalOrder, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByExternalID checks the import dedup key
func (r *GormOrderRepository) ExistsByExternalID(ctx context.Context, platform integration.Platform, externalOrderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("external_order_id = ? AND external_platform = ?", externalOrderID, platform).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// OrderNumberExists checks order number uniqueness
func (r *GormOrderRepository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the order row only. A unique violation is
// ErrOrderAlreadyImported when the external linkage now exists, and
// ErrOrderNumberTaken when only the order number collided.
func (r *GormOrderRepository) Create(ctx context.Context, order *integration.InternalOrder) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	model := &models.OrderModel{}
	if err := model.FromDomain(order); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.duplicateCause(ctx, order, err)
		}
		return err
	}
	return nil
}

func (r *GormOrderRepository) duplicateCause(ctx context.Context, order *integration.InternalOrder, dupErr error) error {
	if order.ExternalOrderID != "" {
		imported, err := r.ExistsByExternalID(ctx, order.ExternalPlatform, order.ExternalOrderID)
		if err != nil {
			return fmt.Errorf("%w (linkage check failed: %v)", dupErr, err)
		}
		if imported {
			return integration.ErrOrderAlreadyImported
		}
	}
	return integration.ErrOrderNumberTaken
}

// CreateItems inserts order lines
func (r *GormOrderRepository) CreateItems(ctx context.Context, items []integration.InternalOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]*models.OrderItemModel, len(items))
	now := time.Now()
	for i, item := range items {
		rows[i] = models.OrderItemModelFromDomain(item)
		rows[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// Ensure GormOrderRepository implements OrderRepository
var _ integration.OrderRepository = (*GormOrderRepository)(nil)
