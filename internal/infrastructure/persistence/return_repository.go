package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReturnRepository implements ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// FindByID finds a return with its items
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Return, error) {
	var model models.ReturnModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrReturnNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormReturnRepository implements ReturnRepository
var _ integration.ReturnRepository = (*GormReturnRepository)(nil)
