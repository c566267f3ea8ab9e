package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/persistence/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormIntegrationRepository implements IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// ---------------------------------------------------------------------------
// IntegrationReader implementation
// ---------------------------------------------------------------------------

// FindByID finds an integration by ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return toIntegration(&model)
}

// FindByIDs finds integrations by IDs
func (r *GormIntegrationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.Integration, error) {
	if len(ids) == 0 {
		return []integration.Integration{}, nil
	}
	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIntegrations(rows)
}

// FindActive finds all active integrations of a platform
func (r *GormIntegrationRepository) FindActive(ctx context.Context, platform integration.Platform) ([]integration.Integration, error) {
	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND status = ?", platform, integration.IntegrationStatusActive).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIntegrations(rows)
}

func toIntegration(m *models.IntegrationModel) (*integration.Integration, error) {
	in, err := m.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("integration %s: %w", m.ID, err)
	}
	return in, nil
}

func toIntegrations(rows []models.IntegrationModel) ([]integration.Integration, error) {
	out := make([]integration.Integration, 0, len(rows))
	for i := range rows {
		in, err := toIntegration(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// IntegrationWriter implementation
// ---------------------------------------------------------------------------

// Save creates or fully replaces an integration
func (r *GormIntegrationRepository) Save(ctx context.Context, in *integration.Integration) error {
	model, err := models.IntegrationModelFromDomain(in)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// UpdateSettings replaces the settings column
func (r *GormIntegrationRepository) UpdateSettings(ctx context.Context, id uuid.UUID, settings integration.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := settings.Marshal()
	if err != nil {
		return err
	}
	return r.updateColumns(ctx, id, map[string]any{"settings": datatypes.JSON(raw)})
}

// TouchInventorySync sets last_inventory_sync_at
func (r *GormIntegrationRepository) TouchInventorySync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{"last_inventory_sync_at": at})
}

// TouchOrderSync sets last_order_sync_at
func (r *GormIntegrationRepository) TouchOrderSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{"last_order_sync_at": at})
}

// RecordError sets last_error_at and last_error_message
func (r *GormIntegrationRepository) RecordError(ctx context.Context, id uuid.UUID, at time.Time, message string) error {
	return r.updateColumns(ctx, id, map[string]any{
		"last_error_at":      at,
		"last_error_message": message,
	})
}

func (r *GormIntegrationRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) error {
	columns["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrIntegrationNotFound
	}
	return nil
}

// Ensure GormIntegrationRepository implements IntegrationRepository
var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)
