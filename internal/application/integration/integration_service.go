package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// IntegrationService handles integration lifecycle and settings
type IntegrationService struct {
	repo    integration.IntegrationRepository
	syncLog *SyncLogger
	logger  *zap.Logger
}

// NewIntegrationService creates an integration service
func NewIntegrationService(repo integration.IntegrationRepository, syncLog *SyncLogger, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{repo: repo, syncLog: syncLog, logger: logger}
}

// Get returns an integration by ID
func (s *IntegrationService) Get(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	return s.repo.FindByID(ctx, id)
}

// Disconnect marks an integration inactive, clearing its token when its
// settings ask for it. Disconnecting twice is harmless.
func (s *IntegrationService) Disconnect(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	in, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in.Disconnect()
	if err := s.repo.Save(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}

	s.logger.Info("integration disconnected",
		zap.String("integration_id", id.String()),
		zap.String("shop_domain", in.ShopDomain),
		zap.Bool("token_cleared", in.AccessTokenEncrypted == ""),
	)
	return in, nil
}

// UpdateSettings validates and stores new settings
func (s *IntegrationService) UpdateSettings(ctx context.Context, id uuid.UUID, settings integration.Settings) (*integration.Integration, error) {
	in, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	settings.SchemaVersion = integration.CurrentSettingsVersion
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSettings(ctx, id, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	in.Settings = settings
	return in, nil
}

// ListSyncLogs returns one page of the integration's sync history
func (s *IntegrationService) ListSyncLogs(ctx context.Context, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	return s.syncLog.List(ctx, id, filter)
}
