package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InventorySyncResult summarizes one inventory push
type InventorySyncResult struct {
	Updated int                         `json:"updated"`
	Failed  int                         `json:"failed"`
	Errors  []integration.SyncItemError `json:"errors,omitempty"`
	// PricesUpdated and PricesFailed are reported separately and never count
	// against the inventory outcome
	PricesUpdated int `json:"prices_updated"`
	PricesFailed  int `json:"prices_failed"`
}

// InventorySyncService pushes warehouse available quantities and prices to
// the platform
type InventorySyncService struct {
	integrations integration.IntegrationRepository
	mappings     integration.ProductMappingWriter
	resolver     *MappingResolver
	inventory    integration.InventoryReader
	gateways     integration.GatewayFactory
	updater      *BatchInventoryUpdater
	syncLog      *SyncLogger
	opts         SyncOptions
	logger       *zap.Logger
}

// NewInventorySyncService creates an inventory sync service
func NewInventorySyncService(
	integrations integration.IntegrationRepository,
	mappings integration.ProductMappingRepository,
	inventory integration.InventoryReader,
	gateways integration.GatewayFactory,
	syncLog *SyncLogger,
	opts SyncOptions,
	logger *zap.Logger,
) *InventorySyncService {
	return &InventorySyncService{
		integrations: integrations,
		mappings:     mappings,
		resolver:     NewMappingResolver(mappings, integrations),
		inventory:    inventory,
		gateways:     gateways,
		updater:      NewBatchInventoryUpdater(opts, logger),
		syncLog:      syncLog,
		opts:         opts,
		logger:       logger,
	}
}

// Resolver returns the mapping resolver used by this service
func (s *InventorySyncService) Resolver() *MappingResolver {
	return s.resolver
}

// SyncInventory pushes available quantities for the integration's mapped
// products, limited to productIDs when non-empty. Only setup failures are
// returned as errors; per-item failures are reported in the result.
func (s *InventorySyncService) SyncInventory(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID, trigger integration.SyncTrigger) (*InventorySyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_sync", "SyncInventory")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, integrationID.String(),
		telemetry.SpanAttrTrigger, string(trigger),
		telemetry.SpanAttrItemCount, len(productIDs),
	)

	started := time.Now()

	in, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := in.EnsureSyncable(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrShopDomain, in.ShopDomain)

	gateway, err := s.gateways.ForIntegration(ctx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	locationID, err := s.resolveLocation(ctx, in, gateway)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, integrationID, productIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &InventorySyncResult{}
	result.Errors = append(result.Errors, resolution.Errors...)
	result.Failed += len(resolution.Errors)

	if len(resolution.Mappings) > 0 {
		updates, err := s.buildUpdates(ctx, in, locationID, resolution.Mappings)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		batch := s.updater.BatchUpdate(ctx, gateway, updates, s.opts.InventoryReason)
		result.Updated = len(batch.Succeeded)
		result.Failed += batch.Failed
		result.Errors = append(result.Errors, batch.Errors...)

		if len(batch.Succeeded) > 0 {
			if err := s.mappings.MarkSynced(ctx, batch.Succeeded, time.Now()); err != nil {
				s.logger.Warn("failed to record mapping sync time",
					zap.String("integration_id", integrationID.String()),
					zap.Error(err),
				)
			}
		}

		s.syncPrices(ctx, in, gateway, resolution.Mappings, trigger, result)
	}

	if err := s.integrations.TouchInventorySync(ctx, integrationID, time.Now()); err != nil {
		s.logger.Warn("failed to update last inventory sync time",
			zap.String("integration_id", integrationID.String()),
			zap.Error(err),
		)
	}

	entry := integration.NewSyncLogEntry(integrationID, integration.SyncTypeInventory, integration.SyncDirectionOutbound, trigger)
	entry.ItemsProcessed = result.Updated + result.Failed
	entry.ItemsFailed = result.Failed
	entry.Errors = result.Errors
	entry.Metadata["location_id"] = locationID
	s.syncLog.Log(ctx, entry, started)

	telemetry.SetAttributes(span, telemetry.SpanAttrFailedCount, result.Failed)
	s.logger.Info("inventory sync completed",
		zap.String("integration_id", integrationID.String()),
		zap.String("trigger", string(trigger)),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// resolveLocation returns the cached platform location or looks up the
// store's primary location and caches it in settings
func (s *InventorySyncService) resolveLocation(ctx context.Context, in *integration.Integration, gateway integration.PlatformGateway) (string, error) {
	if in.Settings.ShopifyLocationID != "" {
		return in.Settings.ShopifyLocationID, nil
	}

	locationID, err := gateway.PrimaryLocationID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrNoLocation, err)
	}
	if locationID == "" {
		return "", integration.ErrNoLocation
	}

	in.Settings = in.Settings.WithLocation(locationID)
	if err := s.integrations.UpdateSettings(ctx, in.ID, in.Settings); err != nil {
		s.logger.Warn("failed to cache platform location",
			zap.String("integration_id", in.ID.String()),
			zap.String("location_id", locationID),
			zap.Error(err),
		)
	}
	return locationID, nil
}

func (s *InventorySyncService) buildUpdates(ctx context.Context, in *integration.Integration, locationID string, mapped []integration.MappedProduct) ([]InventoryUpdate, error) {
	productIDs := make([]uuid.UUID, len(mapped))
	for i, m := range mapped {
		productIDs[i] = m.Mapping.ProductID
	}

	stock, err := s.inventory.AggregateByProduct(ctx, productIDs, in.Settings.DefaultWarehouseLocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate inventory: %w", err)
	}

	updates := make([]InventoryUpdate, len(mapped))
	for i, m := range mapped {
		// products without stock rows publish zero
		snapshot := stock[m.Mapping.ProductID]
		updates[i] = InventoryUpdate{
			MappingID:       m.Mapping.ID,
			ProductID:       m.Mapping.ProductID,
			SKU:             m.Product.SKU,
			InventoryItemID: m.Mapping.ExternalInventoryItemID,
			LocationID:      locationID,
			Available:       snapshot.Available(in.Settings.InventoryBuffer),
		}
	}
	return updates, nil
}

func (s *InventorySyncService) syncPrices(ctx context.Context, in *integration.Integration, gateway integration.PlatformGateway, mapped []integration.MappedProduct, trigger integration.SyncTrigger, result *InventorySyncResult) {
	started := time.Now()
	var errs []integration.SyncItemError
	attempted := 0

	for _, m := range mapped {
		if !m.Mapping.SyncPrice {
			continue
		}
		if attempted > 0 {
			if err := pause(ctx, s.opts.PriceDelay); err != nil {
				break
			}
		}
		attempted++

		if err := gateway.UpdateVariantPrice(ctx, m.Mapping.ExternalVariantID, m.Product.Price); err != nil {
			result.PricesFailed++
			errs = append(errs, integration.SyncItemError{ItemID: m.Product.SKU, Message: err.Error()})
			continue
		}
		result.PricesUpdated++
	}

	if attempted == 0 {
		return
	}

	entry := integration.NewSyncLogEntry(in.ID, integration.SyncTypePrice, integration.SyncDirectionOutbound, trigger)
	entry.ItemsProcessed = attempted
	entry.ItemsFailed = result.PricesFailed
	entry.Errors = errs
	s.syncLog.Log(ctx, entry, started)
}

// ReconcileAll runs a full inventory push for every active integration with
// automatic inventory sync. Setup failures of one integration do not stop
// the others.
func (s *InventorySyncService) ReconcileAll(ctx context.Context) error {
	active, err := s.integrations.FindActive(ctx, integration.PlatformShopify)
	if err != nil {
		return fmt.Errorf("failed to list active integrations: %w", err)
	}

	var errs []error
	for _, in := range active {
		if !in.Settings.AutoSyncInventory {
			continue
		}
		if _, err := s.SyncInventory(ctx, in.ID, nil, integration.SyncTriggerScheduled); err != nil {
			s.logger.Error("scheduled inventory reconciliation failed",
				zap.String("integration_id", in.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("integration %s: %w", in.ID, err))
		}
	}
	return errors.Join(errs...)
}
