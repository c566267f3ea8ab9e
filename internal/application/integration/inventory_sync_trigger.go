package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventorySyncScheduler coalesces inventory syncs per integration
type InventorySyncScheduler interface {
	// Schedule queues productIDs and restarts the integration's debounce window
	Schedule(integrationID uuid.UUID, productIDs []uuid.UUID)
	// FireNow cancels any pending window and syncs pending and new products now
	FireNow(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID) error
}

// InventorySyncTrigger turns product stock changes into per-integration syncs
type InventorySyncTrigger struct {
	resolver  *MappingResolver
	scheduler InventorySyncScheduler
	logger    *zap.Logger
}

// NewInventorySyncTrigger creates a trigger
func NewInventorySyncTrigger(resolver *MappingResolver, scheduler InventorySyncScheduler, logger *zap.Logger) *InventorySyncTrigger {
	return &InventorySyncTrigger{resolver: resolver, scheduler: scheduler, logger: logger}
}

// TriggerInventorySync schedules a debounced sync on every integration that
// maps any of productIDs
func (t *InventorySyncTrigger) TriggerInventorySync(ctx context.Context, productIDs []uuid.UUID) error {
	ids, err := t.affected(ctx, productIDs)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.scheduler.Schedule(id, productIDs)
	}
	t.logger.Debug("inventory sync scheduled",
		zap.Int("integrations", len(ids)),
		zap.Int("products", len(productIDs)),
	)
	return nil
}

// TriggerImmediateInventorySync syncs every affected integration now,
// superseding any pending debounce window
func (t *InventorySyncTrigger) TriggerImmediateInventorySync(ctx context.Context, productIDs []uuid.UUID) error {
	ids, err := t.affected(ctx, productIDs)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := t.scheduler.FireNow(ctx, id, productIDs); err != nil {
			t.logger.Error("immediate inventory sync failed",
				zap.String("integration_id", id.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("integration %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (t *InventorySyncTrigger) affected(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error) {
	integrations, err := t.resolver.IntegrationsForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(integrations))
	for i, in := range integrations {
		ids[i] = in.ID
	}
	return ids, nil
}
