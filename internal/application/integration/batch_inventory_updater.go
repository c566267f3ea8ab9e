package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// InventoryUpdate is one absolute quantity to publish for a mapping
type InventoryUpdate struct {
	MappingID       uuid.UUID
	ProductID       uuid.UUID
	SKU             string
	InventoryItemID string
	LocationID      string
	Available       int
}

// BatchResult aggregates a BatchUpdate run across chunks and fallbacks
type BatchResult struct {
	// Succeeded lists the mappings whose quantity was accepted
	Succeeded []uuid.UUID
	Failed    int
	Errors    []integration.SyncItemError
	// BatchCalls counts bulk calls, FallbackCalls counts per-item calls
	BatchCalls    int
	FallbackCalls int
}

// BatchInventoryUpdater publishes quantities in bulk chunks and falls back to
// per-item calls for any chunk the platform rejects
type BatchInventoryUpdater struct {
	batchSize     int
	fallbackDelay time.Duration
	logger        *zap.Logger
}

// NewBatchInventoryUpdater creates an updater
func NewBatchInventoryUpdater(opts SyncOptions, logger *zap.Logger) *BatchInventoryUpdater {
	return &BatchInventoryUpdater{
		batchSize:     opts.batchSize(),
		fallbackDelay: opts.FallbackDelay,
		logger:        logger,
	}
}

// BatchUpdate pushes updates chunk by chunk. A chunk that errors or returns
// user errors is retried item by item; other chunks are unaffected.
func (u *BatchInventoryUpdater) BatchUpdate(ctx context.Context, gateway integration.PlatformGateway, updates []InventoryUpdate, reason string) BatchResult {
	var result BatchResult

	for start := 0; start < len(updates); start += u.batchSize {
		end := min(start+u.batchSize, len(updates))
		chunk := updates[start:end]

		quantities := make([]integration.InventoryQuantity, len(chunk))
		for i, upd := range chunk {
			quantities[i] = integration.InventoryQuantity{
				InventoryItemID: upd.InventoryItemID,
				LocationID:      upd.LocationID,
				Quantity:        upd.Available,
			}
		}

		result.BatchCalls++
		userErrors, err := gateway.SetInventoryQuantities(ctx, reason, quantities)
		if err == nil && len(userErrors) == 0 {
			for _, upd := range chunk {
				result.Succeeded = append(result.Succeeded, upd.MappingID)
			}
			continue
		}

		u.logger.Warn("bulk inventory update rejected, falling back to per-item updates",
			zap.Int("chunk_size", len(chunk)),
			zap.Int("user_errors", len(userErrors)),
			zap.Error(err),
			zap.String("detail", describeUserErrors(userErrors)),
		)
		u.fallback(ctx, gateway, chunk, &result)
	}

	return result
}

func (u *BatchInventoryUpdater) fallback(ctx context.Context, gateway integration.PlatformGateway, chunk []InventoryUpdate, result *BatchResult) {
	for i, upd := range chunk {
		if i > 0 {
			if err := pause(ctx, u.fallbackDelay); err != nil {
				for _, rest := range chunk[i:] {
					result.Failed++
					result.Errors = append(result.Errors, integration.SyncItemError{ItemID: itemKey(rest), Message: err.Error()})
				}
				return
			}
		}

		result.FallbackCalls++
		err := gateway.SetInventoryLevel(ctx, integration.InventoryQuantity{
			InventoryItemID: upd.InventoryItemID,
			LocationID:      upd.LocationID,
			Quantity:        upd.Available,
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, integration.SyncItemError{ItemID: itemKey(upd), Message: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, upd.MappingID)
	}
}

func itemKey(upd InventoryUpdate) string {
	if upd.SKU != "" {
		return upd.SKU
	}
	return upd.ProductID.String()
}

func describeUserErrors(errs []integration.PlatformUserError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(e.Field, "."), e.Message))
			continue
		}
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}
