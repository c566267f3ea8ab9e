package integration

import (
	"context"
	"time"
)

// SyncOptions holds pacing and defaults shared by the sync services
type SyncOptions struct {
	// BatchSize is the number of quantities per bulk inventory call, at most 100
	BatchSize int
	// FallbackDelay separates per-item inventory calls after a failed batch
	FallbackDelay time.Duration
	// PriceDelay separates variant price updates
	PriceDelay time.Duration
	// MetafieldDelay separates incoming-quantity metafield writes
	MetafieldDelay time.Duration
	// OrderLookback is how far back the first order pull reaches
	OrderLookback time.Duration
	// InventoryReason is sent with bulk quantity updates
	InventoryReason string
	// NotifyOnImport fires the notifier after each imported order
	NotifyOnImport bool
}

// MaxBatchSize is the platform limit for one bulk quantity call
const MaxBatchSize = 100

// DefaultSyncOptions returns production pacing
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		BatchSize:       MaxBatchSize,
		FallbackDelay:   500 * time.Millisecond,
		PriceDelay:      500 * time.Millisecond,
		MetafieldDelay:  500 * time.Millisecond,
		OrderLookback:   7 * 24 * time.Hour,
		InventoryReason: "correction",
		NotifyOnImport:  true,
	}
}

func (o SyncOptions) batchSize() int {
	if o.BatchSize <= 0 || o.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return o.BatchSize
}

// pause waits d or until ctx ends
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
