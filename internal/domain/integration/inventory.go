package integration

import (
	"context"

	"github.com/google/uuid"
)

// InventorySnapshot is the aggregated internal stock of one product
type InventorySnapshot struct {
	ProductID uuid.UUID
	OnHand    int
	Reserved  int
}

// Available returns the quantity to publish for this snapshot
func (s InventorySnapshot) Available(buffer int) int {
	return AvailableQuantity(s.OnHand, s.Reserved, buffer)
}

// AvailableQuantity computes on_hand - reserved - buffer floored at zero.
// A negative buffer is treated as zero.
func AvailableQuantity(onHand, reserved, buffer int) int {
	if buffer < 0 {
		buffer = 0
	}
	available := onHand - reserved - buffer
	if available < 0 {
		return 0
	}
	return available
}

// InventoryReader aggregates internal stock
type InventoryReader interface {
	// AggregateByProduct sums on-hand and reserved per product across all
	// locations, or only locationID when it is non-nil. Products without
	// stock rows are absent from the result.
	AggregateByProduct(ctx context.Context, productIDs []uuid.UUID, locationID *uuid.UUID) (map[uuid.UUID]InventorySnapshot, error)
}
