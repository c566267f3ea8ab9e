package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivery IDs (webhook deliveries, task runs) so
// a redelivered message is handled once
type IdempotencyStore interface {
	// MarkProcessed records id with a TTL.
	// Returns true if the id was newly recorded, false if it was already present.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether id has been recorded and not yet expired
	IsProcessed(ctx context.Context, id string) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a recorded id suppresses redelivery.
	// Shopify retries failed webhooks for up to 48 hours.
	TTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     48 * time.Hour,
		Enabled: true,
	}
}
