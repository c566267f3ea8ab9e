package storage

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/config"
)

// NopOrderArchive discards payloads. Used when storage is disabled.
type NopOrderArchive struct{}

var _ integration.OrderArchive = NopOrderArchive{}

// ArchiveOrder implements integration.OrderArchive
func (NopOrderArchive) ArchiveOrder(context.Context, uuid.UUID, string, []byte) error {
	return nil
}

// NewOrderArchive returns an S3 archive when storage is enabled and a
// NopOrderArchive otherwise.
func NewOrderArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (integration.OrderArchive, error) {
	if !cfg.Enabled {
		logger.Info("Order archive disabled")
		return NopOrderArchive{}, nil
	}
	archive, err := NewS3OrderArchive(ctx, cfg, WithLogger(logger.Named("order_archive")))
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("Order archive enabled",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
	)
	return archive, nil
}
