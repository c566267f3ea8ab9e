package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SyncLogger appends sync log entries and records sync metrics. Write
// failures are logged and swallowed so a log outage never fails a sync.
type SyncLogger struct {
	repo    integration.SyncLogRepository
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewSyncLogger creates a sync logger
func NewSyncLogger(repo integration.SyncLogRepository, logger *zap.Logger) *SyncLogger {
	return &SyncLogger{repo: repo, logger: logger}
}

// SetSyncMetrics sets the metrics recorder. A nil recorder disables metrics.
func (l *SyncLogger) SetSyncMetrics(m *telemetry.SyncMetrics) {
	l.metrics = m
}

// Log writes entry, stamping Duration from started when it is unset
func (l *SyncLogger) Log(ctx context.Context, entry *integration.SyncLogEntry, started time.Time) {
	if entry.Duration == 0 && !started.IsZero() {
		entry.Duration = time.Since(started)
	}

	l.metrics.RecordSyncRun(ctx, telemetry.SyncRun{
		SyncType:  string(entry.SyncType),
		Direction: string(entry.Direction),
		Trigger:   string(entry.Trigger),
		Outcome:   string(entry.Outcome()),
		Processed: entry.ItemsProcessed,
		Failed:    entry.ItemsFailed,
		Duration:  entry.Duration,
	})

	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.Warn("failed to write sync log",
			zap.String("integration_id", entry.IntegrationID.String()),
			zap.String("sync_type", string(entry.SyncType)),
			zap.Error(err),
		)
	}
}

// List returns one page of an integration's sync log, newest first
func (l *SyncLogger) List(ctx context.Context, integrationID uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	return l.repo.FindByIntegration(ctx, integrationID, filter)
}
