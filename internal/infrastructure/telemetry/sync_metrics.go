package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records sync engine activity: runs, items, rate-limit waits
// and webhook deliveries, plus periodically sampled status gauges.
type SyncMetrics struct {
	logger *zap.Logger

	runsTotal         *Counter
	itemsTotal        *Counter
	runDuration       *Histogram
	rateLimitWait     *Histogram
	rateLimitThrottle *Counter
	webhooksTotal     *Counter
	tasksTotal        *Counter

	integrationsByStatus *Gauge
	outboxByStatus       *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
	wg          sync.WaitGroup
}

// NewSyncMetrics creates the sync instruments on meter
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := NewInstruments(meter)
	sm := &SyncMetrics{
		logger:   logger,
		stopChan: make(chan struct{}),

		runsTotal:         b.Counter("shopsync_sync_runs_total", "Sync runs by type and outcome", "{runs}"),
		itemsTotal:        b.Counter("shopsync_sync_items_total", "Items processed by sync runs", "{items}"),
		runDuration:       b.Histogram("shopsync_sync_duration_seconds", "Wall time of a sync run", "s", SyncDurationBuckets),
		rateLimitWait:     b.Histogram("shopsync_ratelimit_wait_seconds", "Time spent waiting for platform API budget", "s", WaitBuckets),
		rateLimitThrottle: b.Counter("shopsync_ratelimit_throttled_total", "Platform responses with HTTP 429", "{responses}"),
		webhooksTotal:     b.Counter("shopsync_webhooks_total", "Webhook deliveries by topic and outcome", "{deliveries}"),
		tasksTotal:        b.Counter("shopsync_outbox_tasks_total", "Outbox task runs by type and outcome", "{tasks}"),

		integrationsByStatus: b.Gauge("shopsync_integrations", "Integrations by status", "{integrations}"),
		outboxByStatus:       b.Gauge("shopsync_outbox_entries", "Outbox entries by status", "{entries}"),
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return sm, nil
}

// SyncRun describes a finished sync run
type SyncRun struct {
	SyncType  string
	Direction string
	Trigger   string
	Outcome   string
	Processed int
	Failed    int
	Duration  time.Duration
}

// RecordSyncRun records one run. Safe on a nil receiver.
func (sm *SyncMetrics) RecordSyncRun(ctx context.Context, run SyncRun) {
	if sm == nil {
		return
	}
	sm.runsTotal.Inc(ctx,
		AttrSyncType.String(run.SyncType),
		AttrDirection.String(run.Direction),
		AttrTrigger.String(run.Trigger),
		AttrOutcome.String(run.Outcome),
	)
	sm.itemsTotal.Add(ctx, int64(run.Processed-run.Failed),
		AttrSyncType.String(run.SyncType), AttrOutcome.String("ok"))
	if run.Failed > 0 {
		sm.itemsTotal.Add(ctx, int64(run.Failed),
			AttrSyncType.String(run.SyncType), AttrOutcome.String("failed"))
	}
	sm.runDuration.RecordDuration(ctx, run.Duration, AttrSyncType.String(run.SyncType))
}

// RecordRateLimitWait records a wait for API budget on shop
func (sm *SyncMetrics) RecordRateLimitWait(ctx context.Context, shop string, d time.Duration) {
	if sm == nil {
		return
	}
	sm.rateLimitWait.RecordDuration(ctx, d, AttrPlatform.String("shopify"))
}

// RecordThrottled counts a 429 response
func (sm *SyncMetrics) RecordThrottled(ctx context.Context, shop string) {
	if sm == nil {
		return
	}
	sm.rateLimitThrottle.Inc(ctx, AttrPlatform.String("shopify"))
}

// RecordWebhook counts a webhook delivery by topic and outcome
func (sm *SyncMetrics) RecordWebhook(ctx context.Context, topic, outcome string) {
	if sm == nil {
		return
	}
	sm.webhooksTotal.Inc(ctx, AttrTopic.String(topic), AttrOutcome.String(outcome))
}

// RecordTask counts an outbox task run by type and outcome
func (sm *SyncMetrics) RecordTask(ctx context.Context, taskType, outcome string) {
	if sm == nil {
		return
	}
	sm.tasksTotal.Inc(ctx, AttrTaskType.String(taskType), AttrOutcome.String(outcome))
}

// -----------------------------------------------------------------------------
// Periodic collection
// -----------------------------------------------------------------------------

// StatusCounter reports row counts grouped by status
type StatusCounter interface {
	StatusCounts(ctx context.Context) (map[string]int64, error)
}

// StartPeriodicCollection samples the status gauges every interval until
// Stop is called or ctx ends. Either counter may be nil.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, integrations, outbox StatusCounter, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		sm.wg.Add(1)
		go sm.runPeriodicCollection(ctx, integrations, outbox, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, integrations, outbox StatusCounter, interval time.Duration) {
	defer sm.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collect(ctx, integrations, outbox)
	for {
		select {
		case <-sm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.collect(ctx, integrations, outbox)
		}
	}
}

func (sm *SyncMetrics) collect(ctx context.Context, integrations, outbox StatusCounter) {
	sm.sample(ctx, "integrations", integrations, sm.integrationsByStatus)
	sm.sample(ctx, "outbox", outbox, sm.outboxByStatus)
}

func (sm *SyncMetrics) sample(ctx context.Context, name string, counter StatusCounter, gauge *Gauge) {
	if counter == nil {
		return
	}
	counts, err := counter.StatusCounts(ctx)
	if err != nil {
		sm.logger.Warn("Failed to sample status gauge", zap.String("gauge", name), zap.Error(err))
		return
	}
	for status, n := range counts {
		gauge.Record(ctx, n, AttrOutcome.String(status))
	}
}

// Stop stops periodic collection and waits for the loop to exit
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
	sm.wg.Wait()
}

// GormStatusCounter counts rows of one table grouped by its status column
type GormStatusCounter struct {
	db    *gorm.DB
	table string
}

// NewGormStatusCounter creates a counter over table
func NewGormStatusCounter(db *gorm.DB, table string) *GormStatusCounter {
	return &GormStatusCounter{db: db, table: table}
}

// StatusCounts implements StatusCounter
func (c *GormStatusCounter) StatusCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}
	var rows []row
	if err := c.db.WithContext(ctx).
		Table(c.table).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
