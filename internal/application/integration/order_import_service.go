package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ImportStatus is the result of processing one external order
type ImportStatus string

const (
	ImportStatusImported ImportStatus = "imported"
	ImportStatusSkipped  ImportStatus = "skipped"
)

// ImportOutcome describes what ProcessExternalOrder did
type ImportOutcome struct {
	Status      ImportStatus `json:"status"`
	OrderID     uuid.UUID    `json:"order_id,omitempty"`
	OrderNumber string       `json:"order_number,omitempty"`
	// Reason explains a skip
	Reason        string `json:"reason,omitempty"`
	MappedItems   int    `json:"mapped_items"`
	UnmappedItems int    `json:"unmapped_items"`
	Warning       string `json:"warning,omitempty"`
	// ItemsFailed is set when the order row was created but its lines were not
	ItemsFailed bool `json:"items_failed,omitempty"`
}

// OrderSyncResult summarizes one order pull
type OrderSyncResult struct {
	Imported int                         `json:"imported"`
	Skipped  int                         `json:"skipped"`
	Failed   int                         `json:"failed"`
	Errors   []integration.SyncItemError `json:"errors,omitempty"`
}

// OrderImportService creates warehouse orders from platform orders
type OrderImportService struct {
	integrations integration.IntegrationRepository
	mappings     integration.ProductMappingReader
	orders       integration.OrderRepository
	gateways     integration.GatewayFactory
	notifier     integration.Notifier
	archive      integration.OrderArchive
	syncLog      *SyncLogger
	opts         SyncOptions
	logger       *zap.Logger
}

// NewOrderImportService creates an order import service. notifier and archive
// may be nil.
func NewOrderImportService(
	integrations integration.IntegrationRepository,
	mappings integration.ProductMappingReader,
	orders integration.OrderRepository,
	gateways integration.GatewayFactory,
	notifier integration.Notifier,
	archive integration.OrderArchive,
	syncLog *SyncLogger,
	opts SyncOptions,
	logger *zap.Logger,
) *OrderImportService {
	return &OrderImportService{
		integrations: integrations,
		mappings:     mappings,
		orders:       orders,
		gateways:     gateways,
		notifier:     notifier,
		archive:      archive,
		syncLog:      syncLog,
		opts:         opts,
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Single order
// ---------------------------------------------------------------------------

// ProcessExternalOrder imports one external order. It is idempotent on the
// (external order ID, platform) key: a second call returns a skipped outcome.
func (s *OrderImportService) ProcessExternalOrder(ctx context.Context, order *integration.ExternalOrder, in *integration.Integration) (*ImportOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_import", "ProcessExternalOrder")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, in.ID.String(),
		telemetry.SpanAttrExternalOrderID, order.ID,
	)

	exists, err := s.orders.ExistsByExternalID(ctx, in.Platform, order.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check for existing order: %w", err)
	}
	if exists {
		return &ImportOutcome{Status: ImportStatusSkipped, Reason: "already imported"}, nil
	}

	var shippable []integration.ExternalLineItem
	for _, li := range order.LineItems {
		if li.IsShippable() {
			shippable = append(shippable, li)
		}
	}
	if len(shippable) == 0 {
		return &ImportOutcome{Status: ImportStatusSkipped, Reason: "no shippable items"}, nil
	}

	matcher, err := s.newLineMatcher(ctx, in.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	orderNumber, err := s.orderNumber(ctx, order)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOrderNumber, orderNumber)

	now := time.Now()
	internal := &integration.InternalOrder{
		ID:                  uuid.New(),
		ClientID:            in.ClientID,
		OrderNumber:         orderNumber,
		Status:              integration.OrderStatusPending,
		IsRush:              order.IsRush(),
		Email:               order.Email,
		ShippingMethod:      order.ShippingMethod,
		ExternalOrderID:     order.ID,
		ExternalOrderNumber: order.Name,
		ExternalPlatform:    in.Platform,
		IntegrationID:       &in.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if order.ShippingAddress != nil {
		internal.ShipTo = *order.ShippingAddress
	}

	var unmapped []integration.ExternalLineItem
	for _, li := range shippable {
		productID, ok := matcher.match(li)
		if !ok {
			unmapped = append(unmapped, li)
			continue
		}
		internal.Items = append(internal.Items, integration.InternalOrderItem{
			ID:                 uuid.New(),
			OrderID:            internal.ID,
			ProductID:          productID,
			Quantity:           li.FulfillableQuantity,
			UnitPrice:          li.Price,
			ExternalLineItemID: li.ID,
		})
	}

	outcome := &ImportOutcome{
		Status:        ImportStatusImported,
		OrderID:       internal.ID,
		OrderNumber:   orderNumber,
		MappedItems:   len(internal.Items),
		UnmappedItems: len(unmapped),
		Warning:       unmappedWarning(unmapped),
	}
	internal.Notes = joinNotes(order.Note, outcome.Warning)

	err = s.orders.Create(ctx, internal)
	if errors.Is(err, integration.ErrOrderNumberTaken) && internal.OrderNumber != order.FallbackOrderNumber() {
		// another order took the number between the check and the insert
		internal.OrderNumber = order.FallbackOrderNumber()
		outcome.OrderNumber = internal.OrderNumber
		err = s.orders.Create(ctx, internal)
	}
	if err != nil {
		if errors.Is(err, integration.ErrOrderAlreadyImported) {
			return &ImportOutcome{Status: ImportStatusSkipped, Reason: "already imported"}, nil
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if len(internal.Items) > 0 {
		if err := s.orders.CreateItems(ctx, internal.Items); err != nil {
			outcome.ItemsFailed = true
			s.logger.Error("order created but its items could not be inserted",
				zap.String("order_id", internal.ID.String()),
				zap.String("order_number", internal.OrderNumber),
				zap.Error(err),
			)
		}
	}

	s.afterImport(ctx, in, order, internal)

	s.logger.Info("external order imported",
		zap.String("integration_id", in.ID.String()),
		zap.String("external_order_id", order.ID),
		zap.String("order_number", internal.OrderNumber),
		zap.Bool("rush", internal.IsRush),
		zap.Int("mapped_items", outcome.MappedItems),
		zap.Int("unmapped_items", outcome.UnmappedItems),
	)
	return outcome, nil
}

// afterImport runs the side effects of an import. Their failures are logged only.
func (s *OrderImportService) afterImport(ctx context.Context, in *integration.Integration, order *integration.ExternalOrder, internal *integration.InternalOrder) {
	if s.archive != nil && len(order.Raw) > 0 {
		if err := s.archive.ArchiveOrder(ctx, in.ID, order.ID, order.Raw); err != nil {
			s.logger.Warn("failed to archive external order",
				zap.String("external_order_id", order.ID),
				zap.Error(err),
			)
		}
	}
	if s.notifier != nil && s.opts.NotifyOnImport {
		if err := s.notifier.OrderImported(ctx, internal); err != nil {
			s.logger.Warn("order import notification failed",
				zap.String("order_id", internal.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *OrderImportService) orderNumber(ctx context.Context, order *integration.ExternalOrder) (string, error) {
	number := order.OrderNumber()
	taken, err := s.orders.OrderNumberExists(ctx, number)
	if err != nil {
		return "", fmt.Errorf("failed to check order number: %w", err)
	}
	if taken {
		return order.FallbackOrderNumber(), nil
	}
	return number, nil
}

// lineMatcher resolves external lines to internal products, by variant ID
// first and then by case-insensitive SKU
type lineMatcher struct {
	byVariant map[string]uuid.UUID
	bySKU     map[string]uuid.UUID
}

func (s *OrderImportService) newLineMatcher(ctx context.Context, integrationID uuid.UUID) (*lineMatcher, error) {
	mappings, err := s.mappings.FindByIntegration(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	m := &lineMatcher{
		byVariant: make(map[string]uuid.UUID, len(mappings)),
		bySKU:     make(map[string]uuid.UUID, len(mappings)),
	}
	for _, pm := range mappings {
		if pm.ExternalVariantID != "" {
			m.byVariant[pm.ExternalVariantID] = pm.ProductID
		}
		if key := integration.FoldKey(pm.ExternalSKU); key != "" {
			if _, dup := m.bySKU[key]; !dup {
				m.bySKU[key] = pm.ProductID
			}
		}
	}
	return m, nil
}

func (m *lineMatcher) match(li integration.ExternalLineItem) (uuid.UUID, bool) {
	if li.VariantID != "" {
		if id, ok := m.byVariant[li.VariantID]; ok {
			return id, true
		}
	}
	if key := integration.FoldKey(li.SKU); key != "" {
		if id, ok := m.bySKU[key]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func unmappedWarning(items []integration.ExternalLineItem) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, len(items))
	for i, li := range items {
		sku := li.SKU
		if sku == "" {
			sku = "no SKU"
		}
		parts[i] = fmt.Sprintf("%s (%s)", sku, li.DisplayName())
	}
	return fmt.Sprintf("%d items could not be mapped: %s", len(items), strings.Join(parts, ", "))
}

func joinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// ---------------------------------------------------------------------------
// Pulls
// ---------------------------------------------------------------------------

// SyncShopifyOrders pulls open unfulfilled orders created after since and
// imports them. A nil since resumes from the last order sync, or reaches
// back OrderLookback on the first pull.
func (s *OrderImportService) SyncShopifyOrders(ctx context.Context, integrationID uuid.UUID, since *time.Time, trigger integration.SyncTrigger) (*OrderSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_import", "SyncShopifyOrders")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, integrationID.String(),
		telemetry.SpanAttrTrigger, string(trigger),
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

	gateway, err := s.gateways.ForIntegration(ctx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	createdAfter := s.pullStart(in, since)
	orders, err := gateway.ListOpenOrders(ctx, integration.OrderQuery{CreatedAtMin: createdAfter})
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordIntegrationError(ctx, in.ID, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := &OrderSyncResult{}
	for i := range orders {
		outcome, err := s.ProcessExternalOrder(ctx, &orders[i], in)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, integration.SyncItemError{ItemID: orders[i].ID, Message: err.Error()})
		case outcome.Status == ImportStatusSkipped:
			result.Skipped++
		default:
			result.Imported++
		}
	}

	if err := s.integrations.TouchOrderSync(ctx, in.ID, started); err != nil {
		s.logger.Warn("failed to update last order sync time",
			zap.String("integration_id", in.ID.String()),
			zap.Error(err),
		)
	}

	entry := integration.NewSyncLogEntry(in.ID, integration.SyncTypeOrders, integration.SyncDirectionInbound, trigger)
	entry.ItemsProcessed = len(orders)
	entry.ItemsFailed = result.Failed
	entry.Errors = result.Errors
	entry.Metadata["imported"] = result.Imported
	entry.Metadata["skipped"] = result.Skipped
	entry.Metadata["created_at_min"] = createdAfter.UTC().Format(time.RFC3339)
	s.syncLog.Log(ctx, entry, started)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCount, len(orders),
		telemetry.SpanAttrFailedCount, result.Failed,
	)
	return result, nil
}

func (s *OrderImportService) pullStart(in *integration.Integration, since *time.Time) time.Time {
	switch {
	case since != nil:
		return *since
	case in.LastOrderSyncAt != nil:
		return *in.LastOrderSyncAt
	default:
		return time.Now().Add(-s.opts.OrderLookback)
	}
}

// ImportWebhookOrder imports an order pushed by a platform webhook and logs
// the run with the webhook trigger
func (s *OrderImportService) ImportWebhookOrder(ctx context.Context, integrationID uuid.UUID, order *integration.ExternalOrder) (*ImportOutcome, error) {
	started := time.Now()

	in, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if err := in.EnsureSyncable(); err != nil {
		return nil, err
	}

	outcome, err := s.ProcessExternalOrder(ctx, order, in)

	entry := integration.NewSyncLogEntry(in.ID, integration.SyncTypeOrders, integration.SyncDirectionInbound, integration.SyncTriggerWebhook)
	entry.ItemsProcessed = 1
	entry.Metadata["external_order_id"] = order.ID
	if err != nil {
		entry.ItemsFailed = 1
		entry.Errors = []integration.SyncItemError{{ItemID: order.ID, Message: err.Error()}}
	} else {
		entry.Metadata["status"] = string(outcome.Status)
	}
	s.syncLog.Log(ctx, entry, started)

	return outcome, err
}

// SyncAllOrders pulls orders for every active integration with automatic
// order sync enabled
func (s *OrderImportService) SyncAllOrders(ctx context.Context) error {
	active, err := s.integrations.FindActive(ctx, integration.PlatformShopify)
	if err != nil {
		return fmt.Errorf("failed to list active integrations: %w", err)
	}

	var errs []error
	for _, in := range active {
		if !in.Settings.AutoSyncOrders {
			continue
		}
		if _, err := s.SyncShopifyOrders(ctx, in.ID, nil, integration.SyncTriggerScheduled); err != nil {
			s.logger.Error("scheduled order pull failed",
				zap.String("integration_id", in.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("integration %s: %w", in.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *OrderImportService) recordIntegrationError(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.integrations.RecordError(ctx, id, time.Now(), cause.Error()); err != nil {
		s.logger.Warn("failed to record integration error",
			zap.String("integration_id", id.String()),
			zap.Error(err),
		)
	}
}
