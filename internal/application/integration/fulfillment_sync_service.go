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

// FulfillmentSyncResult describes what SyncFulfillment did. Synced is false
// with a Reason when there was nothing to report.
type FulfillmentSyncResult struct {
	Synced        bool   `json:"synced"`
	FulfillmentID string `json:"fulfillment_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	// Lines is the number of fulfillment order lines fulfilled, zero for a
	// full fulfillment
	Lines int `json:"lines"`
}

func skippedFulfillment(reason string) *FulfillmentSyncResult {
	return &FulfillmentSyncResult{Reason: reason}
}

// FulfillmentSyncService reports warehouse shipments to the platform
type FulfillmentSyncService struct {
	integrations integration.IntegrationRepository
	mappings     integration.ProductMappingReader
	orders       integration.OrderRepository
	gateways     integration.GatewayFactory
	notifier     integration.Notifier
	syncLog      *SyncLogger
	logger       *zap.Logger
}

// NewFulfillmentSyncService creates a fulfillment sync service. notifier may be nil.
func NewFulfillmentSyncService(
	integrations integration.IntegrationRepository,
	mappings integration.ProductMappingReader,
	orders integration.OrderRepository,
	gateways integration.GatewayFactory,
	notifier integration.Notifier,
	syncLog *SyncLogger,
	logger *zap.Logger,
) *FulfillmentSyncService {
	return &FulfillmentSyncService{
		integrations: integrations,
		mappings:     mappings,
		orders:       orders,
		gateways:     gateways,
		notifier:     notifier,
		syncLog:      syncLog,
		logger:       logger,
	}
}

// SyncFulfillment creates a platform fulfillment for a shipped warehouse
// order. With Items set only those products are fulfilled, each capped at
// the quantity the platform still considers fulfillable.
func (s *FulfillmentSyncService) SyncFulfillment(ctx context.Context, req integration.FulfillmentSyncRequest) (*FulfillmentSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fulfillment_sync", "SyncFulfillment")
	defer span.End()

	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !order.IsLinkedTo(integration.PlatformShopify) {
		return skippedFulfillment("order is not linked to a platform order"), nil
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, order.IntegrationID.String(),
		telemetry.SpanAttrExternalOrderID, order.ExternalOrderID,
		telemetry.SpanAttrOrderNumber, order.OrderNumber,
	)

	in, err := s.integrations.FindByID(ctx, *order.IntegrationID)
	if errors.Is(err, integration.ErrIntegrationNotFound) {
		return skippedFulfillment("integration not found"), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !in.HasCredentials() {
		return skippedFulfillment("integration has no credentials"), nil
	}

	started := time.Now()
	result, err := s.fulfill(ctx, in, order, req)
	if err != nil {
		telemetry.RecordError(span, err)
		if recErr := s.integrations.RecordError(ctx, in.ID, time.Now(), fmt.Sprintf("fulfillment for %s: %v", order.OrderNumber, err)); recErr != nil {
			s.logger.Warn("failed to record integration error", zap.String("integration_id", in.ID.String()), zap.Error(recErr))
		}
		s.log(ctx, in.ID, order, req, started, err)
		return nil, err
	}
	if !result.Synced {
		return result, nil
	}

	if err := s.integrations.TouchOrderSync(ctx, in.ID, time.Now()); err != nil {
		s.logger.Warn("failed to update last order sync time", zap.String("integration_id", in.ID.String()), zap.Error(err))
	}
	s.log(ctx, in.ID, order, req, started, nil)

	if s.notifier != nil {
		if err := s.notifier.FulfillmentSynced(ctx, order.ID, req.TrackingNumber); err != nil {
			s.logger.Warn("fulfillment notification failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("fulfillment synced",
		zap.String("integration_id", in.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("fulfillment_id", result.FulfillmentID),
		zap.Int("lines", result.Lines),
	)
	return result, nil
}

func (s *FulfillmentSyncService) fulfill(ctx context.Context, in *integration.Integration, order *integration.InternalOrder, req integration.FulfillmentSyncRequest) (*FulfillmentSyncResult, error) {
	gateway, err := s.gateways.ForIntegration(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	all, err := gateway.ListFulfillmentOrders(ctx, order.ExternalOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fulfillment orders: %w", err)
	}
	var open []integration.FulfillmentOrder
	for _, fo := range all {
		if fo.IsOpen() {
			open = append(open, fo)
		}
	}
	if len(open) == 0 {
		return skippedFulfillment("no open fulfillment orders"), nil
	}

	var selections []integration.FulfillmentOrderSelection
	lines := 0
	if len(req.Items) == 0 {
		for _, fo := range open {
			selections = append(selections, integration.FulfillmentOrderSelection{FulfillmentOrderID: fo.ID})
		}
	} else {
		requested, err := s.requestedByVariant(ctx, in.ID, req.Items)
		if err != nil {
			return nil, err
		}
		selections, lines = selectPartial(open, requested)
		if len(selections) == 0 {
			return skippedFulfillment("no fulfillable lines match the shipped items"), nil
		}
	}

	fulfillmentID, err := gateway.CreateFulfillment(ctx, integration.FulfillmentRequest{
		Orders:          selections,
		TrackingNumber:  req.TrackingNumber,
		TrackingCompany: integration.CanonicalCarrier(req.Carrier),
		TrackingURL:     req.TrackingURL,
		NotifyCustomer:  in.Settings.NotifyCustomerOnFulfillment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fulfillment: %w", err)
	}
	return &FulfillmentSyncResult{Synced: true, FulfillmentID: fulfillmentID, Lines: lines}, nil
}

// requestedByVariant converts shipped products to quantities per external variant
func (s *FulfillmentSyncService) requestedByVariant(ctx context.Context, integrationID uuid.UUID, items []integration.FulfillmentItem) (map[string]int, error) {
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}
	mappings, err := s.mappings.FindByIntegrationAndProducts(ctx, integrationID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	variants := make(map[uuid.UUID]string, len(mappings))
	for _, m := range mappings {
		variants[m.ProductID] = m.ExternalVariantID
	}

	requested := make(map[string]int)
	for _, it := range items {
		variant, ok := variants[it.ProductID]
		if !ok || variant == "" || it.Quantity <= 0 {
			continue
		}
		requested[variant] += it.Quantity
	}
	return requested, nil
}

// selectPartial picks fulfillment order lines by variant, fulfilling
// min(requested, fulfillable) and spreading the remainder across orders
func selectPartial(open []integration.FulfillmentOrder, requested map[string]int) ([]integration.FulfillmentOrderSelection, int) {
	var selections []integration.FulfillmentOrderSelection
	count := 0
	for _, fo := range open {
		var lines []integration.FulfillmentLine
		for _, li := range fo.LineItems {
			remaining := requested[li.VariantID]
			if remaining <= 0 || li.FulfillableQuantity <= 0 {
				continue
			}
			qty := min(remaining, li.FulfillableQuantity)
			requested[li.VariantID] = remaining - qty
			lines = append(lines, integration.FulfillmentLine{FulfillmentOrderLineID: li.ID, Quantity: qty})
		}
		if len(lines) > 0 {
			selections = append(selections, integration.FulfillmentOrderSelection{FulfillmentOrderID: fo.ID, Lines: lines})
			count += len(lines)
		}
	}
	return selections, count
}

func (s *FulfillmentSyncService) log(ctx context.Context, integrationID uuid.UUID, order *integration.InternalOrder, req integration.FulfillmentSyncRequest, started time.Time, syncErr error) {
	entry := integration.NewSyncLogEntry(integrationID, integration.SyncTypeFulfillment, integration.SyncDirectionOutbound, integration.SyncTriggerEvent)
	entry.ItemsProcessed = 1
	entry.Metadata["order_id"] = order.ID.String()
	entry.Metadata["external_order_id"] = order.ExternalOrderID
	entry.Metadata["tracking_number"] = req.TrackingNumber
	if syncErr != nil {
		entry.ItemsFailed = 1
		entry.Errors = []integration.SyncItemError{{ItemID: order.OrderNumber, Message: syncErr.Error()}}
	}
	s.syncLog.Log(ctx, entry, started)
}
