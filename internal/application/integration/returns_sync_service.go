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

// ReturnSyncResult describes what SyncReturn did
type ReturnSyncResult struct {
	Refunded bool   `json:"refunded"`
	RefundID string `json:"refund_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Lines    int    `json:"lines"`
}

// ReturnsSyncService turns completed warehouse returns into platform refunds
type ReturnsSyncService struct {
	integrations integration.IntegrationRepository
	mappings     integration.ProductMappingReader
	orders       integration.OrderRepository
	returns      integration.ReturnRepository
	gateways     integration.GatewayFactory
	syncLog      *SyncLogger
	logger       *zap.Logger
}

// NewReturnsSyncService creates a returns sync service
func NewReturnsSyncService(
	integrations integration.IntegrationRepository,
	mappings integration.ProductMappingReader,
	orders integration.OrderRepository,
	returns integration.ReturnRepository,
	gateways integration.GatewayFactory,
	syncLog *SyncLogger,
	logger *zap.Logger,
) *ReturnsSyncService {
	return &ReturnsSyncService{
		integrations: integrations,
		mappings:     mappings,
		orders:       orders,
		returns:      returns,
		gateways:     gateways,
		syncLog:      syncLog,
		logger:       logger,
	}
}

// SyncReturn refunds the received units of a return on the platform order
// it came from. Returns of unlinked orders are ignored.
func (s *ReturnsSyncService) SyncReturn(ctx context.Context, returnID uuid.UUID) (*ReturnSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "returns_sync", "SyncReturn")
	defer span.End()

	ret, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if ret.OriginalOrderID == nil {
		return &ReturnSyncResult{Reason: "return has no original order"}, nil
	}

	order, err := s.orders.FindByID(ctx, *ret.OriginalOrderID)
	if errors.Is(err, integration.ErrOrderNotFound) {
		return &ReturnSyncResult{Reason: "original order not found"}, nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !order.IsLinkedTo(integration.PlatformShopify) {
		return &ReturnSyncResult{Reason: "order is not linked to a platform order"}, nil
	}

	in, err := s.integrations.FindByID(ctx, *order.IntegrationID)
	if errors.Is(err, integration.ErrIntegrationNotFound) {
		return &ReturnSyncResult{Reason: "integration not found"}, nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !in.HasCredentials() {
		return &ReturnSyncResult{Reason: "integration has no credentials"}, nil
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntegrationID, in.ID.String(),
		telemetry.SpanAttrExternalOrderID, order.ExternalOrderID,
	)

	started := time.Now()
	result, err := s.refund(ctx, in, order, ret)
	if err != nil {
		telemetry.RecordError(span, err)
		if recErr := s.integrations.RecordError(ctx, in.ID, time.Now(), fmt.Sprintf("refund for %s: %v", order.OrderNumber, err)); recErr != nil {
			s.logger.Warn("failed to record integration error", zap.String("integration_id", in.ID.String()), zap.Error(recErr))
		}
		s.log(ctx, in.ID, ret, order, 0, started, err)
		return nil, err
	}
	if !result.Refunded {
		return result, nil
	}

	s.log(ctx, in.ID, ret, order, result.Lines, started, nil)
	s.logger.Info("return refunded",
		zap.String("integration_id", in.ID.String()),
		zap.String("return_id", ret.ID.String()),
		zap.String("refund_id", result.RefundID),
		zap.Int("lines", result.Lines),
	)
	return result, nil
}

func (s *ReturnsSyncService) refund(ctx context.Context, in *integration.Integration, order *integration.InternalOrder, ret *integration.Return) (*ReturnSyncResult, error) {
	gateway, err := s.gateways.ForIntegration(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	live, err := gateway.GetOrder(ctx, order.ExternalOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform order: %w", err)
	}

	lines, err := s.refundLines(ctx, in, ret, live)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return &ReturnSyncResult{Reason: "no refundable lines"}, nil
	}

	calculated, err := gateway.CalculateRefund(ctx, order.ExternalOrderID, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate refund: %w", err)
	}
	refundID, err := gateway.CreateRefund(ctx, order.ExternalOrderID, calculated)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}
	return &ReturnSyncResult{Refunded: true, RefundID: refundID, Lines: len(lines)}, nil
}

// refundLines keeps return items that have a mapped variant, a live line
// item on the platform order, and a positive received quantity
func (s *ReturnsSyncService) refundLines(ctx context.Context, in *integration.Integration, ret *integration.Return, live *integration.ExternalOrder) ([]integration.RefundLine, error) {
	productIDs := make([]uuid.UUID, 0, len(ret.Items))
	for _, it := range ret.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	mappings, err := s.mappings.FindByIntegrationAndProducts(ctx, in.ID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	variants := make(map[uuid.UUID]string, len(mappings))
	for _, m := range mappings {
		variants[m.ProductID] = m.ExternalVariantID
	}
	lineByVariant := make(map[string]string, len(live.LineItems))
	for _, li := range live.LineItems {
		if li.VariantID != "" {
			lineByVariant[li.VariantID] = li.ID
		}
	}

	var lines []integration.RefundLine
	for _, it := range ret.Items {
		if it.QtyReceived <= 0 {
			continue
		}
		variant := variants[it.ProductID]
		if variant == "" {
			continue
		}
		lineItemID, ok := lineByVariant[variant]
		if !ok {
			continue
		}
		lines = append(lines, integration.RefundLine{
			LineItemID:  lineItemID,
			Quantity:    it.QtyReceived,
			RestockType: it.Disposition.RestockType(),
			LocationID:  in.Settings.ShopifyLocationID,
		})
	}
	return lines, nil
}

func (s *ReturnsSyncService) log(ctx context.Context, integrationID uuid.UUID, ret *integration.Return, order *integration.InternalOrder, lines int, started time.Time, syncErr error) {
	entry := integration.NewSyncLogEntry(integrationID, integration.SyncTypeReturn, integration.SyncDirectionOutbound, integration.SyncTriggerEvent)
	entry.ItemsProcessed = max(lines, 1)
	entry.Metadata["return_id"] = ret.ID.String()
	entry.Metadata["external_order_id"] = order.ExternalOrderID
	if syncErr != nil {
		entry.ItemsFailed = entry.ItemsProcessed
		entry.Errors = []integration.SyncItemError{{ItemID: ret.ID.String(), Message: syncErr.Error()}}
	}
	s.syncLog.Log(ctx, entry, started)
}
