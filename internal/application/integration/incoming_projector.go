package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Incoming quantity metafield coordinates
const (
	IncomingMetafieldNamespace = "inventory"
	IncomingMetafieldKey       = "incoming"
	IncomingMetafieldType      = "number_integer"
)

// IncomingSyncResult summarizes one metafield push
type IncomingSyncResult struct {
	Updated int                         `json:"updated"`
	Failed  int                         `json:"failed"`
	Errors  []integration.SyncItemError `json:"errors,omitempty"`
}

// IncomingProjector computes in-transit quantities from open inbound orders
// and publishes them as product metafields
type IncomingProjector struct {
	integrations integration.IntegrationRepository
	mappings     integration.ProductMappingRepository
	inbound      integration.InboundRepository
	gateways     integration.GatewayFactory
	syncLog      *SyncLogger
	opts         SyncOptions
	logger       *zap.Logger
}

// NewIncomingProjector creates a projector
func NewIncomingProjector(
	integrations integration.IntegrationRepository,
	mappings integration.ProductMappingRepository,
	inbound integration.InboundRepository,
	gateways integration.GatewayFactory,
	syncLog *SyncLogger,
	opts SyncOptions,
	logger *zap.Logger,
) *IncomingProjector {
	return &IncomingProjector{
		integrations: integrations,
		mappings:     mappings,
		inbound:      inbound,
		gateways:     gateways,
		syncLog:      syncLog,
		opts:         opts,
		logger:       logger,
	}
}

// CalculateIncoming writes incoming_qty on every mapping of the integration
// and returns the number of mappings with a positive quantity
func (p *IncomingProjector) CalculateIncoming(ctx context.Context, integrationID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "incoming_projector", "CalculateIncoming")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrIntegrationID, integrationID.String())

	in, err := p.integrations.FindByID(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	mappings, err := p.mappings.FindByIntegration(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load mappings: %w", err)
	}
	if len(mappings) == 0 {
		return 0, nil
	}

	productIDs := make([]uuid.UUID, len(mappings))
	for i, m := range mappings {
		productIDs[i] = m.ProductID
	}
	lines, err := p.inbound.FindLines(ctx, in.ClientID, productIDs, integration.OpenInboundStatuses())
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to load inbound lines: %w", err)
	}
	incoming := integration.SumIncoming(lines)

	// every mapping is written so products whose shipments arrived drop to zero
	quantities := make(map[uuid.UUID]int, len(mappings))
	positive := 0
	for _, m := range mappings {
		qty := incoming[m.ProductID]
		quantities[m.ID] = qty
		if qty > 0 {
			positive++
		}
	}
	if err := p.mappings.UpdateIncomingQty(ctx, quantities); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to update incoming quantities: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrItemCount, positive)
	return positive, nil
}

// SyncIncomingToShopify publishes incoming_qty for every mapping with a
// positive quantity, one metafield call per platform product
func (p *IncomingProjector) SyncIncomingToShopify(ctx context.Context, integrationID uuid.UUID, trigger integration.SyncTrigger) (*IncomingSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "incoming_projector", "SyncIncomingToShopify")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrIntegrationID, integrationID.String())

	started := time.Now()

	in, err := p.integrations.FindByID(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := in.EnsureSyncable(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	mappings, err := p.mappings.FindByIntegration(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}

	result := &IncomingSyncResult{}

	// variants of one platform product share the product's metafield
	var order []string
	perProduct := make(map[string]int)
	for _, m := range mappings {
		if m.IncomingQty <= 0 {
			continue
		}
		if m.ExternalProductID == "" {
			result.Failed++
			result.Errors = append(result.Errors, integration.SyncItemError{
				ItemID:  incomingItemKey(m),
				Message: integration.ErrMappingMissingProduct.Error(),
			})
			continue
		}
		if _, seen := perProduct[m.ExternalProductID]; !seen {
			order = append(order, m.ExternalProductID)
		}
		perProduct[m.ExternalProductID] += m.IncomingQty
	}

	if len(order) == 0 && result.Failed == 0 {
		return result, nil
	}

	var gateway integration.PlatformGateway
	if len(order) > 0 {
		gateway, err = p.gateways.ForIntegration(ctx, in)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to build gateway: %w", err)
		}
	}

	for i, productID := range order {
		if i > 0 {
			if err := pause(ctx, p.opts.MetafieldDelay); err != nil {
				for _, rest := range order[i:] {
					result.Failed++
					result.Errors = append(result.Errors, integration.SyncItemError{ItemID: rest, Message: err.Error()})
				}
				break
			}
		}
		err := gateway.SetProductMetafield(ctx, productID, integration.Metafield{
			Namespace: IncomingMetafieldNamespace,
			Key:       IncomingMetafieldKey,
			Type:      IncomingMetafieldType,
			Value:     strconv.Itoa(perProduct[productID]),
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, integration.SyncItemError{ItemID: productID, Message: err.Error()})
			continue
		}
		result.Updated++
	}

	entry := integration.NewSyncLogEntry(in.ID, integration.SyncTypeIncoming, integration.SyncDirectionOutbound, trigger)
	entry.ItemsProcessed = result.Updated + result.Failed
	entry.ItemsFailed = result.Failed
	entry.Errors = result.Errors
	// the log must land even when the run was cancelled part way
	p.syncLog.Log(context.WithoutCancel(ctx), entry, started)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCount, result.Updated+result.Failed,
		telemetry.SpanAttrFailedCount, result.Failed,
	)
	return result, nil
}

// ProjectAll recalculates and publishes incoming quantities for every active integration
func (p *IncomingProjector) ProjectAll(ctx context.Context) error {
	active, err := p.integrations.FindActive(ctx, integration.PlatformShopify)
	if err != nil {
		return fmt.Errorf("failed to list active integrations: %w", err)
	}

	var errs []error
	for _, in := range active {
		if _, err := p.CalculateIncoming(ctx, in.ID); err != nil {
			errs = append(errs, fmt.Errorf("integration %s: %w", in.ID, err))
			continue
		}
		if _, err := p.SyncIncomingToShopify(ctx, in.ID, integration.SyncTriggerScheduled); err != nil {
			errs = append(errs, fmt.Errorf("integration %s: %w", in.ID, err))
		}
	}
	if len(errs) > 0 {
		p.logger.Error("incoming projection failed for some integrations", zap.Int("failures", len(errs)))
	}
	return errors.Join(errs...)
}

func incomingItemKey(m integration.ProductMapping) string {
	if m.ExternalSKU != "" {
		return m.ExternalSKU
	}
	return m.ProductID.String()
}
