package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// LogNotifier reports imports and fulfillments to the application log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier writing to logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// OrderImported implements integration.Notifier
func (n *LogNotifier) OrderImported(_ context.Context, order *integration.InternalOrder) error {
	fields := []zap.Field{
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
	}
	if order.IsRush {
		n.logger.Warn("rush order imported", fields...)
		return nil
	}
	n.logger.Info("order imported", fields...)
	return nil
}

// FulfillmentSynced implements integration.Notifier
func (n *LogNotifier) FulfillmentSynced(_ context.Context, orderID uuid.UUID, trackingNumber string) error {
	n.logger.Info("shipment reported to store",
		zap.String("order_id", orderID.String()),
		zap.String("tracking_number", trackingNumber),
	)
	return nil
}

var _ integration.Notifier = (*LogNotifier)(nil)
