package integration

import (
	"context"

	"github.com/google/uuid"
)

// InboundStatus is the status of an inbound (purchase) order
type InboundStatus string

const (
	InboundStatusOrdered   InboundStatus = "ordered"
	InboundStatusInTransit InboundStatus = "in_transit"
	InboundStatusArrived   InboundStatus = "arrived"
	InboundStatusReceived  InboundStatus = "received"
	InboundStatusCancelled InboundStatus = "cancelled"
)

// OpenInboundStatuses are the statuses whose outstanding quantity counts as incoming
func OpenInboundStatuses() []InboundStatus {
	return []InboundStatus{InboundStatusOrdered, InboundStatusInTransit, InboundStatusArrived}
}

// InboundLine is one product line of an inbound order
type InboundLine struct {
	ProductID   uuid.UUID
	QtyExpected int
	QtyReceived int
}

// Outstanding returns expected minus received floored at zero
func (l InboundLine) Outstanding() int {
	if d := l.QtyExpected - l.QtyReceived; d > 0 {
		return d
	}
	return 0
}

// SumIncoming totals outstanding quantity per product
func SumIncoming(lines []InboundLine) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, l := range lines {
		out[l.ProductID] += l.Outstanding()
	}
	return out
}

// InboundRepository reads inbound order lines
type InboundRepository interface {
	// FindLines returns lines of the client's inbound orders in the given
	// statuses, limited to productIDs
	FindLines(ctx context.Context, clientID uuid.UUID, productIDs []uuid.UUID, statuses []InboundStatus) ([]InboundLine, error)
}
