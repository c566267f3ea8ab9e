package integration

import (
	"context"

	"github.com/google/uuid"
)

// ReturnDisposition is what the warehouse did with a returned unit
type ReturnDisposition string

const (
	ReturnDispositionRestock ReturnDisposition = "restock"
	ReturnDispositionDamaged ReturnDisposition = "damaged"
	ReturnDispositionDispose ReturnDisposition = "dispose"
)

// RestockType is the platform's refund restock instruction
type RestockType string

const (
	RestockTypeReturn    RestockType = "return"
	RestockTypeNoRestock RestockType = "no_restock"
)

// RestockType maps a disposition to the platform restock instruction
func (d ReturnDisposition) RestockType() RestockType {
	if d == ReturnDispositionRestock {
		return RestockTypeReturn
	}
	return RestockTypeNoRestock
}

// Return is a completed customer return
type Return struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	// OriginalOrderID links the return to the outbound order it came from
	OriginalOrderID *uuid.UUID
	Status          string
	Items           []ReturnItem
}

// ReturnItem is one returned product
type ReturnItem struct {
	ProductID   uuid.UUID
	QtyReceived int
	Disposition ReturnDisposition
}

// ReturnRepository reads returns
type ReturnRepository interface {
	// FindByID finds a return with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)
}
