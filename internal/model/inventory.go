package model

import "time"

// Movement types for StockMovement.
const (
	MovementInbound  = "INBOUND"
	MovementOutbound = "OUTBOUND"
	MovementAdjust   = "ADJUST"
	MovementReturnIn = "RETURN_IN"
	MovementDamaged  = "DAMAGED"
)

type InventoryItem struct {
	ID           string    `db:"id"`
	ProductID    string    `db:"product_id"`
	OnHand       int64     `db:"on_hand"`
	Reserved     int64     `db:"reserved"`
	ReorderPoint int64     `db:"reorder_point"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Available is the quantity sellable right now.
func (i *InventoryItem) Available() int64 {
	if i.OnHand < i.Reserved {
		return 0
	}
	return i.OnHand - i.Reserved
}

func (i *InventoryItem) NeedsReorder() bool {
	return i.ReorderPoint > 0 && i.Available() <= i.ReorderPoint
}

// StockMovement is an append-only audit record. Quantity is positive for
// INBOUND/RETURN_IN/positive adjustments and negative for OUTBOUND/DAMAGED.
type StockMovement struct {
	ID              string    `db:"id"`
	InventoryItemID string    `db:"inventory_item_id"`
	ProductID       string    `db:"product_id"`
	MovementType    string    `db:"movement_type"`
	Quantity        int64     `db:"quantity"`
	Reference       string    `db:"reference"`
	Notes           string    `db:"notes"`
	CreatedBy       *string   `db:"created_by"`
	CreatedAt       time.Time `db:"created_at"`
}

// Reservation statuses for StockReservation.
const (
	ReservationActive    = "ACTIVE"
	ReservationCommitted = "COMMITTED"
	ReservationReleased  = "RELEASED"
)

// StockReservation tracks the quantity held against one reference (an order
// number) per product, so release and commit can verify a matching prior
// reserve instead of trusting the aggregate counter alone.
type StockReservation struct {
	ID        string    `db:"id"`
	ProductID string    `db:"product_id"`
	Reference string    `db:"reference"`
	Quantity  int64     `db:"quantity"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
