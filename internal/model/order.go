package model

import "time"

type OrderStatus string

const (
	OrderPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
	OrderConfirmed           OrderStatus = "CONFIRMED"
	OrderPicking             OrderStatus = "PICKING"
	OrderPacked              OrderStatus = "PACKED"
	OrderProcessing          OrderStatus = "PROCESSING"
	OrderReadyForDelivery    OrderStatus = "READY_FOR_DELIVERY"
	OrderOutForDelivery      OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered           OrderStatus = "DELIVERED"
	OrderCompleted           OrderStatus = "COMPLETED"
	OrderCancelled           OrderStatus = "CANCELLED"
	OrderRefunded            OrderStatus = "REFUNDED"
)

// orderTransitions is the full lifecycle table. Terminal states map to nil.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingConfirmation: {OrderConfirmed, OrderCancelled},
	OrderConfirmed:           {OrderPicking, OrderProcessing, OrderCancelled},
	OrderPicking:             {OrderPacked, OrderCancelled},
	OrderPacked:              {OrderReadyForDelivery, OrderCancelled},
	OrderProcessing:          {OrderReadyForDelivery, OrderCancelled},
	OrderReadyForDelivery:    {OrderOutForDelivery, OrderCancelled},
	OrderOutForDelivery:      {OrderDelivered, OrderCancelled},
	OrderDelivered:           {OrderCompleted, OrderRefunded},
	OrderCompleted:           nil,
	OrderCancelled:           nil,
	OrderRefunded:            nil,
}

// statusesHoldingReservation are the states in which stock is reserved but not
// yet committed; cancelling from one of these must release the reservation.
var statusesHoldingReservation = map[OrderStatus]bool{
	OrderConfirmed:        true,
	OrderPicking:          true,
	OrderPacked:           true,
	OrderProcessing:       true,
	OrderReadyForDelivery: true,
	OrderOutForDelivery:   true,
}

type Order struct {
	ID             string      `db:"id"`
	OrderNumber    string      `db:"order_number"`
	UserID         string      `db:"user_id"`
	Status         OrderStatus `db:"status"`
	Subtotal       int64       `db:"subtotal"`
	DeliveryFee    int64       `db:"delivery_fee"`
	Total          int64       `db:"total"`
	DeliveryZoneID string      `db:"delivery_zone_id"`
	DeliveryPhone  string      `db:"delivery_phone"`
	CustomerNotes  string      `db:"customer_notes"`
	IdempotencyKey *string     `db:"idempotency_key"`
	CourierID      *string     `db:"courier_id"`

	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	LastStatusUpdate time.Time  `db:"last_status_update"`
	ConfirmedAt      *time.Time `db:"confirmed_at"`
	CancelledAt      *time.Time `db:"cancelled_at"`
	DeliveredAt      *time.Time `db:"delivered_at"`

	Lines []OrderLine `db:"-"`
}

// CanTransitionTo reports whether the lifecycle table allows moving to target
// from the order's current status. Pure; no side effects.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// HoldsReservation reports whether stock is currently reserved for this order.
func (o *Order) HoldsReservation() bool {
	return statusesHoldingReservation[o.Status]
}

// IsTerminal reports whether the order can never change status again.
func (o *Order) IsTerminal() bool {
	return orderTransitions[o.Status] == nil
}

// ApplyStatus records the new status and stamps the matching timestamp. The
// caller must have validated the transition first.
func (o *Order) ApplyStatus(target OrderStatus, now time.Time) {
	o.Status = target
	o.LastStatusUpdate = now
	o.UpdatedAt = now
	switch target {
	case OrderConfirmed:
		o.ConfirmedAt = &now
	case OrderCancelled:
		o.CancelledAt = &now
	case OrderDelivered:
		o.DeliveredAt = &now
	}
}

type OrderLine struct {
	ID        string `db:"id"`
	OrderID   string `db:"order_id"`
	ProductID string `db:"product_id"`
	Quantity  int64  `db:"quantity"`
	// UnitPrice is snapshotted at order creation in minor currency units and
	// never changes afterwards.
	UnitPrice int64 `db:"unit_price"`
	LineTotal int64 `db:"line_total"`
}
