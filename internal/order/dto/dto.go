package dto

import (
	"time"

	"github.com/yemba/grocery-core/internal/model"
)

type CreateOrderResult struct {
	Order *model.Order
	// AlreadyProcessed marks an idempotency hit: the returned order was
	// created by an earlier request bearing the same key.
	AlreadyProcessed bool
}

// Event types published to the order events topic.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	PrevStatus  string    `json:"prev_status,omitempty"`
	UserID      string    `json:"user_id"`
	Total       int64     `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}
