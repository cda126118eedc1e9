package order

import (
	"context"

	"github.com/yemba/grocery-core/internal/model"
)

// PriceQuote is the catalog collaborator's answer at order-creation time.
// Prices are integers in the smallest currency unit.
type PriceQuote struct {
	UnitPrice int64
	IsActive  bool
}

// PriceProvider yields the current price snapshot for a product. A nil quote
// means the product is unknown.
type PriceProvider interface {
	GetPrice(ctx context.Context, productID string) (*PriceQuote, error)
}

// FeeProvider quotes the delivery fee for a zone and cart subtotal.
type FeeProvider interface {
	QuoteFee(ctx context.Context, zoneID string, cartSubtotal int64) (int64, error)
}

// OrderPolicy is an optional pre-creation check (spend limits, abuse rules).
// A nil policy allows everything.
type OrderPolicy interface {
	ValidateCreate(ctx context.Context, userID string, estimatedTotal int64) error
}

// EventPublisher announces lifecycle changes to downstream collaborators.
// Publishing is best-effort and must never fail the transaction that already
// committed; implementations log and move on.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *model.Order)
	OrderStatusChanged(ctx context.Context, o *model.Order, from model.OrderStatus)
}
