package order

import (
	"context"
	"time"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order/dto"
)

// UseCase is the order lifecycle surface. Every transition is one atomic
// unit: the status change and its inventory side effect commit together or
// not at all.
type UseCase interface {
	CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*dto.CreateOrderResult, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	Transition(ctx context.Context, orderID string, target model.OrderStatus, actor auth.Actor) (*model.Order, error)
	// CancelStalePending cancels orders stuck in PENDING_CONFIRMATION longer
	// than olderThan, reusing Transition. Returns how many were cancelled.
	CancelStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}
