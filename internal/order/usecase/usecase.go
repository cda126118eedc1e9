package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/idempotency"
	"github.com/yemba/grocery-core/internal/inventory"
	invdto "github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order"
	"github.com/yemba/grocery-core/internal/order/dto"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
	"go.uber.org/zap"
)

type orderUseCase struct {
	repo   order.Repository
	inv    inventory.UseCase
	guard  *idempotency.Guard
	txm    postgres.TxManager
	prices order.PriceProvider
	fees   order.FeeProvider
	policy order.OrderPolicy
	events order.EventPublisher
	logger logger.ZapLogger
}

// NewOrderUseCase wires the lifecycle state machine. policy and events may be
// nil; fees may be nil when no delivery zones are configured.
func NewOrderUseCase(
	repo order.Repository,
	inv inventory.UseCase,
	guard *idempotency.Guard,
	txm postgres.TxManager,
	prices order.PriceProvider,
	fees order.FeeProvider,
	policy order.OrderPolicy,
	events order.EventPublisher,
	log logger.ZapLogger,
) order.UseCase {
	return &orderUseCase{
		repo:   repo,
		inv:    inv,
		guard:  guard,
		txm:    txm,
		prices: prices,
		fees:   fees,
		policy: policy,
		events: events,
		logger: log,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*dto.CreateOrderResult, error) {
	if len(input.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	// Collaborator calls (price snapshot, fee quote, policy) happen before
	// the transaction opens; no lock is held across them.
	now := time.Now()
	o := &model.Order{
		ID:               uuid.New().String(),
		OrderNumber:      newOrderNumber(now),
		UserID:           input.UserID,
		Status:           model.OrderPendingConfirmation,
		DeliveryZoneID:   input.DeliveryZoneID,
		DeliveryPhone:    input.DeliveryPhone,
		CustomerNotes:    input.CustomerNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastStatusUpdate: now,
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		o.IdempotencyKey = &key
	}

	var subtotal int64
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, order.ErrInvalidQuantity)
		}

		quote, err := uc.prices.GetPrice(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("price lookup for %s: %w", line.ProductID, err)
		}
		if quote == nil || !quote.IsActive {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, order.ErrProductUnavailable)
		}

		lineTotal := quote.UnitPrice * line.Quantity
		o.Lines = append(o.Lines, model.OrderLine{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: quote.UnitPrice,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}

	var deliveryFee int64
	if uc.fees != nil && input.DeliveryZoneID != "" {
		fee, err := uc.fees.QuoteFee(ctx, input.DeliveryZoneID, subtotal)
		if err != nil {
			return nil, fmt.Errorf("delivery fee quote: %w", err)
		}
		deliveryFee = fee
	}

	o.Subtotal = subtotal
	o.DeliveryFee = deliveryFee
	o.Total = subtotal + deliveryFee

	if uc.policy != nil {
		if err := uc.policy.ValidateCreate(ctx, input.UserID, o.Total); err != nil {
			return nil, err
		}
	}

	// Keys are private to their bearer: another user presenting the same key
	// gets a fresh order, never a replay of someone else's.
	scope := idempotency.ScopeOrderCreate + ":" + input.UserID
	ref, already, err := uc.guard.Execute(ctx, input.IdempotencyKey, scope,
		func(ctx context.Context, tx *sqlx.Tx) (string, error) {
			if err := uc.repo.Create(ctx, tx, o); err != nil {
				return "", fmt.Errorf("persist order: %w", err)
			}
			return o.ID, nil
		})
	if err != nil {
		return nil, err
	}

	if already {
		existing, err := uc.repo.GetByID(ctx, ref)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, order.ErrOrderNotFound
		}
		return &dto.CreateOrderResult{Order: existing, AlreadyProcessed: true}, nil
	}

	if uc.events != nil {
		uc.events.OrderCreated(ctx, o)
	}
	uc.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int64("total", o.Total),
	)
	return &dto.CreateOrderResult{Order: o}, nil
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (uc *orderUseCase) Transition(ctx context.Context, orderID string, target model.OrderStatus, actor auth.Actor) (*model.Order, error) {
	if err := authorizeTarget(target, actor); err != nil {
		return nil, err
	}

	var updated *model.Order
	var from model.OrderStatus

	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		o, err := uc.repo.GetByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return order.ErrOrderNotFound
		}
		from = o.Status

		if target == model.OrderCancelled && actor.Role == auth.RoleCustomer {
			if o.UserID != actor.UserID {
				return order.ErrPermissionDenied
			}
			// Customers may only back out before staff confirmed the order.
			if o.Status != model.OrderPendingConfirmation {
				return fmt.Errorf("cannot cancel after confirmation: %w", order.ErrPermissionDenied)
			}
		}

		if !o.CanTransitionTo(target) {
			return &order.InvalidTransitionError{From: o.Status, To: target}
		}

		items := lineRequests(o)
		switch {
		case target == model.OrderConfirmed:
			if _, err := uc.inv.ReserveTx(ctx, tx, items, o.OrderNumber); err != nil {
				return err
			}
		case target == model.OrderCancelled && o.HoldsReservation():
			if err := uc.inv.ReleaseTx(ctx, tx, items, o.OrderNumber); err != nil {
				return err
			}
		case target == model.OrderDelivered:
			if err := uc.inv.CommitOutboundTx(ctx, tx, items, o.OrderNumber); err != nil {
				return err
			}
		}

		if target == model.OrderOutForDelivery && actor.IsCourier() {
			o.CourierID = &actor.UserID
		}

		o.ApplyStatus(target, time.Now())
		if err := uc.repo.UpdateStatus(ctx, tx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.events != nil {
		uc.events.OrderStatusChanged(ctx, updated, from)
	}
	uc.logger.Info("order transitioned",
		zap.String("order_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor.UserID),
	)
	return updated, nil
}

func (uc *orderUseCase) CancelStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	ids, err := uc.repo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	actor := auth.Actor{UserID: "system", Role: auth.RoleSystem}
	cancelled := 0
	for _, id := range ids {
		_, err := uc.Transition(ctx, id, model.OrderCancelled, actor)
		if err != nil {
			// An order that moved on since the listing is not a failure.
			if errors.Is(err, order.ErrInvalidTransition) {
				continue
			}
			uc.logger.Error("stale order cancellation failed",
				zap.String("order_id", id), zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// authorizeTarget gates transitions by role before any row is locked.
// Ownership checks for customer cancellation happen inside the transaction.
func authorizeTarget(target model.OrderStatus, actor auth.Actor) error {
	if actor.IsSystem() {
		return nil
	}
	switch target {
	case model.OrderConfirmed, model.OrderCompleted, model.OrderRefunded:
		if !actor.IsStaff() {
			return fmt.Errorf("%s requires staff: %w", target, order.ErrPermissionDenied)
		}
	case model.OrderPicking, model.OrderPacked, model.OrderProcessing, model.OrderReadyForDelivery:
		if !actor.IsWarehouse() {
			return fmt.Errorf("%s requires warehouse: %w", target, order.ErrPermissionDenied)
		}
	case model.OrderOutForDelivery, model.OrderDelivered:
		if !actor.IsCourier() && !actor.IsStaff() {
			return fmt.Errorf("%s requires courier: %w", target, order.ErrPermissionDenied)
		}
	case model.OrderCancelled:
		// Staff and owners may cancel; owner validation needs the row.
		if !actor.IsStaff() && actor.Role != auth.RoleCustomer {
			return fmt.Errorf("cancel requires staff or owner: %w", order.ErrPermissionDenied)
		}
	default:
		return fmt.Errorf("unknown target status %s: %w", target, order.ErrInvalidTransition)
	}
	return nil
}

func lineRequests(o *model.Order) []invdto.ItemRequest {
	items := make([]invdto.ItemRequest, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, invdto.ItemRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return items
}

// newOrderNumber builds a human-readable reference like ORD-20260830-1A2B3C4D.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
