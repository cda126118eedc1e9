package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/inventory"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
	"go.uber.org/zap"
)

// ErrLockBusy is returned when the advisory mutation lock could not be taken.
var ErrLockBusy = errors.New("inventory busy, try again later")

// Locker is the advisory distributed lock held around manual adjustments.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

const (
	lockTTL        = 5 * time.Second
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

type inventoryUseCase struct {
	repo   inventory.Repository
	txm    postgres.TxManager
	locker Locker
	logger logger.ZapLogger
}

// NewInventoryUseCase builds the reservation engine. locker may be nil, in
// which case manual adjustments rely on row locks alone.
func NewInventoryUseCase(repo inventory.Repository, txm postgres.TxManager, locker Locker, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		txm:    txm,
		locker: locker,
		logger: log,
	}
}

func (uc *inventoryUseCase) CheckAvailable(ctx context.Context, items []dto.ItemRequest) (*dto.AvailabilityResult, error) {
	result := &dto.AvailabilityResult{Available: true}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, req := range items {
			item, err := uc.repo.GetByProduct(ctx, tx, req.ProductID)
			if err != nil {
				return err
			}

			var available int64
			if item != nil {
				available = item.Available()
			}

			sufficient := available >= req.Quantity
			if !sufficient {
				result.Available = false
			}
			result.Items = append(result.Items, dto.AvailabilityLine{
				ProductID:  req.ProductID,
				Requested:  req.Quantity,
				Available:  available,
				Sufficient: sufficient,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *inventoryUseCase) Reserve(ctx context.Context, items []dto.ItemRequest, reference string) (*dto.ReservationResult, error) {
	var result *dto.ReservationResult
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		result, err = uc.ReserveTx(ctx, tx, items, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReserveTx locks every affected row, verifies all lines at once and only then
// mutates. All-or-nothing: one short line fails the whole call with the full
// shortage list and the enclosing transaction rolls back.
func (uc *inventoryUseCase) ReserveTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) (*dto.ReservationResult, error) {
	items = mergedByProduct(items)

	type lockedLine struct {
		req  dto.ItemRequest
		item *model.InventoryItem
	}

	locked := make([]lockedLine, 0, len(items))
	var shortages []inventory.LineShortage

	for _, req := range items {
		item, err := uc.repo.GetByProductForUpdate(ctx, tx, req.ProductID)
		if err != nil {
			return nil, err
		}

		var available int64
		if item != nil {
			available = item.Available()
		}
		if available < req.Quantity {
			shortages = append(shortages, inventory.LineShortage{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: available,
			})
			continue
		}
		locked = append(locked, lockedLine{req: req, item: item})
	}

	if len(shortages) > 0 {
		return nil, &inventory.InsufficientStockError{Lines: shortages}
	}

	now := time.Now()
	result := &dto.ReservationResult{}

	for _, l := range locked {
		l.item.Reserved += l.req.Quantity
		l.item.UpdatedAt = now
		if err := uc.repo.UpdateCounts(ctx, tx, l.item); err != nil {
			return nil, err
		}

		res, err := uc.repo.GetReservationForUpdate(ctx, tx, l.req.ProductID, reference)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = &model.StockReservation{
				ID:        uuid.New().String(),
				ProductID: l.req.ProductID,
				Reference: reference,
				CreatedAt: now,
			}
		}
		res.Quantity += l.req.Quantity
		res.Status = model.ReservationActive
		res.UpdatedAt = now
		if err := uc.repo.SaveReservation(ctx, tx, res); err != nil {
			return nil, err
		}

		if err := uc.repo.LogMovement(ctx, tx, &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: l.item.ID,
			ProductID:       l.req.ProductID,
			MovementType:    model.MovementOutbound,
			Quantity:        -l.req.Quantity,
			Reference:       reference,
			Notes:           "reserved for order: " + reference,
			CreatedAt:       now,
		}); err != nil {
			return nil, err
		}

		result.ReservedItems = append(result.ReservedItems, dto.ReservedItem{
			ProductID:       l.req.ProductID,
			Quantity:        l.req.Quantity,
			InventoryItemID: l.item.ID,
		})
	}

	return result, nil
}

func (uc *inventoryUseCase) Release(ctx context.Context, items []dto.ItemRequest, reference string) error {
	return uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return uc.ReleaseTx(ctx, tx, items, reference)
	})
}

func (uc *inventoryUseCase) ReleaseTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) error {
	items = mergedByProduct(items)
	now := time.Now()

	for _, req := range items {
		item, res, err := uc.lockReservedLine(ctx, tx, req, reference)
		if err != nil {
			return err
		}

		item.Reserved -= req.Quantity
		item.UpdatedAt = now
		if err := uc.repo.UpdateCounts(ctx, tx, item); err != nil {
			return err
		}

		res.Quantity -= req.Quantity
		if res.Quantity == 0 {
			res.Status = model.ReservationReleased
		}
		res.UpdatedAt = now
		if err := uc.repo.SaveReservation(ctx, tx, res); err != nil {
			return err
		}

		if err := uc.repo.LogMovement(ctx, tx, &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			ProductID:       req.ProductID,
			MovementType:    model.MovementReturnIn,
			Quantity:        req.Quantity,
			Reference:       reference,
			Notes:           "released reservation: " + reference,
			CreatedAt:       now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (uc *inventoryUseCase) CommitOutbound(ctx context.Context, items []dto.ItemRequest, reference string) error {
	return uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return uc.CommitOutboundTx(ctx, tx, items, reference)
	})
}

// CommitOutboundTx converts a prior reservation into an actual stock
// decrement. A missing or short reservation is a sequencing bug upstream and
// fails the calling transition.
func (uc *inventoryUseCase) CommitOutboundTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) error {
	items = mergedByProduct(items)
	now := time.Now()

	for _, req := range items {
		item, res, err := uc.lockReservedLine(ctx, tx, req, reference)
		if err != nil {
			return err
		}

		item.Reserved -= req.Quantity
		item.OnHand -= req.Quantity
		item.UpdatedAt = now
		if err := uc.repo.UpdateCounts(ctx, tx, item); err != nil {
			return err
		}

		res.Quantity -= req.Quantity
		if res.Quantity == 0 {
			res.Status = model.ReservationCommitted
		}
		res.UpdatedAt = now
		if err := uc.repo.SaveReservation(ctx, tx, res); err != nil {
			return err
		}

		if err := uc.repo.LogMovement(ctx, tx, &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			ProductID:       req.ProductID,
			MovementType:    model.MovementOutbound,
			Quantity:        -req.Quantity,
			Reference:       reference,
			Notes:           "committed outbound: " + reference,
			CreatedAt:       now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// lockReservedLine locks the item row and its reservation row and verifies the
// reservation covers the requested quantity.
func (uc *inventoryUseCase) lockReservedLine(ctx context.Context, tx *sqlx.Tx, req dto.ItemRequest, reference string) (*model.InventoryItem, *model.StockReservation, error) {
	item, err := uc.repo.GetByProductForUpdate(ctx, tx, req.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, fmt.Errorf("product %s: %w", req.ProductID, inventory.ErrItemNotFound)
	}

	res, err := uc.repo.GetReservationForUpdate(ctx, tx, req.ProductID, reference)
	if err != nil {
		return nil, nil, err
	}
	if res == nil || res.Status != model.ReservationActive || res.Quantity < req.Quantity {
		return nil, nil, fmt.Errorf("product %s, reference %s, quantity %d: %w",
			req.ProductID, reference, req.Quantity, inventory.ErrReservationMismatch)
	}
	if item.Reserved < req.Quantity {
		return nil, nil, fmt.Errorf("product %s: reserved counter %d below reservation %d: %w",
			req.ProductID, item.Reserved, req.Quantity, inventory.ErrReservationMismatch)
	}
	return item, res, nil
}

func (uc *inventoryUseCase) RecordInbound(ctx context.Context, input *dto.RecordInboundInput) (*model.InventoryItem, error) {
	var item *model.InventoryItem
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		item, err = uc.RecordInboundTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (uc *inventoryUseCase) RecordInboundTx(ctx context.Context, tx *sqlx.Tx, input *dto.RecordInboundInput) (*model.InventoryItem, error) {
	now := time.Now()

	item, err := uc.repo.GetByProductForUpdate(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		// First receipt for this product creates the ledger row.
		item = &model.InventoryItem{
			ID:        uuid.New().String(),
			ProductID: input.ProductID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uc.repo.CreateItem(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	item.OnHand += input.Quantity
	item.UpdatedAt = now
	if err := uc.repo.UpdateCounts(ctx, tx, item); err != nil {
		return nil, err
	}

	var createdBy *string
	if input.ActorID != "" {
		createdBy = &input.ActorID
	}
	if err := uc.repo.LogMovement(ctx, tx, &model.StockMovement{
		ID:              uuid.New().String(),
		InventoryItemID: item.ID,
		ProductID:       input.ProductID,
		MovementType:    model.MovementInbound,
		Quantity:        input.Quantity,
		Reference:       input.Reference,
		Notes:           input.Notes,
		CreatedBy:       createdBy,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}

	return item, nil
}

func (uc *inventoryUseCase) AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (*model.InventoryItem, error) {
	if uc.locker != nil {
		lockKey := "lock:inventory:" + input.ProductID
		token := uuid.New().String()

		acquired := false
		for i := 0; i < lockRetries; i++ {
			ok, err := uc.locker.AcquireLock(ctx, lockKey, token, lockTTL)
			if err != nil {
				uc.logger.Error("failed to acquire inventory lock", zap.Error(err))
			}
			if ok {
				acquired = true
				break
			}
			time.Sleep(lockRetryDelay)
		}
		if !acquired {
			return nil, ErrLockBusy
		}
		defer uc.locker.ReleaseLock(ctx, lockKey, token)
	}

	var item *model.InventoryItem
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		item, err = uc.repo.GetByProductForUpdate(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("product %s: %w", input.ProductID, inventory.ErrItemNotFound)
		}

		newOnHand := item.OnHand + input.Delta
		if newOnHand < 0 {
			return fmt.Errorf("product %s: on_hand %d, delta %d: %w",
				input.ProductID, item.OnHand, input.Delta, inventory.ErrNegativeStock)
		}

		now := time.Now()
		item.OnHand = newOnHand
		item.UpdatedAt = now
		if err := uc.repo.UpdateCounts(ctx, tx, item); err != nil {
			return err
		}

		var createdBy *string
		if input.ActorID != "" {
			createdBy = &input.ActorID
		}
		return uc.repo.LogMovement(ctx, tx, &model.StockMovement{
			ID:              uuid.New().String(),
			InventoryItemID: item.ID,
			ProductID:       input.ProductID,
			MovementType:    model.MovementAdjust,
			Quantity:        input.Delta,
			Notes:           input.Reason,
			CreatedBy:       createdBy,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (uc *inventoryUseCase) GetProductInventory(ctx context.Context, productID string) (*model.InventoryItem, error) {
	var item *model.InventoryItem
	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		item, err = uc.repo.GetByProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		// Zero inventory for products that never had stock.
		return &model.InventoryItem{ProductID: productID}, nil
	}
	return item, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, page, pageSize int) ([]model.InventoryItem, int, error) {
	return uc.repo.FindAll(ctx, &dto.InventoryFilters{
		LowStock: true,
		Page:     page,
		PageSize: pageSize,
	})
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

// mergedByProduct folds duplicate product lines into a single request per
// product, so each row is locked and written exactly once, and orders the
// result so concurrent multi-line calls lock rows in one global order and
// cannot deadlock each other.
func mergedByProduct(items []dto.ItemRequest) []dto.ItemRequest {
	byProduct := make(map[string]int64, len(items))
	for _, req := range items {
		byProduct[req.ProductID] += req.Quantity
	}
	out := make([]dto.ItemRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, dto.ItemRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
