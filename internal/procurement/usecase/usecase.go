package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/inventory"
	invdto "github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
	"github.com/yemba/grocery-core/internal/procurement"
	"github.com/yemba/grocery-core/internal/procurement/dto"
	"go.uber.org/zap"
)

type procurementUseCase struct {
	repo   procurement.Repository
	inv    inventory.UseCase
	txm    postgres.TxManager
	logger logger.ZapLogger
}

func NewProcurementUseCase(repo procurement.Repository, inv inventory.UseCase, txm postgres.TxManager, log logger.ZapLogger) procurement.UseCase {
	return &procurementUseCase{
		repo:   repo,
		inv:    inv,
		txm:    txm,
		logger: log,
	}
}

func (uc *procurementUseCase) CreateReceipt(ctx context.Context, input *dto.CreateReceiptInput) (*model.GoodsReceipt, error) {
	var receipt *model.GoodsReceipt

	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		po, err := uc.repo.GetPurchaseOrderForUpdate(ctx, tx, input.PurchaseOrderID)
		if err != nil {
			return err
		}
		if po == nil {
			return fmt.Errorf("purchase order %s: %w", input.PurchaseOrderID, procurement.ErrPurchaseOrderNotFound)
		}

		now := time.Now()
		var createdBy *string
		if input.ActorID != "" {
			createdBy = &input.ActorID
		}
		receipt = &model.GoodsReceipt{
			ID:              uuid.New().String(),
			ReceiptNumber:   input.ReceiptNumber,
			PurchaseOrderID: po.ID,
			Status:          model.ReceiptDraft,
			ReceiptDate:     input.ReceiptDate,
			Notes:           input.Notes,
			CreatedBy:       createdBy,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		poItems := make(map[string]*model.PurchaseOrderItem, len(po.Items))
		for i := range po.Items {
			poItems[po.Items[i].ID] = &po.Items[i]
		}

		// Lines referencing the same PO item count against its pending
		// quantity together, not each against the full amount.
		claimed := make(map[string]int64, len(input.Items))
		for _, line := range input.Items {
			poItem, ok := poItems[line.PurchaseOrderItemID]
			if !ok {
				return fmt.Errorf("item %s: %w", line.PurchaseOrderItemID, procurement.ErrPurchaseOrderItemNotFound)
			}

			claimed[poItem.ID] += line.QuantityAccepted + line.QuantityRejected
			if claimed[poItem.ID] > poItem.QuantityPending() {
				return fmt.Errorf("item %s: total %d, pending %d: %w",
					line.PurchaseOrderItemID, claimed[poItem.ID], poItem.QuantityPending(), procurement.ErrQuantityExceedsPending)
			}

			receipt.Items = append(receipt.Items, model.ReceiptItem{
				ID:                  uuid.New().String(),
				GoodsReceiptID:      receipt.ID,
				PurchaseOrderItemID: poItem.ID,
				ProductID:           poItem.ProductID,
				QuantityAccepted:    line.QuantityAccepted,
				QuantityRejected:    line.QuantityRejected,
				RejectionReason:     line.RejectionReason,
			})
		}

		return uc.repo.CreateReceipt(ctx, tx, receipt)
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("receipt number %s: %w", input.ReceiptNumber, procurement.ErrDuplicateReceiptNumber)
		}
		return nil, err
	}
	return receipt, nil
}

// ValidateReceipt locks the receipt, applies every accepted quantity to the
// ledger and advances the purchase order, all in one transaction. A crash
// cannot leave stock updated without the receipt marked validated.
func (uc *procurementUseCase) ValidateReceipt(ctx context.Context, receiptID string, actor auth.Actor) (*dto.ValidateReceiptResult, error) {
	result := &dto.ValidateReceiptResult{ReceiptID: receiptID}

	err := uc.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		receipt, err := uc.repo.GetReceiptForUpdate(ctx, tx, receiptID)
		if err != nil {
			return err
		}
		if receipt == nil {
			return fmt.Errorf("receipt %s: %w", receiptID, procurement.ErrReceiptNotFound)
		}

		// Idempotent by state: a validated receipt is done, not an error.
		if receipt.IsValidated() {
			result.AlreadyValidated = true
			return nil
		}
		if receipt.Status != model.ReceiptDraft {
			return fmt.Errorf("receipt %s status %s: %w", receiptID, receipt.Status, procurement.ErrReceiptNotDraft)
		}
		if len(receipt.Items) == 0 {
			return fmt.Errorf("receipt %s: %w", receiptID, procurement.ErrReceiptEmpty)
		}

		po, err := uc.repo.GetPurchaseOrderForUpdate(ctx, tx, receipt.PurchaseOrderID)
		if err != nil {
			return err
		}
		if po == nil {
			return fmt.Errorf("purchase order %s: %w", receipt.PurchaseOrderID, procurement.ErrPurchaseOrderNotFound)
		}

		poItems := make(map[string]*model.PurchaseOrderItem, len(po.Items))
		for i := range po.Items {
			poItems[po.Items[i].ID] = &po.Items[i]
		}

		for _, item := range receipt.Items {
			poItem, ok := poItems[item.PurchaseOrderItemID]
			if !ok {
				return fmt.Errorf("item %s: %w", item.PurchaseOrderItemID, procurement.ErrPurchaseOrderItemNotFound)
			}

			// Only accepted quantity reaches the ledger.
			if item.QuantityAccepted > 0 {
				if _, err := uc.inv.RecordInboundTx(ctx, tx, &invdto.RecordInboundInput{
					ProductID: item.ProductID,
					Quantity:  item.QuantityAccepted,
					Reference: receipt.ReceiptNumber,
					Notes:     fmt.Sprintf("goods receipt %s, PO %s", receipt.ReceiptNumber, po.PONumber),
					ActorID:   actor.UserID,
				}); err != nil {
					return err
				}
				result.MovementsCreated++
			}

			poItem.QuantityReceived += item.QuantityAccepted
			if err := uc.repo.UpdatePurchaseOrderItemReceived(ctx, tx, poItem); err != nil {
				return err
			}
			result.ItemsProcessed++
		}

		now := time.Now()
		receipt.Status = model.ReceiptValidated
		receipt.ValidatedAt = &now
		receipt.UpdatedAt = now
		if actor.UserID != "" {
			id := actor.UserID
			receipt.ValidatedBy = &id
		}
		if err := uc.repo.UpdateReceiptStatus(ctx, tx, receipt); err != nil {
			return err
		}

		allReceived := true
		anyReceived := false
		for i := range po.Items {
			if po.Items[i].QuantityReceived < po.Items[i].QuantityOrdered {
				allReceived = false
			}
			if po.Items[i].QuantityReceived > 0 {
				anyReceived = true
			}
		}
		switch {
		case allReceived:
			po.Status = model.PurchaseOrderReceived
		case anyReceived:
			po.Status = model.PurchaseOrderPartiallyReceived
		}
		po.UpdatedAt = now
		return uc.repo.UpdatePurchaseOrderStatus(ctx, tx, po)
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyValidated {
		uc.logger.Info("receipt validated",
			zap.String("receipt_id", receiptID),
			zap.Int("items", result.ItemsProcessed),
			zap.Int("movements", result.MovementsCreated),
		)
	}
	return result, nil
}

func (uc *procurementUseCase) GetReceipt(ctx context.Context, id string) (*model.GoodsReceipt, error) {
	receipt, err := uc.repo.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("receipt %s: %w", id, procurement.ErrReceiptNotFound)
	}
	return receipt, nil
}
