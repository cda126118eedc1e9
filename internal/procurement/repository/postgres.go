package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetReceiptForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.GoodsReceipt, error) {
	var receipt model.GoodsReceipt
	err := tx.GetContext(ctx, &receipt, `SELECT * FROM goods_receipts WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := tx.SelectContext(ctx, &receipt.Items,
		`SELECT * FROM receipt_items WHERE goods_receipt_id = $1 ORDER BY product_id`, id); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *PGRepository) CreateReceipt(ctx context.Context, tx *sqlx.Tx, receipt *model.GoodsReceipt) error {
	query := `
        INSERT INTO goods_receipts (
            id, receipt_number, purchase_order_id, status, receipt_date, notes,
            validated_at, validated_by, created_by, created_at, updated_at
        )
        VALUES (
            :id, :receipt_number, :purchase_order_id, :status, :receipt_date, :notes,
            :validated_at, :validated_by, :created_by, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, receipt); err != nil {
		return err
	}

	itemQuery := `
        INSERT INTO receipt_items (
            id, goods_receipt_id, purchase_order_item_id, product_id,
            quantity_accepted, quantity_rejected, rejection_reason
        )
        VALUES (
            :id, :goods_receipt_id, :purchase_order_item_id, :product_id,
            :quantity_accepted, :quantity_rejected, :rejection_reason
        )
    `
	for i := range receipt.Items {
		if _, err := tx.NamedExecContext(ctx, itemQuery, &receipt.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepository) UpdateReceiptStatus(ctx context.Context, tx *sqlx.Tx, receipt *model.GoodsReceipt) error {
	query := `
        UPDATE goods_receipts
        SET status = :status,
            validated_at = :validated_at,
            validated_by = :validated_by,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := tx.NamedExecContext(ctx, query, receipt)
	return err
}

func (r *PGRepository) GetPurchaseOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	err := tx.GetContext(ctx, &po, `SELECT * FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := tx.SelectContext(ctx, &po.Items,
		`SELECT * FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY product_id`, id); err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PGRepository) UpdatePurchaseOrderItemReceived(ctx context.Context, tx *sqlx.Tx, item *model.PurchaseOrderItem) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE purchase_order_items
        SET quantity_received = $2
        WHERE id = $1`, item.ID, item.QuantityReceived)
	return err
}

func (r *PGRepository) UpdatePurchaseOrderStatus(ctx context.Context, tx *sqlx.Tx, po *model.PurchaseOrder) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE purchase_orders
        SET status = $2, updated_at = $3
        WHERE id = $1`, po.ID, po.Status, po.UpdatedAt)
	return err
}

func (r *PGRepository) GetReceipt(ctx context.Context, id string) (*model.GoodsReceipt, error) {
	var receipt model.GoodsReceipt
	err := r.DB.GetContext(ctx, &receipt, `SELECT * FROM goods_receipts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.DB.SelectContext(ctx, &receipt.Items,
		`SELECT * FROM receipt_items WHERE goods_receipt_id = $1 ORDER BY product_id`, id); err != nil {
		return nil, err
	}
	return &receipt, nil
}
