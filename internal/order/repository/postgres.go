package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	query := `
        INSERT INTO orders (
            id, order_number, user_id, status, subtotal, delivery_fee, total,
            delivery_zone_id, delivery_phone, customer_notes, idempotency_key,
            courier_id, created_at, updated_at, last_status_update,
            confirmed_at, cancelled_at, delivered_at
        )
        VALUES (
            :id, :order_number, :user_id, :status, :subtotal, :delivery_fee, :total,
            :delivery_zone_id, :delivery_phone, :customer_notes, :idempotency_key,
            :courier_id, :created_at, :updated_at, :last_status_update,
            :confirmed_at, :cancelled_at, :delivered_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return err
	}

	lineQuery := `
        INSERT INTO order_lines (
            id, order_id, product_id, quantity, unit_price, line_total
        )
        VALUES (
            :id, :order_id, :product_id, :quantity, :unit_price, :line_total
        )
    `
	for i := range o.Lines {
		if _, err := tx.NamedExecContext(ctx, lineQuery, &o.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := r.DB.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.DB.SelectContext(ctx, &o.Lines,
		`SELECT * FROM order_lines WHERE order_id = $1 ORDER BY product_id`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Order, error) {
	var o model.Order
	err := tx.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := tx.SelectContext(ctx, &o.Lines,
		`SELECT * FROM order_lines WHERE order_id = $1 ORDER BY product_id`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	query := `
        UPDATE orders
        SET status = :status,
            courier_id = :courier_id,
            last_status_update = :last_status_update,
            confirmed_at = :confirmed_at,
            cancelled_at = :cancelled_at,
            delivered_at = :delivered_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := tx.NamedExecContext(ctx, query, o)
	return err
}

func (r *PGRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.DB.SelectContext(ctx, &ids, `
        SELECT id FROM orders
        WHERE status = $1 AND created_at < $2
        ORDER BY created_at
        LIMIT $3`, model.OrderPendingConfirmation, cutoff, limit)
	return ids, err
}
