package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByProduct(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error) {
	return r.getByProduct(ctx, tx, productID, false)
}

func (r *PGRepository) GetByProductForUpdate(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error) {
	return r.getByProduct(ctx, tx, productID, true)
}

func (r *PGRepository) getByProduct(ctx context.Context, tx *sqlx.Tx, productID string, forUpdate bool) (*model.InventoryItem, error) {
	query := `SELECT * FROM inventory_items WHERE product_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var item model.InventoryItem
	err := tx.GetContext(ctx, &item, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error {
	query := `
        INSERT INTO inventory_items (
            id, product_id, on_hand, reserved, reorder_point, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :on_hand, :reserved, :reorder_point, :created_at, :updated_at
        )
    `
	_, err := tx.NamedExecContext(ctx, query, item)
	return err
}

func (r *PGRepository) UpdateCounts(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error {
	query := `
        UPDATE inventory_items
        SET on_hand = :on_hand, reserved = :reserved, updated_at = :updated_at
        WHERE id = :id
    `
	res, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("inventory item %s vanished mid-transaction", item.ID)
	}
	return nil
}

func (r *PGRepository) LogMovement(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, inventory_item_id, product_id, movement_type, quantity,
            reference, notes, created_by, created_at
        )
        VALUES (
            :id, :inventory_item_id, :product_id, :movement_type, :quantity,
            :reference, :notes, :created_by, :created_at
        )
    `
	_, err := tx.NamedExecContext(ctx, query, m)
	return err
}

func (r *PGRepository) GetReservationForUpdate(ctx context.Context, tx *sqlx.Tx, productID, reference string) (*model.StockReservation, error) {
	var res model.StockReservation
	err := tx.GetContext(ctx, &res, `
        SELECT * FROM stock_reservations
        WHERE product_id = $1 AND reference = $2
        FOR UPDATE`, productID, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) SaveReservation(ctx context.Context, tx *sqlx.Tx, res *model.StockReservation) error {
	query := `
        INSERT INTO stock_reservations (
            id, product_id, reference, quantity, status, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :reference, :quantity, :status, :created_at, :updated_at
        )
        ON CONFLICT (product_id, reference)
        DO UPDATE SET
            quantity = EXCLUDED.quantity,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at
    `
	_, err := tx.NamedExecContext(ctx, query, res)
	return err
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	var items []model.InventoryItem
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.LowStock {
		conditions = append(conditions, "on_hand - reserved <= reorder_point AND reorder_point > 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM inventory_items" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	query := "SELECT * FROM inventory_items" + whereClause + " ORDER BY updated_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.Reference != "" {
		conditions = append(conditions, "reference = :reference")
		args["reference"] = f.Reference
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}
