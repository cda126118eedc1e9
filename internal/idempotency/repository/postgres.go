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

func (r *PGRepository) Get(ctx context.Context, key, scope string) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := r.DB.GetContext(ctx, &rec, `
        SELECT key, scope, result_reference, created_at
        FROM idempotency_records
        WHERE key = $1 AND scope = $2`, key, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) Insert(ctx context.Context, tx *sqlx.Tx, rec *model.IdempotencyRecord) error {
	_, err := tx.NamedExecContext(ctx, `
        INSERT INTO idempotency_records (key, scope, result_reference, created_at)
        VALUES (:key, :scope, :result_reference, :created_at)`, rec)
	return err
}

func (r *PGRepository) SetResult(ctx context.Context, tx *sqlx.Tx, key, scope, resultReference string) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE idempotency_records
        SET result_reference = $3
        WHERE key = $1 AND scope = $2`, key, scope, resultReference)
	return err
}
