package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxFunc runs inside one database transaction. Row locks taken with
// SELECT ... FOR UPDATE are held until the transaction commits or rolls back.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

// TxManager scopes a function to one atomic unit of work. The production
// implementation wraps *sqlx.DB; tests substitute a serializing fake.
type TxManager interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

type sqlTxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) TxManager {
	return &sqlTxManager{db: db}
}

func (m *sqlTxManager) WithinTx(ctx context.Context, fn TxFunc) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
