package idempotency

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
)

// Repository stores idempotency records. Insert claims (key, scope) inside the
// caller's transaction; the unique constraint arbitrates concurrent claims.
type Repository interface {
	Get(ctx context.Context, key, scope string) (*model.IdempotencyRecord, error)
	Insert(ctx context.Context, tx *sqlx.Tx, rec *model.IdempotencyRecord) error
	SetResult(ctx context.Context, tx *sqlx.Tx, key, scope, resultReference string) error
}
