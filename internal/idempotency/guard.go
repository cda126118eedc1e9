package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/postgres"
)

// Scopes deduplicated by the guard.
const (
	ScopeOrderCreate = "order_create"
)

// Operation performs the guarded mutation inside the guard's transaction and
// returns the reference of the result it produced (e.g. an order id).
type Operation func(ctx context.Context, tx *sqlx.Tx) (string, error)

// Guard gives externally retried mutations at-most-one effect per key.
type Guard struct {
	repo Repository
	txm  postgres.TxManager
}

func NewGuard(repo Repository, txm postgres.TxManager) *Guard {
	return &Guard{repo: repo, txm: txm}
}

// Execute runs op at most once per (key, scope). An empty key requests no
// deduplication. Returns the result reference and whether it came from a
// previously stored record rather than a fresh execution.
//
// The key is claimed by inserting its record inside the same transaction as
// op, before op runs. Of two concurrent bearers of one key, the second blocks
// on the unique index until the first commits, then fails the insert without
// ever executing op; the stored reference is returned to both.
func (g *Guard) Execute(ctx context.Context, key, scope string, op Operation) (string, bool, error) {
	if key == "" {
		var ref string
		err := g.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
			var err error
			ref, err = op(ctx, tx)
			return err
		})
		return ref, false, err
	}

	// Fast path for plain retries after the original committed.
	if rec, err := g.repo.Get(ctx, key, scope); err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	} else if rec != nil {
		return rec.ResultReference, true, nil
	}

	var ref string
	err := g.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := g.repo.Insert(ctx, tx, &model.IdempotencyRecord{
			Key:       key,
			Scope:     scope,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		var err error
		ref, err = op(ctx, tx)
		if err != nil {
			return err
		}
		return g.repo.SetResult(ctx, tx, key, scope, ref)
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			rec, lerr := g.repo.Get(ctx, key, scope)
			if lerr == nil && rec != nil {
				return rec.ResultReference, true, nil
			}
		}
		return "", false, err
	}
	return ref, false, nil
}
