package order

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
)

type Repository interface {
	// Create persists the order together with its lines.
	Create(ctx context.Context, tx *sqlx.Tx, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// GetByIDForUpdate locks the order row for the rest of the transaction
	// and loads its lines.
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, o *model.Order) error
	// ListStalePending returns ids of orders still awaiting confirmation
	// created before cutoff, oldest first.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}
