package inventory

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
)

// Repository is the ledger store: per-product counters, the append-only
// movement log and per-reference reservation rows. Mutating methods take the
// enclosing transaction so callers control the atomic unit.
type Repository interface {
	GetByProduct(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error)
	// GetByProductForUpdate acquires an exclusive row lock held until the
	// transaction ends.
	GetByProductForUpdate(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error)
	UpdateCounts(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error
	CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error

	LogMovement(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error

	GetReservationForUpdate(ctx context.Context, tx *sqlx.Tx, productID, reference string) (*model.StockReservation, error)
	SaveReservation(ctx context.Context, tx *sqlx.Tx, r *model.StockReservation) error

	// Read-only listings outside any caller transaction.
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
