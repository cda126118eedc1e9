package inventory

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
)

// UseCase is the reservation engine. Each top-level operation runs in its own
// atomic unit; the Tx variants compose into a caller-owned transaction so an
// order transition and its inventory side effect commit or roll back together.
type UseCase interface {
	CheckAvailable(ctx context.Context, items []dto.ItemRequest) (*dto.AvailabilityResult, error)
	Reserve(ctx context.Context, items []dto.ItemRequest, reference string) (*dto.ReservationResult, error)
	Release(ctx context.Context, items []dto.ItemRequest, reference string) error
	CommitOutbound(ctx context.Context, items []dto.ItemRequest, reference string) error
	RecordInbound(ctx context.Context, input *dto.RecordInboundInput) (*model.InventoryItem, error)
	AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (*model.InventoryItem, error)

	ReserveTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) (*dto.ReservationResult, error)
	ReleaseTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) error
	CommitOutboundTx(ctx context.Context, tx *sqlx.Tx, items []dto.ItemRequest, reference string) error
	RecordInboundTx(ctx context.Context, tx *sqlx.Tx, input *dto.RecordInboundInput) (*model.InventoryItem, error)

	GetProductInventory(ctx context.Context, productID string) (*model.InventoryItem, error)
	ListLowStock(ctx context.Context, page, pageSize int) ([]model.InventoryItem, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
