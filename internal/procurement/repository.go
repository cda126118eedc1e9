package procurement

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/yemba/grocery-core/internal/model"
)

type Repository interface {
	// GetReceiptForUpdate locks the receipt row and loads its items.
	GetReceiptForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.GoodsReceipt, error)
	CreateReceipt(ctx context.Context, tx *sqlx.Tx, r *model.GoodsReceipt) error
	UpdateReceiptStatus(ctx context.Context, tx *sqlx.Tx, r *model.GoodsReceipt) error

	// GetPurchaseOrderForUpdate locks the purchase order row and loads its items.
	GetPurchaseOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.PurchaseOrder, error)
	UpdatePurchaseOrderItemReceived(ctx context.Context, tx *sqlx.Tx, item *model.PurchaseOrderItem) error
	UpdatePurchaseOrderStatus(ctx context.Context, tx *sqlx.Tx, po *model.PurchaseOrder) error

	GetReceipt(ctx context.Context, id string) (*model.GoodsReceipt, error)
}
