package procurement

import (
	"context"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/procurement/dto"
)

// UseCase applies supplier receipts to the stock ledger. ValidateReceipt is
// idempotent by receipt state: a second validation of the same receipt is a
// successful no-op returning the original outcome.
type UseCase interface {
	CreateReceipt(ctx context.Context, input *dto.CreateReceiptInput) (*model.GoodsReceipt, error)
	ValidateReceipt(ctx context.Context, receiptID string, actor auth.Actor) (*dto.ValidateReceiptResult, error)
	GetReceipt(ctx context.Context, id string) (*model.GoodsReceipt, error)
}
