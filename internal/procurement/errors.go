package procurement

import "errors"

var (
	ErrReceiptNotFound           = errors.New("goods receipt not found")
	ErrPurchaseOrderNotFound     = errors.New("purchase order not found")
	ErrPurchaseOrderItemNotFound = errors.New("purchase order item not found")
	ErrReceiptNotDraft           = errors.New("receipt is not in draft status")
	ErrReceiptEmpty              = errors.New("receipt has no items")
	ErrQuantityExceedsPending    = errors.New("receipt quantity exceeds pending quantity")
	ErrDuplicateReceiptNumber    = errors.New("receipt number already exists")
)
