package model

import "time"

// Purchase order statuses.
const (
	PurchaseOrderDraft             = "DRAFT"
	PurchaseOrderPending           = "PENDING"
	PurchaseOrderApproved          = "APPROVED"
	PurchaseOrderPartiallyReceived = "PARTIALLY_RECEIVED"
	PurchaseOrderReceived          = "RECEIVED"
	PurchaseOrderCancelled         = "CANCELLED"
)

type PurchaseOrder struct {
	ID        string    `db:"id"`
	PONumber  string    `db:"po_number"`
	Supplier  string    `db:"supplier"`
	Status    string    `db:"status"`
	OrderDate time.Time `db:"order_date"`
	Notes     string    `db:"notes"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Items []PurchaseOrderItem `db:"-"`
}

type PurchaseOrderItem struct {
	ID               string `db:"id"`
	PurchaseOrderID  string `db:"purchase_order_id"`
	ProductID        string `db:"product_id"`
	QuantityOrdered  int64  `db:"quantity_ordered"`
	QuantityReceived int64  `db:"quantity_received"`
	UnitPrice        int64  `db:"unit_price"`
}

func (i *PurchaseOrderItem) QuantityPending() int64 {
	if i.QuantityReceived >= i.QuantityOrdered {
		return 0
	}
	return i.QuantityOrdered - i.QuantityReceived
}

// Goods receipt statuses.
const (
	ReceiptDraft     = "DRAFT"
	ReceiptValidated = "VALIDATED"
	ReceiptCancelled = "CANCELLED"
)

type GoodsReceipt struct {
	ID              string     `db:"id"`
	ReceiptNumber   string     `db:"receipt_number"`
	PurchaseOrderID string     `db:"purchase_order_id"`
	Status          string     `db:"status"`
	ReceiptDate     time.Time  `db:"receipt_date"`
	Notes           string     `db:"notes"`
	ValidatedAt     *time.Time `db:"validated_at"`
	ValidatedBy     *string    `db:"validated_by"`
	CreatedBy       *string    `db:"created_by"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`

	Items []ReceiptItem `db:"-"`
}

func (r *GoodsReceipt) IsValidated() bool {
	return r.Status == ReceiptValidated && r.ValidatedAt != nil
}

type ReceiptItem struct {
	ID                  string `db:"id"`
	GoodsReceiptID      string `db:"goods_receipt_id"`
	PurchaseOrderItemID string `db:"purchase_order_item_id"`
	ProductID           string `db:"product_id"`
	QuantityAccepted    int64  `db:"quantity_accepted"`
	QuantityRejected    int64  `db:"quantity_rejected"`
	RejectionReason     string `db:"rejection_reason"`
}
