package dto

import "time"

type ReceiptLineInput struct {
	PurchaseOrderItemID string
	QuantityAccepted    int64
	QuantityRejected    int64
	RejectionReason     string
}

type CreateReceiptInput struct {
	PurchaseOrderID string
	ReceiptNumber   string
	ReceiptDate     time.Time
	Notes           string
	Items           []ReceiptLineInput
	ActorID         string
}

type ValidateReceiptResult struct {
	ReceiptID string
	// AlreadyValidated flags the idempotent no-op: the receipt was validated
	// earlier and nothing changed on this call.
	AlreadyValidated bool
	ItemsProcessed   int
	MovementsCreated int
}
