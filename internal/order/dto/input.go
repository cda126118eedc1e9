package dto

type LineInput struct {
	ProductID string
	Quantity  int64
}

type CreateOrderInput struct {
	UserID         string
	Lines          []LineInput
	DeliveryZoneID string
	DeliveryPhone  string
	CustomerNotes  string
	IdempotencyKey string
}
