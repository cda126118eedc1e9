package dto

type AdjustInventoryInput struct {
	ProductID string
	Delta     int64
	Reason    string
	ActorID   string
}

type RecordInboundInput struct {
	ProductID string
	Quantity  int64
	Reference string
	Notes     string
	ActorID   string
}
