package dto

import "time"

// ItemRequest is one product/quantity pair in a reserve, release or commit.
type ItemRequest struct {
	ProductID string
	Quantity  int64
}

type AvailabilityLine struct {
	ProductID  string
	Requested  int64
	Available  int64
	Sufficient bool
}

type AvailabilityResult struct {
	Available bool
	Items     []AvailabilityLine
}

type ReservedItem struct {
	ProductID       string
	Quantity        int64
	InventoryItemID string
}

type ReservationResult struct {
	ReservedItems []ReservedItem
}

type InventoryFilters struct {
	ProductID string
	LowStock  bool
	Page      int
	PageSize  int
}

type MovementFilters struct {
	ProductID    string
	MovementType string
	Reference    string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}
