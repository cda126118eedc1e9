package inventory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientStock means a reserve or commit could not proceed. The
	// caller sees the order unchanged; the core never retries on its own.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReservationMismatch means a release or commit had no matching prior
	// reserve for the reference. Upstream sequencing bug; surfaced loudly.
	ErrReservationMismatch = errors.New("no matching reservation")

	ErrItemNotFound = errors.New("inventory item not found")

	// ErrNegativeStock rejects adjustments that would drive on_hand below zero.
	ErrNegativeStock = errors.New("adjustment would result in negative stock")
)

// LineShortage itemizes one insufficient order line.
type LineShortage struct {
	ProductID string
	Requested int64
	Available int64
}

// InsufficientStockError carries the full per-line shortage list so a failed
// confirmation can report exactly which lines were short.
type InsufficientStockError struct {
	Lines []LineShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("product %s: requested %d, available %d", l.ProductID, l.Requested, l.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
