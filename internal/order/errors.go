package order

import (
	"errors"
	"fmt"

	"github.com/yemba/grocery-core/internal/model"
)

var (
	// ErrInvalidTransition is a structural misuse of the lifecycle table.
	// Fatal to the calling request; never retried.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrOrderNotFound      = errors.New("order not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrEmptyOrder         = errors.New("order must have at least one line")
	ErrProductUnavailable = errors.New("product not found or inactive")
	ErrInvalidQuantity    = errors.New("line quantity must be positive")
)

type InvalidTransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
