package auth

import "context"

// Roles recognized at the transition boundary.
const (
	RoleCustomer  = "CUSTOMER"
	RoleStaff     = "STAFF"
	RoleWarehouse = "WAREHOUSE"
	RoleCourier   = "COURIER"
	// RoleSystem is internal callers: the stale-order sweep, broker listeners.
	RoleSystem = "SYSTEM"
)

// Actor is the identity performing a request. Populated by the transport
// layer; business code only uses it for authorization checks.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

func (a Actor) IsWarehouse() bool {
	return a.Role == RoleWarehouse || a.Role == RoleStaff
}

func (a Actor) IsCourier() bool {
	return a.Role == RoleCourier
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

type ctxKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFromContext returns the request actor; the zero Actor if none was set.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}
