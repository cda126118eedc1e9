package auth

import "net/http"

// Middleware reads the identity headers set by the API gateway and puts the
// resulting Actor on the request context. Requests without headers carry the
// zero Actor; handlers that need an identity reject those themselves.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := Actor{
			UserID: r.Header.Get("X-User-ID"),
			Role:   normalizeRole(r.Header.Get("X-User-Role")),
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func normalizeRole(role string) string {
	switch role {
	case RoleStaff, RoleWarehouse, RoleCourier, RoleCustomer:
		return role
	default:
		// Unknown or missing roles get customer-level access at most.
		return RoleCustomer
	}
}
