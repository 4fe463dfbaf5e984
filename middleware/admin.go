package middleware

import (
	"net/http"

	"github.com/akinalp/gatherly/handlers"
	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

// AdminMiddleware restricts a route to the admin role. It must run after
// AuthMiddleware.Require.
type AdminMiddleware struct{}

// NewAdminMiddleware, constructor.
func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := handlers.IdentityFromContext(r.Context())
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
			return
		}

		if identity.Role != models.RoleAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
