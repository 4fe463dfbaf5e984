// Package middleware holds the layers wrapped around REST handlers.
//
// A middleware is func(next http.Handler) http.Handler: it does its part (verify a
// token, record a metric) and either calls next or stops the request there.
package middleware

import (
	"net/http"
	"strings"

	"github.com/akinalp/gatherly/handlers"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/services"
)

// AuthMiddleware verifies the bearer credential issued by the auth service.
type AuthMiddleware struct {
	authService services.AuthService
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Require rejects requests without a valid "Authorization: Bearer <token>" with
// 401 and otherwise puts the caller's identity in the request context.
//
// There is no user table to consult: the token is the whole identity.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		identity, err := m.authService.Authenticate(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(r.Context(), identity)))
	})
}
