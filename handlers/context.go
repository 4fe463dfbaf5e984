// Package handlers holds the REST endpoints of the chat server.
//
// Handlers are thin: parse the request, call a service, write the response with
// pkg.JSON or pkg.Error. Business rules live in the services package.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

type contextKey string

// IdentityContextKey is the context key under which the auth middleware stores
// the caller's *models.Identity.
const IdentityContextKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*models.Identity)
	return identity, ok && identity != nil
}

// requireIdentity writes a 401 and returns false when the request carries no identity.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "identity not found in context")
		return nil, false
	}
	return identity, true
}

// parsePageQuery reads ?before=<RFC3339>&limit=<n>. A zero limit lets the service
// apply its default.
func parsePageQuery(r *http.Request) (*time.Time, int, error) {
	q := r.URL.Query()

	var before *time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, 0, pkg.ErrBadRequest
		}
		before = &t
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, 0, pkg.ErrBadRequest
		}
		limit = n
	}
	return before, limit, nil
}
