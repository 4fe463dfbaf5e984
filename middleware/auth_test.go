package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/handlers"
	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/services"
)

const testSecret = "middleware-test-secret"

func issue(t *testing.T, identity models.Identity) string {
	t.Helper()
	token, err := services.NewAuthService(testSecret).IssueToken(identity, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

// whoami echoes the identity the middleware stored.
func whoami(w http.ResponseWriter, r *http.Request) {
	identity, ok := handlers.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(identity.UserID + ":" + string(identity.Role)))
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequire(t *testing.T) {
	auth := NewAuthMiddleware(services.NewAuthService(testSecret))
	h := auth.Require(http.HandlerFunc(whoami))

	rec := serve(h, "Bearer "+issue(t, models.Identity{UserID: "alice", Role: models.RoleCreator}))
	if rec.Code != http.StatusOK || rec.Body.String() != "alice:creator" {
		t.Fatalf("valid token: %d %q", rec.Code, rec.Body.String())
	}

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + mustIssueWith(t, "other-secret"),
	} {
		if rec := serve(h, header); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func mustIssueWith(t *testing.T, secret string) string {
	t.Helper()
	token, err := services.NewAuthService(secret).IssueToken(models.Identity{UserID: "mallory"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func TestAdminRequire(t *testing.T) {
	auth := NewAuthMiddleware(services.NewAuthService(testSecret))
	h := auth.Require(NewAdminMiddleware().Require(http.HandlerFunc(whoami)))

	if rec := serve(h, "Bearer "+issue(t, models.Identity{UserID: "root", Role: models.RoleAdmin})); rec.Code != http.StatusOK {
		t.Fatalf("admin: status = %d", rec.Code)
	}
	if rec := serve(h, "Bearer "+issue(t, models.Identity{UserID: "bob", Role: models.RoleCreator})); rec.Code != http.StatusForbidden {
		t.Fatalf("creator: status = %d, want 403", rec.Code)
	}

	// Without the auth middleware in front there is no identity at all.
	bare := NewAdminMiddleware().Require(http.HandlerFunc(whoami))
	if rec := serve(bare, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no identity: status = %d, want 401", rec.Code)
	}
}

func TestLoggerAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(Logger(zerolog.New(&buf)))
	r.Use(Metrics)
	r.Get("/api/rooms/{roomId}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/r9/messages", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	line := buf.String()
	if !strings.Contains(line, `"status":418`) || !strings.Contains(line, `"path":"/api/rooms/r9/messages"`) {
		t.Fatalf("log line = %s", line)
	}
}
