package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/akinalp/gatherly/pkg"
)

// SessionCounter reports live WebSocket sessions; *ws.Hub satisfies it.
type SessionCounter interface {
	SessionCount() int
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	db       Pinger
	sessions SessionCounter
	started  time.Time
}

// NewHealthHandler, constructor.
func NewHealthHandler(db Pinger, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, started: time.Now()}
}

// Check is the result of one dependency probe.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status   string           `json:"status"` // "healthy" or "degraded"
	Service  string           `json:"service"`
	Sessions int              `json:"sessions"`
	Uptime   string           `json:"uptime"`
	Checks   map[string]Check `json:"checks"`
}

// Health godoc
// GET /api/health
// 503 when the database does not answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "healthy",
		Service:  "gatherly",
		Sessions: h.sessions.SessionCount(),
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
		Checks:   make(map[string]Check),
	}

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Checks["database"] = Check{Status: "fail", Message: err.Error()}
	} else {
		resp.Checks["database"] = Check{Status: "pass", Latency: time.Since(start).String()}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	pkg.JSON(w, status, resp)
}
