package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/services"
)

// PinHandler serves global and personal pins.
type PinHandler struct {
	pinService services.PinService
}

// NewPinHandler, constructor.
func NewPinHandler(pinService services.PinService) *PinHandler {
	return &PinHandler{pinService: pinService}
}

// ListGlobal godoc
// GET /api/rooms/{roomId}/pins
func (h *PinHandler) ListGlobal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pins, err := h.pinService.ListGlobal(r.Context(), *identity, chi.URLParam(r, "roomId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, pins)
}

// ListPersonal godoc
// GET /api/rooms/{roomId}/pins/personal
// Only the caller's own bookmarks.
func (h *PinHandler) ListPersonal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pins, err := h.pinService.ListPersonal(r.Context(), *identity, chi.URLParam(r, "roomId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, pins)
}

// PinGlobal godoc
// POST /api/messages/{id}/pin-global
// The room's creators and admins only; replaces the room's current global pin.
func (h *PinHandler) PinGlobal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	msg, err := h.pinService.PinGlobal(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, msg)
}

// UnpinGlobal godoc
// DELETE /api/messages/{id}/pin-global
func (h *PinHandler) UnpinGlobal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	msg, err := h.pinService.UnpinGlobal(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, msg)
}

// TogglePersonal godoc
// POST /api/messages/{id}/pin-personal
// Flips the caller's bookmark; the response says which way it went.
func (h *PinHandler) TogglePersonal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.pinService.TogglePersonal(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}
