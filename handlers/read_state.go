package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/services"
)

// ReadStateHandler exposes read cursors and unread counts.
type ReadStateHandler struct {
	readStateService services.ReadStateService
	members          services.MembershipChecker
}

// NewReadStateHandler, constructor.
func NewReadStateHandler(readStateService services.ReadStateService, members services.MembershipChecker) *ReadStateHandler {
	return &ReadStateHandler{
		readStateService: readStateService,
		members:          members,
	}
}

// MarkRead godoc
// POST /api/rooms/{roomId}/read
// Moves the caller's cursor to the newest message in the room.
func (h *ReadStateHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	roomID := chi.URLParam(r, "roomId")
	if err := h.members.CanView(r.Context(), *identity, roomID); err != nil {
		pkg.Error(w, err)
		return
	}

	cursor, err := h.readStateService.Touch(r.Context(), identity.UserID, roomID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, cursor)
}

// GetUnreadCounts godoc
// GET /api/unread
// One entry per room the caller has a cursor in.
func (h *ReadStateHandler) GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	counts, err := h.readStateService.UnreadCounts(r.Context(), identity.UserID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, counts)
}
