package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/services"
)

// MemberHandler lets an admin seed and revoke room membership. Membership itself
// is owned by the event service; these endpoints mirror its decisions locally.
type MemberHandler struct {
	members services.MembershipChecker
}

// NewMemberHandler, constructor.
func NewMemberHandler(members services.MembershipChecker) *MemberHandler {
	return &MemberHandler{members: members}
}

type putMemberRequest struct {
	Role models.Role `json:"role"`
}

// Put godoc
// PUT /api/rooms/{roomId}/members/{userId}
// Body (optional): {"role":"creator"}
func (h *MemberHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req putMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	roomID := chi.URLParam(r, "roomId")
	userID := chi.URLParam(r, "userId")
	if err := h.members.AddMember(r.Context(), roomID, userID, req.Role); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{
		"room_id": roomID,
		"user_id": userID,
		"role":    string(req.Role),
	})
}

// Delete godoc
// DELETE /api/rooms/{roomId}/members/{userId}
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.members.RemoveMember(r.Context(), chi.URLParam(r, "roomId"), chi.URLParam(r, "userId")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "member removed"})
}
