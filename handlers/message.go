package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/services"
)

// MessageHandler serves room history and the REST send path.
type MessageHandler struct {
	messageService services.MessageService
	maxBodyBytes   int64
}

// NewMessageHandler, constructor. maxBodyBytes caps a send body; it is the same
// limit the WebSocket path applies to one frame.
func NewMessageHandler(messageService services.MessageService, maxBodyBytes int64) *MessageHandler {
	return &MessageHandler{messageService: messageService, maxBodyBytes: maxBodyBytes}
}

// List godoc
// GET /api/rooms/{roomId}/messages?before=<RFC3339>&limit=50
//
// before is the created_at of the oldest message the client already holds;
// empty means start from the newest.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	before, limit, err := parsePageQuery(r)
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "before must be RFC3339 and limit a non-negative integer")
		return
	}

	page, err := h.messageService.History(r.Context(), *identity, chi.URLParam(r, "roomId"), before, limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, page)
}

// Create godoc
// POST /api/rooms/{roomId}/messages
// Body: {"kind":"text","text":"hi"} or {"kind":"image","url":"https://..."}
//
// The stored message is also broadcast to every live session in the room.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var body models.MessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkg.Error(w, fmt.Errorf("%w: body exceeds %d bytes", pkg.ErrValidation, tooLarge.Limit))
			return
		}
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.messageService.Send(r.Context(), *identity, chi.URLParam(r, "roomId"), body)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, msg)
}
