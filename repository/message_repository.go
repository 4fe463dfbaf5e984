package repository

import (
	"context"
	"time"

	"github.com/akinalp/gatherly/models"
)

// MessageRepository is the durable, per-room ordered message log.
//
// Page is keyed on created_at: it returns up to limit messages strictly older than
// before (the newest ones when before is nil), ordered oldest to newest.
//
// SetGlobalPin clears any other global pin in the message's room and pins this one
// in a single transaction. It returns the pinned message and the ids that lost
// their pin. Who may pin is the caller's concern.
type MessageRepository interface {
	Append(ctx context.Context, roomID string, senderID *string, body models.MessageBody) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Page(ctx context.Context, roomID string, before *time.Time, limit int) (*models.MessagePage, error)
	SetGlobalPin(ctx context.Context, messageID, byUserID string) (*models.Message, []string, error)
	ClearGlobalPin(ctx context.Context, messageID string) (*models.Message, error)
	ListGlobalPinned(ctx context.Context, roomID string) ([]models.Message, error)
}
