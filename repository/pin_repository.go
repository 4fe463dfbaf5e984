package repository

import (
	"context"

	"github.com/akinalp/gatherly/models"
)

// PinRepository stores personal pins.
//
// Toggle flips the (message, user) row inside one transaction and returns the
// resulting state, so two toggles always land on a definite answer.
type PinRepository interface {
	Toggle(ctx context.Context, messageID, userID string) (bool, error)
	ListByUser(ctx context.Context, userID, roomID string) ([]models.Message, error)
}
