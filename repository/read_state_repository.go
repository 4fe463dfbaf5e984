package repository

import (
	"context"
	"time"

	"github.com/akinalp/gatherly/models"
)

// ReadStateRepository stores read cursors.
//
// Touch moves the cursor to at, or to the room's newest message if that is later,
// and never moves it backwards. UnreadCounts returns one entry per cursor the user
// owns, counting messages created after it.
type ReadStateRepository interface {
	Touch(ctx context.Context, userID, roomID string, at time.Time) (*models.ReadCursor, error)
	Get(ctx context.Context, userID, roomID string) (*models.ReadCursor, error)
	UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error)
}
