package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/gatherly/database"
	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

type sqlitePinRepo struct {
	db *sql.DB
}

// NewSQLitePinRepo returns a PinRepository backed by SQLite.
func NewSQLitePinRepo(db *sql.DB) PinRepository {
	return &sqlitePinRepo{db: db}
}

func (r *sqlitePinRepo) Toggle(ctx context.Context, messageID, userID string) (bool, error) {
	var pinned bool

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, messageID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up message: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM personal_pins WHERE message_id = ? AND user_id = ?`, messageID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove personal pin: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if removed > 0 {
			pinned = false
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO personal_pins (message_id, user_id, created_at) VALUES (?, ?, ?)`,
			messageID, userID, time.Now().UnixMicro(),
		); err != nil {
			return fmt.Errorf("failed to add personal pin: %w", err)
		}
		pinned = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return pinned, nil
}

// ListByUser returns the user's pinned messages in a room, most recently pinned
// first.
func (r *sqlitePinRepo) ListByUser(ctx context.Context, userID, roomID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.room_id, m.sender_id, m.kind, m.content, m.created_at,
		       m.global_pinned, m.global_pinned_by, m.global_pinned_at
		FROM personal_pins p
		JOIN messages m ON m.id = p.message_id
		WHERE p.user_id = ? AND m.room_id = ?
		ORDER BY p.created_at DESC`, userID, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal pins: %w", err)
	}
	return scanMessages(rows)
}
