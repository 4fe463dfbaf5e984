package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

type sqliteReadStateRepo struct {
	db *sql.DB
}

// NewSQLiteReadStateRepo returns a ReadStateRepository backed by SQLite.
func NewSQLiteReadStateRepo(db *sql.DB) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) Touch(ctx context.Context, userID, roomID string, at time.Time) (*models.ReadCursor, error) {
	var lastRead int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO read_cursors (user_id, room_id, last_read_at)
		VALUES (?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM messages WHERE room_id = ?), 0)))
		ON CONFLICT (user_id, room_id) DO UPDATE
		SET last_read_at = MAX(read_cursors.last_read_at, excluded.last_read_at)
		RETURNING last_read_at`,
		userID, roomID, at.UnixMicro(), roomID,
	).Scan(&lastRead)
	if err != nil {
		return nil, fmt.Errorf("failed to touch read cursor: %w", err)
	}

	return &models.ReadCursor{
		UserID:     userID,
		RoomID:     roomID,
		LastReadAt: time.UnixMicro(lastRead).UTC(),
	}, nil
}

func (r *sqliteReadStateRepo) Get(ctx context.Context, userID, roomID string) (*models.ReadCursor, error) {
	var lastRead int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_read_at FROM read_cursors WHERE user_id = ? AND room_id = ?`,
		userID, roomID,
	).Scan(&lastRead)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read cursor: %w", err)
	}

	return &models.ReadCursor{
		UserID:     userID,
		RoomID:     roomID,
		LastReadAt: time.UnixMicro(lastRead).UTC(),
	}, nil
}

// UnreadCounts is computed from the message table on every call; there is no
// stored counter to drift.
func (r *sqliteReadStateRepo) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rc.room_id,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.room_id = rc.room_id AND m.created_at > rc.last_read_at)
		FROM read_cursors rc
		WHERE rc.user_id = ?
		ORDER BY rc.room_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}
	defer rows.Close()

	counts := []models.UnreadInfo{}
	for rows.Next() {
		var info models.UnreadInfo
		if err := rows.Scan(&info.RoomID, &info.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts = append(counts, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unread counts: %w", err)
	}
	return counts, nil
}
