package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/akinalp/gatherly/database"
	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

const messageColumns = `id, room_id, sender_id, kind, content, created_at,
	global_pinned, global_pinned_by, global_pinned_at`

// roomClock hands out strictly increasing created_at values for one room.
type roomClock struct {
	mu     sync.Mutex
	last   int64 // unix micros of the newest message
	loaded bool
}

type sqliteMessageRepo struct {
	db  *sql.DB
	now func() time.Time

	clocksMu sync.Mutex
	clocks   map[string]*roomClock
}

// NewSQLiteMessageRepo returns a MessageRepository backed by SQLite.
func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return newSQLiteMessageRepo(db, time.Now)
}

func newSQLiteMessageRepo(db *sql.DB, now func() time.Time) *sqliteMessageRepo {
	return &sqliteMessageRepo{
		db:     db,
		now:    now,
		clocks: make(map[string]*roomClock),
	}
}

func (r *sqliteMessageRepo) clock(roomID string) *roomClock {
	r.clocksMu.Lock()
	defer r.clocksMu.Unlock()

	c, ok := r.clocks[roomID]
	if !ok {
		c = &roomClock{}
		r.clocks[roomID] = c
	}
	return c
}

// Append serialises per room only while assigning the timestamp and inserting;
// appends to different rooms do not wait on each other here.
func (r *sqliteMessageRepo) Append(ctx context.Context, roomID string, senderID *string, body models.MessageBody) (*models.Message, error) {
	c := r.clock(roomID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		var last sql.NullInt64
		if err := r.db.QueryRowContext(ctx,
			`SELECT MAX(created_at) FROM messages WHERE room_id = ?`, roomID,
		).Scan(&last); err != nil {
			return nil, fmt.Errorf("failed to load room clock: %w", err)
		}
		c.last = last.Int64
		c.loaded = true
	}

	ts := r.now().UnixMicro()
	if ts <= c.last {
		ts = c.last + 1
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.UnixMicro(ts).UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, roomID, senderID, string(body.Kind), body.Content(), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	c.last = ts
	return msg, nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return getMessage(ctx, r.db, id)
}

// Page fetches limit+1 rows newest-first; the extra row only signals HasMore.
func (r *sqliteMessageRepo) Page(ctx context.Context, roomID string, before *time.Time, limit int) (*models.MessagePage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", pkg.ErrValidation)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = ?
			ORDER BY created_at DESC
			LIMIT ?`, roomID, limit+1)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE room_id = ? AND created_at < ?
			ORDER BY created_at DESC
			LIMIT ?`, roomID, cursorMicros(*before), limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to page messages: %w", err)
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	page := &models.MessagePage{Messages: messages}
	if len(messages) > limit {
		page.HasMore = true
		page.Messages = messages[:limit]
	}

	// newest-first from SQL, callers want oldest-first
	for i, j := 0, len(page.Messages)-1; i < j; i, j = i+1, j-1 {
		page.Messages[i], page.Messages[j] = page.Messages[j], page.Messages[i]
	}
	return page, nil
}

// cursorMicros converts a page cursor to the stored unit, rounding a sub-µs
// remainder up so a message stored just below the cursor still sorts before it.
func cursorMicros(before time.Time) int64 {
	micros := before.UnixMicro()
	if before.After(time.UnixMicro(micros)) {
		micros++
	}
	return micros
}

func (r *sqliteMessageRepo) SetGlobalPin(ctx context.Context, messageID, byUserID string) (*models.Message, []string, error) {
	var (
		pinned   *models.Message
		unpinned []string
	)

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var roomID string
		err := tx.QueryRowContext(ctx,
			`SELECT room_id FROM messages WHERE id = ?`, messageID,
		).Scan(&roomID)
		if errors.Is(err, sql.ErrNoRows) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up message: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM messages WHERE room_id = ? AND global_pinned = 1 AND id != ?`,
			roomID, messageID)
		if err != nil {
			return fmt.Errorf("failed to list room pins: %w", err)
		}
		unpinned, err = scanIDs(rows)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages
			SET global_pinned = 0, global_pinned_by = NULL, global_pinned_at = NULL
			WHERE room_id = ? AND global_pinned = 1 AND id != ?`,
			roomID, messageID,
		); err != nil {
			return fmt.Errorf("failed to clear room pin: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages
			SET global_pinned = 1, global_pinned_by = ?, global_pinned_at = ?
			WHERE id = ?`,
			byUserID, r.now().UnixMicro(), messageID,
		); err != nil {
			return fmt.Errorf("failed to set pin: %w", err)
		}

		pinned, err = getMessage(ctx, tx, messageID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return pinned, unpinned, nil
}

func (r *sqliteMessageRepo) ClearGlobalPin(ctx context.Context, messageID string) (*models.Message, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET global_pinned = 0, global_pinned_by = NULL, global_pinned_at = NULL
		WHERE id = ?`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear pin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, pkg.ErrNotFound
	}
	return getMessage(ctx, r.db, messageID)
}

func (r *sqliteMessageRepo) ListGlobalPinned(ctx context.Context, roomID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = ? AND global_pinned = 1
		ORDER BY global_pinned_at DESC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned messages: %w", err)
	}
	return scanMessages(rows)
}

// ─── Scanning ───

type rowScanner interface {
	Scan(dest ...any) error
}

func getMessage(ctx context.Context, q database.TxQuerier, id string) (*models.Message, error) {
	row := q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func scanMessage(s rowScanner) (*models.Message, error) {
	var (
		msg       models.Message
		senderID  sql.NullString
		kind      string
		content   string
		createdAt int64
		pinned    int
		pinnedBy  sql.NullString
		pinnedAt  sql.NullInt64
	)
	if err := s.Scan(&msg.ID, &msg.RoomID, &senderID, &kind, &content, &createdAt,
		&pinned, &pinnedBy, &pinnedAt); err != nil {
		return nil, err
	}

	msg.Body = models.BodyFromStored(kind, content)
	msg.CreatedAt = time.UnixMicro(createdAt).UTC()
	msg.GlobalPinned = pinned == 1
	if senderID.Valid {
		msg.SenderID = &senderID.String
	}
	if pinnedBy.Valid {
		msg.GlobalPinnedBy = &pinnedBy.String
	}
	if pinnedAt.Valid {
		t := time.UnixMicro(pinnedAt.Int64).UTC()
		msg.GlobalPinnedAt = &t
	}
	return &msg, nil
}

// scanMessages drains and closes rows.
func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
