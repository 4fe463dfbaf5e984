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

type sqliteMembershipRepo struct {
	db *sql.DB
}

// NewSQLiteMembershipRepo returns a MembershipRepository backed by the
// event_members table.
func NewSQLiteMembershipRepo(db *sql.DB) MembershipRepository {
	return &sqliteMembershipRepo{db: db}
}

func (r *sqliteMembershipRepo) MemberRole(ctx context.Context, roomID, userID string) (models.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM event_members WHERE event_id = ? AND user_id = ?`, roomID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check membership: %w", err)
	}
	return models.Role(role), nil
}

// Add is an upsert: re-adding a member only updates the role.
func (r *sqliteMembershipRepo) Add(ctx context.Context, member *models.RoomMember) error {
	if member.Role == "" {
		member.Role = models.RoleUser
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_members (event_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE SET role = excluded.role`,
		member.RoomID, member.UserID, string(member.Role), member.JoinedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *sqliteMembershipRepo) Remove(ctx context.Context, roomID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM event_members WHERE event_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
