package services

import (
	"context"
	"time"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/repository"
)

// ReadStateService keeps read cursors and computes unread counts on demand.
type ReadStateService interface {
	Touch(ctx context.Context, userID, roomID string) (*models.ReadCursor, error)
	UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error)
}

type readStateService struct {
	repo repository.ReadStateRepository
	now  func() time.Time
}

// NewReadStateService wires the service.
func NewReadStateService(repo repository.ReadStateRepository) ReadStateService {
	return &readStateService{repo: repo, now: time.Now}
}

func (s *readStateService) Touch(ctx context.Context, userID, roomID string) (*models.ReadCursor, error) {
	return s.repo.Touch(ctx, userID, roomID, s.now())
}

func (s *readStateService) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadInfo, error) {
	return s.repo.UnreadCounts(ctx, userID)
}
