package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// activityFeedLimit caps the entries returned by List.
const activityFeedLimit = 100

type activityService struct {
	repo       ports.ActivityRepository
	membership ports.Membership
	log        zerolog.Logger
}

// NewActivityService returns an ActivityService implementation.
func NewActivityService(repo ports.ActivityRepository, membership ports.Membership, log zerolog.Logger) ports.ActivityService {
	return &activityService{repo: repo, membership: membership, log: log}
}

// Record persists a single activity entry. It is called from the dispatcher
// workers, never from request handlers.
func (s *activityService) Record(ctx context.Context, a domain.Activity) error {
	if a.ProjectID == "" || a.Kind == "" {
		return domain.Invalid("activity", "project and kind are required")
	}
	if err := s.repo.Insert(ctx, &a); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	s.log.Debug().
		Str("project_id", a.ProjectID).
		Str("kind", string(a.Kind)).
		Msg("activity recorded")
	return nil
}

func (s *activityService) List(ctx context.Context, caller domain.Caller, projectID string) ([]*domain.Activity, error) {
	if err := s.membership.Authorize(ctx, caller, projectID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByProject(ctx, projectID, activityFeedLimit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if items == nil {
		items = []*domain.Activity{}
	}
	return items, nil
}
