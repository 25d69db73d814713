package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
)

// GroupService manages the rendez-vous extension of groups.
type GroupService struct {
	groups persistence.GroupRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(groups persistence.GroupRepository, now func() time.Time, logger *slog.Logger) *GroupService {
	if now == nil {
		now = time.Now
	}
	return &GroupService{groups: groups, now: now, logger: defaultLogger(logger)}
}

// Get returns a group by id.
func (s *GroupService) Get(ctx context.Context, id string) (Group, error) {
	if s == nil || s.groups == nil {
		return Group{}, fmt.Errorf("GroupService is not configured")
	}
	stored, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		return Group{}, mapRepoError(err)
	}
	return toGroup(stored), nil
}

// SetRendezVousEnabled switches the extension on or off. Group admins and
// site admins may call it.
func (s *GroupService) SetRendezVousEnabled(ctx context.Context, principal Principal, groupID string, enabled bool) (group Group, err error) {
	if s == nil || s.groups == nil {
		return Group{}, fmt.Errorf("GroupService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "GroupService", "SetRendezVousEnabled",
		"principal_id", principal.UserID, "group_id", groupID, "enabled", enabled)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update group", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "group extension updated")
	}()

	stored, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return Group{}, mapRepoError(err)
	}
	if !principal.IsAdmin {
		membership, err := s.groups.GetMembership(ctx, groupID, principal.UserID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return Group{}, ErrUnauthorized
			}
			return Group{}, err
		}
		if !membership.IsAdmin {
			return Group{}, ErrUnauthorized
		}
	}

	if stored.RendezVousEnabled == enabled {
		return toGroup(stored), nil
	}
	stored.RendezVousEnabled = enabled
	stored.UpdatedAt = s.now()
	if err := s.groups.UpdateGroup(ctx, stored); err != nil {
		return Group{}, mapRepoError(err)
	}
	return toGroup(stored), nil
}
