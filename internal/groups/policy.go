// Package groups implements the rendez-vous extension of groups: links,
// activity attribution and creation rights for group-scoped records.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

// ComponentGroups is the activity component of group-scoped records.
const ComponentGroups = "groups"

// Policy serves rendez-vous attached to a group and defers to
// scheduling.MemberPolicy for the others.
type Policy struct {
	groups   persistence.GroupRepository
	fallback scheduling.MemberPolicy
	logger   *slog.Logger

	mu    sync.RWMutex
	slugs map[string]string
}

var _ scheduling.SchedulingPolicy = (*Policy)(nil)

// NewPolicy constructs a Policy over the group repository.
func NewPolicy(groups persistence.GroupRepository, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{groups: groups, logger: logger, slugs: make(map[string]string)}
}

// Prepare caches the slugs of the groups records belong to.
func (p *Policy) Prepare(ctx context.Context, records ...scheduling.RendezVous) {
	for _, rv := range records {
		if rv.GroupID == "" {
			continue
		}
		if _, ok := p.cached(rv.GroupID); ok {
			continue
		}
		p.lookup(ctx, rv.GroupID)
	}
}

// Links returns /groups/{slug}/rendez-vous/ paths from the slug cache. The
// group id stands in for slugs that were never prepared or could not be read.
func (p *Policy) Links(rv scheduling.RendezVous) scheduling.Links {
	if rv.GroupID == "" {
		return p.fallback.Links(rv)
	}
	slug, ok := p.cached(rv.GroupID)
	if !ok {
		slug = rv.GroupID
	}
	base := "/groups/" + url.PathEscape(slug) + "/rendez-vous/"
	return scheduling.BuildLinks(base, rv.ID)
}

// CurrentAction reads the action query parameter.
func (p *Policy) CurrentAction(query url.Values) string {
	return scheduling.ParseAction(query)
}

// ActivityArgs files group activity under the group with the rendez-vous as
// secondary item.
func (p *Policy) ActivityArgs(rv scheduling.RendezVous, args scheduling.ActivityArgs) scheduling.ActivityArgs {
	if rv.GroupID == "" {
		return p.fallback.ActivityArgs(rv, args)
	}
	args.Component = ComponentGroups
	args.ItemID = rv.GroupID
	args.SecondaryItemID = rv.ID
	if args.UserID == "" {
		args.UserID = rv.Organizer
	}
	args.PrimaryLink = p.Links(rv).View
	return args
}

// CanCreate requires the group to have the extension enabled and userID to
// be one of its members.
func (p *Policy) CanCreate(ctx context.Context, userID, groupID string) (bool, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return p.fallback.CanCreate(ctx, userID, groupID)
	}
	if strings.TrimSpace(userID) == "" || p.groups == nil {
		return false, nil
	}

	group, err := p.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get group %s: %w", groupID, err)
	}
	p.remember(group)
	if !group.RendezVousEnabled {
		return false, nil
	}

	if _, err := p.groups.GetMembership(ctx, groupID, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get membership: %w", err)
	}
	return true, nil
}

// Forget drops the cached slug of a group after it was renamed.
func (p *Policy) Forget(groupID string) {
	p.mu.Lock()
	delete(p.slugs, groupID)
	p.mu.Unlock()
}

func (p *Policy) cached(groupID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	slug, ok := p.slugs[groupID]
	return slug, ok
}

func (p *Policy) lookup(ctx context.Context, groupID string) {
	if p.groups == nil {
		return
	}
	group, err := p.groups.GetGroup(ctx, groupID)
	if err != nil {
		p.logger.WarnContext(ctx, "group slug lookup failed", "group_id", groupID, "error", err)
		return
	}
	p.remember(group)
}

func (p *Policy) remember(group persistence.Group) {
	slug := group.Slug
	if slug == "" {
		slug = group.ID
	}
	p.mu.Lock()
	p.slugs[group.ID] = slug
	p.mu.Unlock()
}
