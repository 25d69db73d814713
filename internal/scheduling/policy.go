package scheduling

import (
	"context"
	"net/url"
	"strings"
)

// Actions reported by SchedulingPolicy.CurrentAction.
const (
	ActionSchedule = "schedule"
	ActionView     = "view"
	ActionEdit     = "edit"
	ActionDelete   = "delete"
)

// ComponentRendezVous is the activity component of member-scoped records.
const ComponentRendezVous = "rendez_vous"

// Links holds the paths a client uses to reach a rendez-vous.
type Links struct {
	View   string `json:"view"`
	Edit   string `json:"edit"`
	Delete string `json:"delete"`
}

// ActivityArgs describes the activity record written for an event.
type ActivityArgs struct {
	Type            string
	Component       string
	UserID          string
	ItemID          string
	SecondaryItemID string
	PrimaryLink     string
}

// SchedulingPolicy lets an extension override how rendez-vous are linked,
// which action a request targets, how activity is attributed and who may
// create records in a scope.
//
// Links and ActivityArgs do no I/O; Prepare loads what they need for a set
// of records beforehand.
type SchedulingPolicy interface {
	Prepare(ctx context.Context, records ...RendezVous)
	Links(rv RendezVous) Links
	CurrentAction(query url.Values) string
	ActivityArgs(rv RendezVous, args ActivityArgs) ActivityArgs
	CanCreate(ctx context.Context, userID, groupID string) (bool, error)
}

// MemberPolicy is the default policy for rendez-vous owned by a member and
// not attached to a group.
type MemberPolicy struct{}

var _ SchedulingPolicy = MemberPolicy{}

// Prepare is a no-op: member links are derived from the record alone.
func (MemberPolicy) Prepare(context.Context, ...RendezVous) {}

// Links returns member-scoped paths.
func (MemberPolicy) Links(rv RendezVous) Links {
	base := "/members/" + url.PathEscape(rv.Organizer) + "/rendez-vous/"
	return BuildLinks(base, rv.ID)
}

// CurrentAction reads the action query parameter. A request naming a
// rendez-vous without action views it; a bare request schedules a new one.
func (MemberPolicy) CurrentAction(query url.Values) string {
	return ParseAction(query)
}

// ActivityArgs attributes activity to the organizer with the rendez-vous as item.
func (p MemberPolicy) ActivityArgs(rv RendezVous, args ActivityArgs) ActivityArgs {
	args.Component = ComponentRendezVous
	args.ItemID = rv.ID
	args.SecondaryItemID = rv.Organizer
	if args.UserID == "" {
		args.UserID = rv.Organizer
	}
	args.PrimaryLink = p.Links(rv).View
	return args
}

// CanCreate allows any member to create rendez-vous outside of a group.
func (MemberPolicy) CanCreate(_ context.Context, userID, groupID string) (bool, error) {
	return strings.TrimSpace(userID) != "" && strings.TrimSpace(groupID) == "", nil
}

// BuildLinks derives view, edit and delete paths from a base listing path.
func BuildLinks(base, id string) Links {
	view := base + "?rdv=" + url.QueryEscape(id)
	return Links{
		View:   view,
		Edit:   view + "&action=" + ActionEdit,
		Delete: view + "&action=" + ActionDelete,
	}
}

// ParseAction maps request query parameters to an action.
func ParseAction(query url.Values) string {
	if len(query) == 0 {
		return ActionSchedule
	}
	switch action := query.Get("action"); action {
	case ActionEdit, ActionDelete:
		return action
	}
	if query.Get("rdv") != "" {
		return ActionView
	}
	return ActionSchedule
}
