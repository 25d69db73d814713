package persistence

import (
	"context"
	"time"
)

// MemberSearch narrows member lookups for the attendee picker.
type MemberSearch struct {
	Terms   string
	Exclude []string
	Limit   int
	Offset  int
}

// MemberRepository stores member accounts.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	// SearchMembers returns one page of matches and the total match count.
	SearchMembers(ctx context.Context, search MemberSearch) ([]Member, int, error)
	// MissingMemberIDs returns the ids that do not name a member.
	MissingMemberIDs(ctx context.Context, ids []string) ([]string, error)
}

// GroupRepository stores groups and memberships.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group Group) error
	GetGroup(ctx context.Context, id string) (Group, error)
	UpdateGroup(ctx context.Context, group Group) error
	AddMembership(ctx context.Context, membership GroupMembership) error
	GetMembership(ctx context.Context, groupID, memberID string) (GroupMembership, error)
}

// RendezVousFilter narrows rendez-vous queries. Zero fields do not filter.
type RendezVousFilter struct {
	OrganizerID string
	AttendeeID  string
	GroupID     string
	Statuses    []string
	// From and To bound candidate dates, or the confirmed date once set.
	From *time.Time
	To   *time.Time
}

// RendezVousRepository stores rendez-vous with their dates, attendees and votes.
type RendezVousRepository interface {
	CreateRendezVous(ctx context.Context, rv RendezVous) error
	GetRendezVous(ctx context.Context, id string) (RendezVous, error)
	// UpdateRendezVous replaces the record when its stored version equals
	// expectedVersion and returns it with the incremented version.
	UpdateRendezVous(ctx context.Context, rv RendezVous, expectedVersion int64) (RendezVous, error)
	ListRendezVous(ctx context.Context, filter RendezVousFilter) ([]RendezVous, error)
	DeleteRendezVous(ctx context.Context, id string) error
}

// ActivityRepository stores activity stream entries.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	ListActivities(ctx context.Context, rendezVousID string) ([]Activity, error)
	DeleteActivitiesForRendezVous(ctx context.Context, rendezVousID string) (int, error)
}

// NotificationRepository stores per-member notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) error
	ListNotifications(ctx context.Context, recipientID string) ([]Notification, error)
	DeleteNotificationsForRendezVous(ctx context.Context, rendezVousID string) (int, error)
}
