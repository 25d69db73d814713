package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

type activityStoreStub struct {
	activities    []persistence.Activity
	notifications []persistence.Notification
	createErr     error
}

func (s *activityStoreStub) CreateActivity(ctx context.Context, a persistence.Activity) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.activities = append(s.activities, a)
	return nil
}

func (s *activityStoreStub) ListActivities(ctx context.Context, rendezVousID string) ([]persistence.Activity, error) {
	var out []persistence.Activity
	for _, a := range s.activities {
		if a.RendezVousID == rendezVousID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *activityStoreStub) DeleteActivitiesForRendezVous(ctx context.Context, rendezVousID string) (int, error) {
	before := len(s.activities)
	s.activities = slices.DeleteFunc(s.activities, func(a persistence.Activity) bool { return a.RendezVousID == rendezVousID })
	return before - len(s.activities), nil
}

func (s *activityStoreStub) CreateNotification(ctx context.Context, n persistence.Notification) error {
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *activityStoreStub) ListNotifications(ctx context.Context, recipientID string) ([]persistence.Notification, error) {
	var out []persistence.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *activityStoreStub) DeleteNotificationsForRendezVous(ctx context.Context, rendezVousID string) (int, error) {
	before := len(s.notifications)
	s.notifications = slices.DeleteFunc(s.notifications, func(n persistence.Notification) bool { return n.RendezVousID == rendezVousID })
	return before - len(s.notifications), nil
}

var publishedAt = time.Date(2030, 1, 6, 9, 0, 0, 0, time.UTC)

func newTestPublisher(store *activityStoreStub, policy scheduling.SchedulingPolicy) *Publisher {
	seq := 0
	return NewPublisher(store, store, policy,
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
		WithClock(func() time.Time { return publishedAt }),
	)
}

func snapshot(status scheduling.Status) scheduling.RendezVous {
	return scheduling.RendezVous{
		ID:          "rdv-1",
		Organizer:   "alice",
		Title:       "Retro",
		Description: "Look back at the quarter",
		Duration:    60,
		Attendees:   []string{"alice", "bob", "carol"},
		Status:      status,
	}
}

func event(kind scheduling.EventKind, status scheduling.Status) scheduling.Event {
	return scheduling.Event{Kind: kind, RendezVousID: "rdv-1", Snapshot: snapshot(status), OccurredAt: publishedAt}
}

func activityTypes(activities []persistence.Activity) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = a.Type
	}
	return out
}

func TestPublisher_DraftsStayOutOfTheStream(t *testing.T) {
	t.Parallel()

	store := &activityStoreStub{}
	p := newTestPublisher(store, nil)
	ctx := context.Background()

	for _, kind := range []scheduling.EventKind{scheduling.EventCreated, scheduling.EventUpdated} {
		if err := p.Publish(ctx, "alice", event(kind, scheduling.StatusDraft)); err != nil {
			t.Fatalf("Publish(%s) failed: %v", kind, err)
		}
	}
	if len(store.activities) != 0 {
		t.Fatalf("expected no activity for drafts, got %#v", store.activities)
	}

	want := []string{"bob", "carol", "bob", "carol"}
	got := make([]string, len(store.notifications))
	for i, n := range store.notifications {
		got[i] = n.RecipientID
	}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected recipients: got %v want %v", got, want)
	}
}

func TestPublisher_Lifecycle(t *testing.T) {
	t.Parallel()

	store := &activityStoreStub{}
	p := newTestPublisher(store, nil)
	ctx := context.Background()

	steps := []scheduling.Event{
		event(scheduling.EventConfirmed, scheduling.StatusScheduled),
		event(scheduling.EventUpdated, scheduling.StatusScheduled),
		event(scheduling.EventCancelled, scheduling.StatusCancelled),
	}
	for _, e := range steps {
		if err := p.Publish(ctx, "alice", e); err != nil {
			t.Fatalf("Publish(%s) failed: %v", e.Kind, err)
		}
	}

	if got := activityTypes(store.activities); !slices.Equal(got, []string{TypeNew, TypeUpdated, TypeCancelled}) {
		t.Fatalf("unexpected activity types: %v", got)
	}
	first := store.activities[0]
	if first.Component != scheduling.ComponentRendezVous || first.ItemID != "rdv-1" || first.SecondaryItemID != "alice" || first.UserID != "alice" {
		t.Fatalf("unexpected attribution: %#v", first)
	}
	if first.Content != "Look back at the quarter" || first.Title != "Retro" || !first.CreatedAt.Equal(publishedAt) {
		t.Fatalf("unexpected content: %#v", first)
	}
	if !strings.HasPrefix(first.PrimaryLink, "/members/alice/rendez-vous/") {
		t.Fatalf("unexpected link %q", first.PrimaryLink)
	}
	if store.activities[1].Content != "" {
		t.Fatalf("updates carry no content")
	}

	if err := p.Publish(ctx, "alice", event(scheduling.EventDeleted, scheduling.StatusCancelled)); err != nil {
		t.Fatalf("Publish(deleted) failed: %v", err)
	}
	if len(store.activities) != 0 || len(store.notifications) != 0 {
		t.Fatalf("expected delete to cascade, got %d activities and %d notifications", len(store.activities), len(store.notifications))
	}
}

func TestPublisher_CancellingAnUnpublishedDraft(t *testing.T) {
	t.Parallel()

	store := &activityStoreStub{}
	p := newTestPublisher(store, nil)
	if err := p.Publish(context.Background(), "alice", event(scheduling.EventCancelled, scheduling.StatusCancelled)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(store.activities) != 0 {
		t.Fatalf("expected no cancelled activity without prior activity")
	}
	if len(store.notifications) != 2 {
		t.Fatalf("expected attendees to be told, got %d", len(store.notifications))
	}
}

type groupArgsPolicy struct {
	scheduling.MemberPolicy
	prepared *[]string
}

func (p groupArgsPolicy) Prepare(_ context.Context, records ...scheduling.RendezVous) {
	for _, rv := range records {
		*p.prepared = append(*p.prepared, rv.ID)
	}
}

func (groupArgsPolicy) ActivityArgs(rv scheduling.RendezVous, args scheduling.ActivityArgs) scheduling.ActivityArgs {
	args.Component = "groups"
	args.ItemID = "group-1"
	args.SecondaryItemID = rv.ID
	return args
}

func TestPublisher_UsesPolicyArguments(t *testing.T) {
	t.Parallel()

	store := &activityStoreStub{}
	var prepared []string
	p := newTestPublisher(store, groupArgsPolicy{prepared: &prepared})
	if err := p.Publish(context.Background(), "bob", event(scheduling.EventConfirmed, scheduling.StatusScheduled)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(prepared) == 0 || prepared[0] != "rdv-1" {
		t.Fatalf("expected the record to be prepared before its arguments are built, got %v", prepared)
	}
	got := store.activities[0]
	if got.Component != "groups" || got.ItemID != "group-1" || got.SecondaryItemID != "rdv-1" || got.UserID != "bob" {
		t.Fatalf("unexpected activity: %#v", got)
	}
	if got.RendezVousID != "rdv-1" {
		t.Fatalf("expected the rendez-vous id to be kept for cascades")
	}
}

func TestPublisher_PropagatesStorageErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	store := &activityStoreStub{createErr: boom}
	p := newTestPublisher(store, nil)
	err := p.Publish(context.Background(), "alice", event(scheduling.EventConfirmed, scheduling.StatusScheduled))
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{text: "  short  ", limit: 10, want: "short"},
		{text: "one two three four", limit: 10, want: "one two […]"},
		{text: "abcdefghijkl", limit: 5, want: "abcde […]"},
	}
	for _, tt := range tests {
		if got := excerpt(tt.text, tt.limit); got != tt.want {
			t.Errorf("excerpt(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
