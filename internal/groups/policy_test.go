package groups

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

type groupStoreStub struct {
	groups      map[string]persistence.Group
	memberships map[string]bool
	lookups     int
	err         error
}

func newGroupStoreStub() *groupStoreStub {
	return &groupStoreStub{
		groups: map[string]persistence.Group{
			"g1": {ID: "g1", Slug: "hikers", RendezVousEnabled: true},
			"g2": {ID: "g2", Slug: "readers"},
		},
		memberships: map[string]bool{"g1/alice": true, "g2/alice": true},
	}
}

func (s *groupStoreStub) CreateGroup(ctx context.Context, group persistence.Group) error { return nil }

func (s *groupStoreStub) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	s.lookups++
	if s.err != nil {
		return persistence.Group{}, s.err
	}
	group, ok := s.groups[id]
	if !ok {
		return persistence.Group{}, persistence.ErrNotFound
	}
	return group, nil
}

func (s *groupStoreStub) UpdateGroup(ctx context.Context, group persistence.Group) error { return nil }

func (s *groupStoreStub) AddMembership(ctx context.Context, membership persistence.GroupMembership) error {
	return nil
}

func (s *groupStoreStub) GetMembership(ctx context.Context, groupID, memberID string) (persistence.GroupMembership, error) {
	if !s.memberships[groupID+"/"+memberID] {
		return persistence.GroupMembership{}, persistence.ErrNotFound
	}
	return persistence.GroupMembership{GroupID: groupID, MemberID: memberID}, nil
}

func TestPolicy_Links(t *testing.T) {
	t.Parallel()

	store := newGroupStoreStub()
	p := NewPolicy(store, nil)
	rv := scheduling.RendezVous{ID: "rdv-1", Organizer: "alice", GroupID: "g1"}

	if got := p.Links(rv).View; got != "/groups/g1/rendez-vous/?rdv=rdv-1" {
		t.Fatalf("expected the id to stand in before Prepare, got %q", got)
	}
	if store.lookups != 0 {
		t.Fatalf("expected Links to leave the repository alone, got %d lookups", store.lookups)
	}

	p.Prepare(context.Background(), rv, scheduling.RendezVous{ID: "rdv-2", GroupID: "g1"}, scheduling.RendezVous{ID: "rdv-4", Organizer: "bob"})
	if store.lookups != 1 {
		t.Fatalf("expected one lookup per uncached group, got %d", store.lookups)
	}
	want := scheduling.Links{
		View:   "/groups/hikers/rendez-vous/?rdv=rdv-1",
		Edit:   "/groups/hikers/rendez-vous/?rdv=rdv-1&action=edit",
		Delete: "/groups/hikers/rendez-vous/?rdv=rdv-1&action=delete",
	}
	if links := p.Links(rv); links != want {
		t.Fatalf("unexpected links: %#v", links)
	}

	p.Prepare(context.Background(), rv)
	p.Links(scheduling.RendezVous{ID: "rdv-2", GroupID: "g1"})
	if store.lookups != 1 {
		t.Fatalf("expected the slug to be cached, got %d lookups", store.lookups)
	}

	gone := scheduling.RendezVous{ID: "rdv-3", GroupID: "gone"}
	p.Prepare(context.Background(), gone)
	if got := p.Links(gone).View; got != "/groups/gone/rendez-vous/?rdv=rdv-3" {
		t.Fatalf("expected the id to stand in for a missing slug, got %q", got)
	}

	member := p.Links(scheduling.RendezVous{ID: "rdv-4", Organizer: "bob"})
	if member.View != "/members/bob/rendez-vous/?rdv=rdv-4" {
		t.Fatalf("expected member links for records without group, got %q", member.View)
	}
}

func TestPolicy_ForgetDropsTheSlug(t *testing.T) {
	t.Parallel()

	store := newGroupStoreStub()
	p := NewPolicy(store, nil)
	rv := scheduling.RendezVous{ID: "rdv-1", GroupID: "g1"}
	p.Prepare(context.Background(), rv)

	store.groups["g1"] = persistence.Group{ID: "g1", Slug: "walkers", RendezVousEnabled: true}
	p.Forget("g1")
	if got := p.Links(rv).View; got != "/groups/g1/rendez-vous/?rdv=rdv-1" {
		t.Fatalf("expected the forgotten slug to be gone, got %q", got)
	}
	p.Prepare(context.Background(), rv)
	if got := p.Links(rv).View; got != "/groups/walkers/rendez-vous/?rdv=rdv-1" {
		t.Fatalf("expected the renamed slug, got %q", got)
	}
}

func TestPolicy_CurrentAction(t *testing.T) {
	t.Parallel()

	p := NewPolicy(newGroupStoreStub(), nil)
	tests := []struct {
		query url.Values
		want  string
	}{
		{query: url.Values{}, want: scheduling.ActionSchedule},
		{query: url.Values{"rdv": {"rdv-1"}}, want: scheduling.ActionView},
		{query: url.Values{"rdv": {"rdv-1"}, "action": {"edit"}}, want: scheduling.ActionEdit},
		{query: url.Values{"rdv": {"rdv-1"}, "action": {"delete"}}, want: scheduling.ActionDelete},
	}
	for _, tt := range tests {
		if got := p.CurrentAction(tt.query); got != tt.want {
			t.Errorf("CurrentAction(%v) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestPolicy_ActivityArgs(t *testing.T) {
	t.Parallel()

	p := NewPolicy(newGroupStoreStub(), nil)
	rv := scheduling.RendezVous{ID: "rdv-1", Organizer: "alice", GroupID: "g1"}
	p.Prepare(context.Background(), rv)
	args := p.ActivityArgs(rv, scheduling.ActivityArgs{Type: "new_rendez_vous"})
	if args.Component != ComponentGroups || args.ItemID != "g1" || args.SecondaryItemID != "rdv-1" || args.UserID != "alice" {
		t.Fatalf("unexpected args: %#v", args)
	}
	if args.Type != "new_rendez_vous" || args.PrimaryLink != "/groups/hikers/rendez-vous/?rdv=rdv-1" {
		t.Fatalf("unexpected args: %#v", args)
	}

	member := p.ActivityArgs(scheduling.RendezVous{ID: "rdv-2", Organizer: "bob"}, scheduling.ActivityArgs{UserID: "carol"})
	if member.Component != scheduling.ComponentRendezVous || member.ItemID != "rdv-2" || member.SecondaryItemID != "bob" || member.UserID != "carol" {
		t.Fatalf("unexpected member args: %#v", member)
	}
}

func TestPolicy_CanCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		userID  string
		groupID string
		want    bool
	}{
		{name: "member of enabled group", userID: "alice", groupID: "g1", want: true},
		{name: "outsider", userID: "bob", groupID: "g1"},
		{name: "extension disabled", userID: "alice", groupID: "g2"},
		{name: "unknown group", userID: "alice", groupID: "g9"},
		{name: "anonymous", userID: "", groupID: "g1"},
		{name: "no group", userID: "bob", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPolicy(newGroupStoreStub(), nil)
			got, err := p.CanCreate(context.Background(), tt.userID, tt.groupID)
			if err != nil {
				t.Fatalf("CanCreate failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CanCreate(%q, %q) = %v, want %v", tt.userID, tt.groupID, got, tt.want)
			}
		})
	}

	t.Run("propagates storage failures", func(t *testing.T) {
		t.Parallel()

		store := newGroupStoreStub()
		store.err = errors.New("boom")
		if _, err := NewPolicy(store, nil).CanCreate(context.Background(), "alice", "g1"); err == nil {
			t.Fatalf("expected an error")
		}
	})
}
