package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests.
type SQLiteHarness struct {
	Members       persistence.MemberRepository
	Groups        persistence.GroupRepository
	RendezVous    persistence.RendezVousRepository
	Activities    persistence.ActivityRepository
	Notifications persistence.NotificationRepository
	Storage       *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "rendezvous.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Members:       storage,
		Groups:        storage,
		RendezVous:    storage,
		Activities:    storage,
		Notifications: storage,
		Storage:       storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedMembers stores the given members.
func (h *SQLiteHarness) SeedMembers(tb testing.TB, members ...MemberFixture) {
	tb.Helper()
	for _, member := range members {
		if err := h.Members.CreateMember(context.Background(), member.Persistence()); err != nil {
			tb.Fatalf("failed to seed member %s: %v", member.ID, err)
		}
	}
}

// SeedGroup stores group and makes every memberID a member of it.
func (h *SQLiteHarness) SeedGroup(tb testing.TB, group GroupFixture, memberIDs ...string) {
	tb.Helper()
	ctx := context.Background()
	if err := h.Groups.CreateGroup(ctx, group.Persistence()); err != nil {
		tb.Fatalf("failed to seed group %s: %v", group.ID, err)
	}
	for _, id := range memberIDs {
		err := h.Groups.AddMembership(ctx, persistence.GroupMembership{GroupID: group.ID, MemberID: id, JoinedAt: group.CreatedAt})
		if err != nil {
			tb.Fatalf("failed to add %s to group %s: %v", id, group.ID, err)
		}
	}
}

// SeedRendezVous stores the given records.
func (h *SQLiteHarness) SeedRendezVous(tb testing.TB, records ...RendezVousFixture) {
	tb.Helper()
	for _, rv := range records {
		if err := h.RendezVous.CreateRendezVous(context.Background(), rv.Persistence()); err != nil {
			tb.Fatalf("failed to seed rendez-vous %s: %v", rv.ID, err)
		}
	}
}
