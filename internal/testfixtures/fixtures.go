package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

var (
	memberCounter     uint64
	groupCounter      uint64
	rendezVousCounter uint64
)

var referenceTime = time.Date(2030, time.January, 6, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// CandidateDate returns the given day of February 2030 at hour UTC, safely
// in the future of ReferenceTime.
func CandidateDate(day, hour int) time.Time {
	return time.Date(2030, time.February, day, hour, 0, 0, 0, time.UTC)
}

// ----------------------------- Member fixtures -----------------------------

// MemberFixture represents a deterministic member record that can be
// materialised for application or persistence tests.
type MemberFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns a deterministic member fixture with optional overrides.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	id := fmt.Sprintf("member-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := MemberFixture{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  fmt.Sprintf("Member %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the generated id. The email follows unless set
// explicitly afterwards.
func WithMemberID(id string) MemberOption {
	return func(f *MemberFixture) {
		f.ID = id
		f.Email = id + "@example.com"
	}
}

// WithMemberEmail overrides the generated email address.
func WithMemberEmail(email string) MemberOption {
	return func(f *MemberFixture) { f.Email = email }
}

// WithMemberDisplayName overrides the generated display name.
func WithMemberDisplayName(name string) MemberOption {
	return func(f *MemberFixture) { f.DisplayName = name }
}

// WithMemberPasswordHash overrides the generated password hash.
func WithMemberPasswordHash(hash string) MemberOption {
	return func(f *MemberFixture) { f.PasswordHash = hash }
}

// WithMemberAdmin sets the site admin flag.
func WithMemberAdmin(isAdmin bool) MemberOption {
	return func(f *MemberFixture) { f.IsAdmin = isAdmin }
}

// Persistence returns the fixture as a stored member.
func (f MemberFixture) Persistence() persistence.Member {
	return persistence.Member{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Application returns the fixture as an application.Member value.
func (f MemberFixture) Application() application.Member {
	return application.Member{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Principal returns the principal acting as this member.
func (f MemberFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// ----------------------------- Group fixtures -----------------------------

// GroupFixture represents a deterministic group.
type GroupFixture struct {
	ID                string
	Slug              string
	Name              string
	RendezVousEnabled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GroupOption configures the generated group fixture.
type GroupOption func(*GroupFixture)

// NewGroupFixture returns a deterministic group with the extension disabled.
func NewGroupFixture(opts ...GroupOption) GroupFixture {
	idx := atomic.AddUint64(&groupCounter, 1)
	fixture := GroupFixture{
		ID:        fmt.Sprintf("group-%03d", idx),
		Slug:      fmt.Sprintf("group-%03d-slug", idx),
		Name:      fmt.Sprintf("Group %03d", idx),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGroupID overrides the generated id.
func WithGroupID(id string) GroupOption {
	return func(f *GroupFixture) { f.ID = id }
}

// WithGroupSlug overrides the generated slug.
func WithGroupSlug(slug string) GroupOption {
	return func(f *GroupFixture) { f.Slug = slug }
}

// WithGroupRendezVousEnabled toggles the extension.
func WithGroupRendezVousEnabled(enabled bool) GroupOption {
	return func(f *GroupFixture) { f.RendezVousEnabled = enabled }
}

// Persistence returns the fixture as a stored group.
func (f GroupFixture) Persistence() persistence.Group {
	return persistence.Group{
		ID:                f.ID,
		Slug:              f.Slug,
		Name:              f.Name,
		RendezVousEnabled: f.RendezVousEnabled,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// -------------------------- Rendez-vous fixtures --------------------------

// RendezVousFixture represents a deterministic draft rendez-vous with a vote
// ledger covering every attendee and candidate date.
type RendezVousFixture struct {
	ID             string
	Organizer      string
	GroupID        string
	Title          string
	Description    string
	Venue          string
	Duration       int
	CandidateDates []time.Time
	Attendees      []string
	Status         scheduling.Status
	ConfirmedDate  *time.Time
	Votes          []scheduling.Cell
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RendezVousOption configures the generated rendez-vous fixture.
type RendezVousOption func(*RendezVousFixture)

// NewRendezVousFixture returns a one hour draft organized by "alice" with
// "bob" and "carol" invited over two February candidate dates.
func NewRendezVousFixture(opts ...RendezVousOption) RendezVousFixture {
	idx := atomic.AddUint64(&rendezVousCounter, 1)
	fixture := RendezVousFixture{
		ID:             fmt.Sprintf("rdv-%03d", idx),
		Organizer:      "alice",
		Title:          fmt.Sprintf("Rendez-vous %03d", idx),
		Duration:       60,
		CandidateDates: []time.Time{CandidateDate(1, 10), CandidateDate(2, 10)},
		Attendees:      []string{"bob", "carol"},
		Status:         scheduling.StatusDraft,
		Version:        1,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRendezVousID overrides the generated id.
func WithRendezVousID(id string) RendezVousOption {
	return func(f *RendezVousFixture) { f.ID = id }
}

// WithOrganizer overrides the organizer.
func WithOrganizer(id string) RendezVousOption {
	return func(f *RendezVousFixture) { f.Organizer = id }
}

// WithGroup attaches the rendez-vous to a group.
func WithGroup(id string) RendezVousOption {
	return func(f *RendezVousFixture) { f.GroupID = id }
}

// WithAttendees replaces the attendee list.
func WithAttendees(ids ...string) RendezVousOption {
	return func(f *RendezVousFixture) { f.Attendees = append([]string(nil), ids...) }
}

// WithCandidateDates replaces the candidate dates.
func WithCandidateDates(dates ...time.Time) RendezVousOption {
	return func(f *RendezVousFixture) { f.CandidateDates = append([]time.Time(nil), dates...) }
}

// WithDuration overrides the duration in minutes.
func WithDuration(minutes int) RendezVousOption {
	return func(f *RendezVousFixture) { f.Duration = minutes }
}

// WithVote records a vote cell.
func WithVote(attendee string, date time.Time, vote scheduling.Vote) RendezVousOption {
	return func(f *RendezVousFixture) {
		f.Votes = append(f.Votes, scheduling.Cell{Attendee: attendee, Date: date, Vote: vote})
	}
}

// WithConfirmedDate marks the fixture scheduled at date.
func WithConfirmedDate(date time.Time) RendezVousOption {
	return func(f *RendezVousFixture) {
		f.Status = scheduling.StatusScheduled
		f.ConfirmedDate = &date
	}
}

// WithStatus overrides the status.
func WithStatus(status scheduling.Status) RendezVousOption {
	return func(f *RendezVousFixture) { f.Status = status }
}

// WithVersion overrides the version.
func WithVersion(version int64) RendezVousOption {
	return func(f *RendezVousFixture) { f.Version = version }
}

// Engine returns the fixture as an engine entity.
func (f RendezVousFixture) Engine() scheduling.RendezVous {
	rv := scheduling.RendezVous{
		ID:             f.ID,
		Organizer:      f.Organizer,
		GroupID:        f.GroupID,
		Title:          f.Title,
		Description:    f.Description,
		Venue:          f.Venue,
		Duration:       f.Duration,
		CandidateDates: append([]time.Time(nil), f.CandidateDates...),
		Attendees:      append([]string(nil), f.Attendees...),
		Status:         f.Status,
		Ledger:         scheduling.Restore(f.Attendees, f.CandidateDates, f.Votes),
		Version:        f.Version,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.ConfirmedDate != nil {
		confirmed := *f.ConfirmedDate
		rv.ConfirmedDate = &confirmed
	}
	return rv
}

// Persistence returns the fixture as a stored record. Only explicit votes
// are stored.
func (f RendezVousFixture) Persistence() persistence.RendezVous {
	stored := persistence.RendezVous{
		ID:             f.ID,
		OrganizerID:    f.Organizer,
		Title:          f.Title,
		Description:    f.Description,
		Venue:          f.Venue,
		Duration:       f.Duration,
		Status:         string(f.Status),
		CandidateDates: append([]time.Time(nil), f.CandidateDates...),
		Attendees:      append([]string(nil), f.Attendees...),
		Version:        f.Version,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.GroupID != "" {
		group := f.GroupID
		stored.GroupID = &group
	}
	if f.ConfirmedDate != nil {
		confirmed := *f.ConfirmedDate
		stored.ConfirmedAt = &confirmed
	}
	for _, cell := range f.Votes {
		stored.Votes = append(stored.Votes, persistence.VoteCell{
			MemberID: cell.Attendee,
			Date:     cell.Date,
			Vote:     string(cell.Vote),
		})
	}
	return stored
}
