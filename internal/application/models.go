package application

import (
	"time"

	"github.com/example/rendez-vous/internal/scheduling"
)

// Principal represents the authenticated member invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// CandidateDay is a calendar day picked in the editor with up to three
// start hours formatted HH:MM.
type CandidateDay struct {
	Date  string
	Hours []string
}

// CreateRendezVousInput captures the organizer's proposal. Dates and Days
// are combined into the candidate dates.
type CreateRendezVousInput struct {
	// Organizer defaults to the principal; only admins may name someone else.
	Organizer      string
	GroupID        string
	Title          string
	Description    string
	Venue          string
	Duration       int
	Dates          []time.Time
	Days           []CandidateDay
	Attendees      []string
	AllowPastDates bool
	// Rejected holds violations found while decoding the request. They are
	// reported together with every other violation.
	Rejected []scheduling.FieldViolation
}

// CreateRendezVousParams wraps the data required to create a rendez-vous.
type CreateRendezVousParams struct {
	Principal Principal
	Input     CreateRendezVousInput
}

// UpdateRendezVousInput lists the fields to change. Nil fields are kept.
// Organizer is accepted only to reject attempts to change it.
type UpdateRendezVousInput struct {
	Organizer      *string
	Title          *string
	Description    *string
	Venue          *string
	Duration       *int
	Dates          *[]time.Time
	Days           *[]CandidateDay
	Attendees      *[]string
	AllowPastDates bool
	// Rejected holds violations found while decoding the request.
	Rejected []scheduling.FieldViolation
}

// UpdateRendezVousParams wraps an organizer edit. A zero Version skips the
// client-side freshness check.
type UpdateRendezVousParams struct {
	Principal    Principal
	RendezVousID string
	Version      int64
	Input        UpdateRendezVousInput
}

// VoteInput is one cell of a vote submission.
type VoteInput struct {
	Date time.Time
	Vote scheduling.Vote
}

// CastVotesParams wraps the votes an attendee submitted at once.
type CastVotesParams struct {
	Principal    Principal
	RendezVousID string
	Votes        []VoteInput
	// Rejected holds cells that could not be decoded.
	Rejected []scheduling.FieldViolation
}

// ConfirmParams wraps a confirmation. A nil Date confirms the resolved date.
type ConfirmParams struct {
	Principal    Principal
	RendezVousID string
	Date         *time.Time
	Reschedule   bool
}

// ListRendezVousParams narrows listings. Non-admins only see records they
// organize or attend.
type ListRendezVousParams struct {
	Principal   Principal
	OrganizerID string
	AttendeeID  string
	GroupID     string
	Statuses    []scheduling.Status
	From        *time.Time
	To          *time.Time
}

// ResolutionReport is the resolution of one record version together with
// the confirmed meetings its candidate slots collide with.
type ResolutionReport struct {
	RendezVousID string
	Version      int64
	Resolution   scheduling.Resolution
	Overlaps     []scheduling.Overlap
}

// Member is a member account without its credentials.
type Member struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SearchMembersParams drives the attendee picker. The caller is excluded
// unless IncludeSelf is set.
type SearchMembersParams struct {
	Principal   Principal
	Terms       string
	Page        int
	PerPage     int
	IncludeSelf bool
	Exclude     []string
}

// MemberPage is one page of member search results.
type MemberPage struct {
	Members    []Member
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// CreateMemberParams wraps the data required to create a member.
type CreateMemberParams struct {
	Principal   Principal
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// AuthenticateParams captures the data required to authenticate a member.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful login.
type AuthenticateResult struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
	Member    Member
}

// Group is a community exposed to API callers.
type Group struct {
	ID                string
	Slug              string
	Name              string
	RendezVousEnabled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
