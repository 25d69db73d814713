package scheduling

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a rendez-vous.
type Status string

const (
	// StatusDraft is the initial state; drafts are never published to activity streams.
	StatusDraft Status = "draft"
	// StatusScheduled indicates the organizer confirmed a date.
	StatusScheduled Status = "scheduled"
	// StatusCancelled indicates the organizer called the rendez-vous off.
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusCancelled:
		return true
	}
	return false
}

// Vote is an attendee's availability for one candidate date.
type Vote string

const (
	VoteUnspecified Vote = "unspecified"
	VoteAvailable   Vote = "available"
	VoteUnavailable Vote = "unavailable"
)

// Valid reports whether v is one of the three accepted values.
func (v Vote) Valid() bool {
	switch v {
	case VoteUnspecified, VoteAvailable, VoteUnavailable:
		return true
	}
	return false
}

func (v Vote) weight() int {
	switch v {
	case VoteAvailable:
		return 1
	case VoteUnavailable:
		return -1
	}
	return 0
}

// RendezVous is a meeting proposal together with its vote ledger.
type RendezVous struct {
	ID             string
	Organizer      string
	GroupID        string
	Title          string
	Description    string
	Venue          string
	Duration       int // minutes
	CandidateDates []time.Time
	Attendees      []string
	Status         Status
	ConfirmedDate  *time.Time
	Ledger         VoteLedger
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SlotLength returns the meeting duration as a time.Duration.
func (r RendezVous) SlotLength() time.Duration {
	return time.Duration(r.Duration) * time.Minute
}

// HasDate reports whether date is one of the candidate dates.
func (r RendezVous) HasDate(date time.Time) bool {
	return indexOfDate(r.CandidateDates, normalizeDate(date)) >= 0
}

// IsAttendee reports whether userID was invited to vote.
func (r RendezVous) IsAttendee(userID string) bool {
	return slices.Contains(r.Attendees, userID)
}

// Started reports whether a scheduled rendez-vous has reached its confirmed time.
func (r RendezVous) Started(now time.Time) bool {
	if r.Status != StatusScheduled || r.ConfirmedDate == nil {
		return false
	}
	return !now.Before(*r.ConfirmedDate)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r RendezVous) Clone() RendezVous {
	out := r
	out.CandidateDates = slices.Clone(r.CandidateDates)
	out.Attendees = slices.Clone(r.Attendees)
	if r.ConfirmedDate != nil {
		date := *r.ConfirmedDate
		out.ConfirmedDate = &date
	}
	out.Ledger = r.Ledger.Clone()
	return out
}

// normalizeDate maps a timestamp to the canonical form used as a ledger key.
func normalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func normalizeDates(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = normalizeDate(d)
	}
	return out
}

func indexOfDate(dates []time.Time, date time.Time) int {
	for i, d := range dates {
		if d.Equal(date) {
			return i
		}
	}
	return -1
}
