package scheduling

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the component configuration handed to the engine.
type Config struct {
	// ExcludeOrganizerVotes drops the organizer's row from tallies when the
	// organizer is also an attendee. The row stays in the ledger.
	ExcludeOrganizerVotes bool
	// AllowPastDates disables the future-date check for every call.
	AllowPastDates bool
	// IDGenerator assigns identifiers at creation.
	IDGenerator func() string
	// Now is the engine clock.
	Now func() time.Time
}

// Engine implements the rendez-vous lifecycle and vote resolution. It
// performs no I/O; persistence and authorization are the caller's concern.
type Engine struct {
	cfg       Config
	observers []Observer
}

// NewEngine returns an engine using cfg.
func NewEngine(cfg Config) *Engine {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// With returns a copy of the engine that also notifies the given observers.
func (e *Engine) With(observers ...Observer) *Engine {
	out := &Engine{cfg: e.cfg}
	out.observers = append(slices.Clone(e.observers), observers...)
	return out
}

// CreateParams carries the organizer's proposal.
type CreateParams struct {
	Organizer      string
	GroupID        string
	Title          string
	Description    string
	Venue          string
	Duration       int
	CandidateDates []time.Time
	Attendees      []string
	// AllowPastDates overrides the soft future-date check for this call.
	AllowPastDates bool
}

// Create validates params and returns a new draft rendez-vous whose ledger
// holds an unspecified vote for every attendee and date.
func (e *Engine) Create(params CreateParams) (RendezVous, error) {
	now := e.cfg.Now()
	vErr := &ValidationError{}

	organizer := strings.TrimSpace(params.Organizer)
	if organizer == "" {
		vErr.Add("organizer", "organizer is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		vErr.Add("title", "title is required")
	}
	validateDuration(params.Duration, vErr)
	dates := validateDates(params.CandidateDates, nil, now, e.cfg.AllowPastDates || params.AllowPastDates, vErr)
	attendees := validateAttendees(params.Attendees, vErr)

	if err := vErr.Err(); err != nil {
		return RendezVous{}, err
	}

	rv := RendezVous{
		ID:             e.cfg.IDGenerator(),
		Organizer:      organizer,
		GroupID:        strings.TrimSpace(params.GroupID),
		Title:          title,
		Description:    params.Description,
		Venue:          strings.TrimSpace(params.Venue),
		Duration:       params.Duration,
		CandidateDates: dates,
		Attendees:      attendees,
		Status:         StatusDraft,
		Ledger:         NewVoteLedger(attendees, dates),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	e.emit(EventCreated, rv, nil)
	return rv.Clone(), nil
}

// Patch lists the fields an update changes. Nil fields are left untouched.
type Patch struct {
	ID             *string
	Organizer      *string
	Title          *string
	Description    *string
	Venue          *string
	Duration       *int
	CandidateDates *[]time.Time
	Attendees      *[]string
	AllowPastDates bool
}

// Update applies patch to rv. The ledger is pruned for removed dates and
// attendees and extended with unspecified cells for added ones. rv is only
// modified when the update succeeds.
func (e *Engine) Update(rv *RendezVous, patch Patch) (RendezVous, error) {
	if rv == nil {
		return RendezVous{}, &NotFoundError{}
	}
	if patch.ID != nil && *patch.ID != rv.ID {
		return RendezVous{}, &ImmutableFieldError{Field: "id"}
	}
	if patch.Organizer != nil && strings.TrimSpace(*patch.Organizer) != rv.Organizer {
		return RendezVous{}, &ImmutableFieldError{Field: "organizer"}
	}

	now := e.cfg.Now()
	if err := e.ensureEditable(*rv, now); err != nil {
		return RendezVous{}, err
	}

	next := rv.Clone()
	vErr := &ValidationError{}

	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
		if next.Title == "" {
			vErr.Add("title", "title is required")
		}
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Venue != nil {
		next.Venue = strings.TrimSpace(*patch.Venue)
	}
	if patch.Duration != nil {
		validateDuration(*patch.Duration, vErr)
		next.Duration = *patch.Duration
	}
	if patch.CandidateDates != nil {
		next.CandidateDates = validateDates(*patch.CandidateDates, rv.CandidateDates, now, e.cfg.AllowPastDates || patch.AllowPastDates, vErr)
	}
	if patch.Attendees != nil {
		next.Attendees = validateAttendees(*patch.Attendees, vErr)
	}

	if err := vErr.Err(); err != nil {
		return RendezVous{}, err
	}

	if next.Status == StatusScheduled && next.ConfirmedDate != nil && !next.HasDate(*next.ConfirmedDate) {
		return RendezVous{}, &InvalidDateError{Date: *next.ConfirmedDate}
	}

	next.Ledger.reconcile(next.Attendees, next.CandidateDates)
	next.UpdatedAt = now
	*rv = next

	e.emit(EventUpdated, next, nil)
	return next.Clone(), nil
}

// CastVote records attendee's vote for date, overwriting any prior vote.
func (e *Engine) CastVote(rv *RendezVous, attendee string, date time.Time, vote Vote) (VoteLedger, error) {
	if rv == nil {
		return VoteLedger{}, &NotFoundError{}
	}
	if rv.Status == StatusCancelled {
		return VoteLedger{}, &NotEditableError{Status: rv.Status, Reason: "votes are closed on a cancelled rendez-vous"}
	}
	if !vote.Valid() {
		vErr := &ValidationError{}
		vErr.Add("vote", fmt.Sprintf("vote must be one of %s, %s or %s", VoteAvailable, VoteUnavailable, VoteUnspecified))
		return VoteLedger{}, vErr
	}
	if !rv.IsAttendee(attendee) {
		return VoteLedger{}, &NotEligibleError{Attendee: attendee, Date: date, Reason: fmt.Sprintf("%q is not an attendee", attendee)}
	}
	date = normalizeDate(date)
	if !rv.HasDate(date) {
		return VoteLedger{}, &NotEligibleError{Attendee: attendee, Date: date, Reason: fmt.Sprintf("%s is not a candidate date", date.Format(time.RFC3339))}
	}

	rv.Ledger.set(attendee, date, vote)
	rv.UpdatedAt = e.cfg.Now()
	return rv.Ledger.Clone(), nil
}

// Confirm fixes the meeting at date. A scheduled rendez-vous is only moved
// when reschedule is set.
func (e *Engine) Confirm(rv *RendezVous, date time.Time, reschedule bool) (RendezVous, error) {
	if rv == nil {
		return RendezVous{}, &NotFoundError{}
	}
	if rv.Status == StatusCancelled {
		return RendezVous{}, &NotEditableError{Status: rv.Status, Reason: "a cancelled rendez-vous cannot be confirmed"}
	}
	date = normalizeDate(date)
	if !rv.HasDate(date) {
		return RendezVous{}, &InvalidDateError{Date: date}
	}
	now := e.cfg.Now()
	if rv.Status == StatusScheduled && rv.ConfirmedDate != nil {
		if !reschedule {
			return RendezVous{}, &AlreadyScheduledError{Date: *rv.ConfirmedDate}
		}
		if rv.Started(now) {
			return RendezVous{}, &NotEditableError{Status: rv.Status, Reason: "the rendez-vous already started"}
		}
	}

	rv.Status = StatusScheduled
	rv.ConfirmedDate = &date
	rv.UpdatedAt = now

	e.emit(EventConfirmed, *rv, &date)
	return rv.Clone(), nil
}

// Cancel marks rv cancelled. The ledger is kept. Cancelling twice is a no-op.
func (e *Engine) Cancel(rv *RendezVous) (RendezVous, error) {
	if rv == nil {
		return RendezVous{}, &NotFoundError{}
	}
	if rv.Status == StatusCancelled {
		return rv.Clone(), nil
	}
	rv.Status = StatusCancelled
	rv.UpdatedAt = e.cfg.Now()

	e.emit(EventCancelled, *rv, nil)
	return rv.Clone(), nil
}

func (e *Engine) ensureEditable(rv RendezVous, now time.Time) error {
	switch {
	case rv.Status == StatusCancelled:
		return &NotEditableError{Status: rv.Status, Reason: "the rendez-vous is cancelled"}
	case rv.Started(now):
		return &NotEditableError{Status: rv.Status, Reason: "the rendez-vous already started"}
	}
	return nil
}

func (e *Engine) emit(kind EventKind, rv RendezVous, date *time.Time) {
	if len(e.observers) == 0 {
		return
	}
	event := Event{
		Kind:         kind,
		RendezVousID: rv.ID,
		Snapshot:     rv.Clone(),
		OccurredAt:   e.cfg.Now(),
	}
	if date != nil {
		d := *date
		event.Date = &d
	}
	for _, o := range e.observers {
		if o != nil {
			o.Observe(event)
		}
	}
}

func validateDuration(minutes int, vErr *ValidationError) {
	if minutes <= 0 {
		vErr.Add("duration", "duration must be positive")
	}
}

// validateDates normalizes dates, keeping insertion order. Dates already in
// previous skip the future check so an edit does not trip over slots that
// were valid when proposed.
func validateDates(dates, previous []time.Time, now time.Time, allowPast bool, vErr *ValidationError) []time.Time {
	if len(dates) == 0 {
		vErr.Add("candidate_dates", "at least one candidate date is required")
		return nil
	}
	out := make([]time.Time, 0, len(dates))
	for _, raw := range dates {
		if raw.IsZero() {
			vErr.Add("candidate_dates", "candidate date is empty")
			continue
		}
		date := normalizeDate(raw)
		if indexOfDate(out, date) >= 0 {
			vErr.Add("candidate_dates", fmt.Sprintf("duplicate candidate date %s", date.Format(time.RFC3339)))
			continue
		}
		if !allowPast && !date.After(now) && indexOfDate(previous, date) < 0 {
			vErr.Add("candidate_dates", fmt.Sprintf("candidate date %s is in the past", date.Format(time.RFC3339)))
		}
		out = append(out, date)
	}
	return out
}

func validateAttendees(attendees []string, vErr *ValidationError) []string {
	seen := make(map[string]struct{}, len(attendees))
	out := make([]string, 0, len(attendees))
	for _, a := range attendees {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		vErr.Add("attendees", "at least one attendee is required")
	}
	return out
}
