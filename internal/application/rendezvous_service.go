package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

// overlapLookback bounds how long before the first candidate date a busy
// meeting may start and still be checked for overlaps.
const overlapLookback = 24 * time.Hour

// MemberDirectory exposes member lookups needed to validate attendees.
type MemberDirectory interface {
	MissingMemberIDs(ctx context.Context, ids []string) ([]string, error)
}

// EventPublisher forwards engine events once the record they describe is
// stored. actorID is the member whose request raised the event.
type EventPublisher interface {
	Publish(ctx context.Context, actorID string, event scheduling.Event) error
}

// RendezVousServiceDeps wires a RendezVousService.
type RendezVousServiceDeps struct {
	RendezVous persistence.RendezVousRepository
	Members    MemberDirectory
	Policy     scheduling.SchedulingPolicy
	Publisher  EventPublisher
	Engine     scheduling.Config
	// Location interprets candidate days; UTC when nil.
	Location *time.Location
	// MaxRetries bounds how often a commutative change is reapplied after a
	// version conflict.
	MaxRetries int
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

// RendezVousService orchestrates the engine, storage, policy and event
// publication for rendez-vous operations.
type RendezVousService struct {
	store      persistence.RendezVousRepository
	members    MemberDirectory
	policy     scheduling.SchedulingPolicy
	publisher  EventPublisher
	engine     *scheduling.Engine
	location   *time.Location
	maxRetries int
	cache      *resolutionCache
	logger     *slog.Logger
}

// NewRendezVousService wires dependencies for rendez-vous operations.
func NewRendezVousService(deps RendezVousServiceDeps) *RendezVousService {
	policy := deps.Policy
	if policy == nil {
		policy = scheduling.MemberPolicy{}
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	engine := scheduling.NewEngine(deps.Engine)
	return &RendezVousService{
		store:      deps.RendezVous,
		members:    deps.Members,
		policy:     policy,
		publisher:  deps.Publisher,
		engine:     engine,
		location:   location,
		maxRetries: max(deps.MaxRetries, 0),
		cache:      newResolutionCache(deps.CacheTTL, 0, engine.Config().Now),
		logger:     defaultLogger(deps.Logger),
	}
}

func (s *RendezVousService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RendezVousService", operation, attrs...)
}

// Policy returns the policy used for links and authorization.
func (s *RendezVousService) Policy() scheduling.SchedulingPolicy {
	return s.policy
}

// Create validates the proposal and stores it as a draft.
func (s *RendezVousService) Create(ctx context.Context, params CreateRendezVousParams) (rv scheduling.RendezVous, err error) {
	if s == nil || s.store == nil {
		return scheduling.RendezVous{}, fmt.Errorf("RendezVousService is not configured")
	}
	principal := params.Principal
	input := params.Input

	logger := s.loggerWith(ctx, "Create", "principal_id", principal.UserID, "group_id", input.GroupID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create rendez-vous", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rendez-vous created", "rendez_vous_id", rv.ID)
	}()

	if principal.UserID == "" {
		return scheduling.RendezVous{}, ErrUnauthorized
	}
	organizer := strings.TrimSpace(input.Organizer)
	if organizer == "" {
		organizer = principal.UserID
	}
	if organizer != principal.UserID && !principal.IsAdmin {
		return scheduling.RendezVous{}, ErrUnauthorized
	}

	allowed, err := s.policy.CanCreate(ctx, organizer, input.GroupID)
	if err != nil {
		return scheduling.RendezVous{}, err
	}
	if !allowed {
		return scheduling.RendezVous{}, ErrUnauthorized
	}

	vErr := &scheduling.ValidationError{Violations: slices.Clone(input.Rejected)}
	dates := slices.Clone(input.Dates)
	dates = append(dates, expandDays(input.Days, s.location, vErr)...)

	buffer := &scheduling.EventBuffer{}
	created, engineErr := s.engine.With(buffer).Create(scheduling.CreateParams{
		Organizer:      organizer,
		GroupID:        input.GroupID,
		Title:          input.Title,
		Description:    input.Description,
		Venue:          input.Venue,
		Duration:       input.Duration,
		CandidateDates: dates,
		Attendees:      input.Attendees,
		AllowPastDates: input.AllowPastDates,
	})
	if err := mergeValidation(vErr, engineErr); err != nil {
		return scheduling.RendezVous{}, err
	}
	if err := s.ensureMembersExist(ctx, input.Attendees, vErr); err != nil {
		return scheduling.RendezVous{}, err
	}
	if err := vErr.Err(); err != nil {
		return scheduling.RendezVous{}, err
	}

	created.Version = 1
	if err := s.store.CreateRendezVous(ctx, toStored(created)); err != nil {
		return scheduling.RendezVous{}, mapRepoError(err)
	}
	s.publish(ctx, principal.UserID, buffer.Drain())
	return created, nil
}

// Get returns a rendez-vous visible to the principal.
func (s *RendezVousService) Get(ctx context.Context, principal Principal, id string) (scheduling.RendezVous, error) {
	rv, err := s.load(ctx, id)
	if err != nil {
		return scheduling.RendezVous{}, err
	}
	if !canView(principal, rv) {
		return scheduling.RendezVous{}, ErrUnauthorized
	}
	return rv, nil
}

// List returns the rendez-vous matching params that the principal may see.
func (s *RendezVousService) List(ctx context.Context, params ListRendezVousParams) ([]scheduling.RendezVous, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("RendezVousService is not configured")
	}
	stored, err := s.store.ListRendezVous(ctx, persistence.RendezVousFilter{
		OrganizerID: params.OrganizerID,
		AttendeeID:  params.AttendeeID,
		GroupID:     params.GroupID,
		Statuses:    statusStrings(params.Statuses),
		From:        params.From,
		To:          params.To,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]scheduling.RendezVous, 0, len(stored))
	for _, record := range stored {
		rv := fromStored(record)
		if canView(params.Principal, rv) {
			out = append(out, rv)
		}
	}
	return out, nil
}

// Update applies an organizer edit. A stale Version fails with ErrConflict.
func (s *RendezVousService) Update(ctx context.Context, params UpdateRendezVousParams) (rv scheduling.RendezVous, err error) {
	logger := s.loggerWith(ctx, "Update", "principal_id", params.Principal.UserID, "rendez_vous_id", params.RendezVousID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update rendez-vous", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rendez-vous updated", "version", rv.Version)
	}()

	input := params.Input
	return s.mutate(ctx, params.Principal, params.RendezVousID, 0, func(current *scheduling.RendezVous, engine *scheduling.Engine) error {
		if !canManage(params.Principal, *current) {
			return ErrUnauthorized
		}
		if params.Version > 0 && params.Version != current.Version {
			return ErrConflict
		}

		vErr := &scheduling.ValidationError{Violations: slices.Clone(input.Rejected)}
		patch := scheduling.Patch{
			Organizer:      input.Organizer,
			Title:          input.Title,
			Description:    input.Description,
			Venue:          input.Venue,
			Duration:       input.Duration,
			Attendees:      input.Attendees,
			AllowPastDates: input.AllowPastDates,
		}
		if input.Dates != nil || input.Days != nil {
			var dates []time.Time
			if input.Dates != nil {
				dates = slices.Clone(*input.Dates)
			}
			if input.Days != nil {
				dates = append(dates, expandDays(*input.Days, s.location, vErr)...)
			}
			patch.CandidateDates = &dates
		}

		_, engineErr := engine.Update(current, patch)
		if err := mergeValidation(vErr, engineErr); err != nil {
			return err
		}
		if input.Attendees != nil {
			if err := s.ensureMembersExist(ctx, *input.Attendees, vErr); err != nil {
				return err
			}
		}
		return vErr.Err()
	})
}

// CastVotes records the principal's votes. The whole submission is applied
// or rejected together and is reapplied on a fresh copy after a concurrent
// change.
func (s *RendezVousService) CastVotes(ctx context.Context, params CastVotesParams) (rv scheduling.RendezVous, err error) {
	logger := s.loggerWith(ctx, "CastVotes", "principal_id", params.Principal.UserID, "rendez_vous_id", params.RendezVousID, "votes", len(params.Votes))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record votes", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "votes recorded", "version", rv.Version)
	}()

	if len(params.Votes) == 0 {
		vErr := &scheduling.ValidationError{Violations: slices.Clone(params.Rejected)}
		if !vErr.HasErrors() {
			vErr.Add("votes", "at least one vote is required")
		}
		return scheduling.RendezVous{}, vErr
	}
	return s.mutate(ctx, params.Principal, params.RendezVousID, s.maxRetries, func(current *scheduling.RendezVous, engine *scheduling.Engine) error {
		vErr := &scheduling.ValidationError{Violations: slices.Clone(params.Rejected)}
		for _, v := range params.Votes {
			if _, err := engine.CastVote(current, params.Principal.UserID, v.Date, v.Vote); err != nil {
				if err := mergeValidation(vErr, err); err != nil {
					return err
				}
			}
		}
		return vErr.Err()
	})
}

// Resolve returns the resolution of the current version together with the
// overlaps of its candidate slots with the attendees' confirmed meetings.
func (s *RendezVousService) Resolve(ctx context.Context, principal Principal, id string) (ResolutionReport, error) {
	rv, err := s.Get(ctx, principal, id)
	if err != nil {
		return ResolutionReport{}, err
	}
	if report, ok := s.cache.Get(rv.ID, rv.Version); ok {
		return report, nil
	}

	report := ResolutionReport{
		RendezVousID: rv.ID,
		Version:      rv.Version,
		Resolution:   s.engine.Resolve(rv),
	}
	if rv.Status != scheduling.StatusCancelled && len(rv.CandidateDates) > 0 {
		overlaps, err := s.detectOverlaps(ctx, rv)
		if err != nil {
			return ResolutionReport{}, err
		}
		report.Overlaps = overlaps
	}
	s.cache.Store(report)
	return report, nil
}

// Confirm schedules the rendez-vous at params.Date, or at the resolved date
// when no date is given.
func (s *RendezVousService) Confirm(ctx context.Context, params ConfirmParams) (rv scheduling.RendezVous, err error) {
	logger := s.loggerWith(ctx, "Confirm", "principal_id", params.Principal.UserID, "rendez_vous_id", params.RendezVousID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to confirm rendez-vous", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rendez-vous confirmed", "date", rv.ConfirmedDate)
	}()

	return s.mutate(ctx, params.Principal, params.RendezVousID, s.maxRetries, func(current *scheduling.RendezVous, engine *scheduling.Engine) error {
		if !canManage(params.Principal, *current) {
			return ErrUnauthorized
		}
		var date time.Time
		if params.Date != nil {
			date = *params.Date
		} else {
			resolution := engine.Resolve(*current)
			if !resolution.Decided() {
				return &scheduling.InvalidDateError{}
			}
			date = resolution.Date
		}
		_, err := engine.Confirm(current, date, params.Reschedule)
		return err
	})
}

// Cancel calls the rendez-vous off. Cancelling twice is a no-op.
func (s *RendezVousService) Cancel(ctx context.Context, principal Principal, id string) (rv scheduling.RendezVous, err error) {
	logger := s.loggerWith(ctx, "Cancel", "principal_id", principal.UserID, "rendez_vous_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel rendez-vous", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rendez-vous cancelled")
	}()

	var unchanged bool
	rv, err = s.mutate(ctx, principal, id, s.maxRetries, func(current *scheduling.RendezVous, engine *scheduling.Engine) error {
		if !canManage(principal, *current) {
			return ErrUnauthorized
		}
		unchanged = current.Status == scheduling.StatusCancelled
		if unchanged {
			return errUnchanged
		}
		_, err := engine.Cancel(current)
		return err
	})
	if unchanged && errors.Is(err, errUnchanged) {
		return s.load(ctx, id)
	}
	return rv, err
}

// Delete removes the rendez-vous and everything published about it.
func (s *RendezVousService) Delete(ctx context.Context, principal Principal, id string) (err error) {
	logger := s.loggerWith(ctx, "Delete", "principal_id", principal.UserID, "rendez_vous_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete rendez-vous", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rendez-vous deleted")
	}()

	rv, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(principal, rv) {
		return ErrUnauthorized
	}
	if err := s.store.DeleteRendezVous(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.cache.Forget(id)
	s.publish(ctx, principal.UserID, []scheduling.Event{{
		Kind:         scheduling.EventDeleted,
		RendezVousID: id,
		Snapshot:     rv,
		OccurredAt:   s.engine.Config().Now(),
	}})
	return nil
}

var errUnchanged = errors.New("application: nothing to change")

// mutate loads id, lets apply change it through an engine that buffers its
// events and stores the result against the loaded version. On a version
// conflict the change is reapplied to a fresh copy up to retries times.
func (s *RendezVousService) mutate(ctx context.Context, principal Principal, id string, retries int, apply func(*scheduling.RendezVous, *scheduling.Engine) error) (scheduling.RendezVous, error) {
	if s == nil || s.store == nil {
		return scheduling.RendezVous{}, fmt.Errorf("RendezVousService is not configured")
	}
	if principal.UserID == "" {
		return scheduling.RendezVous{}, ErrUnauthorized
	}

	for attempt := 0; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return scheduling.RendezVous{}, err
		}
		version := current.Version

		buffer := &scheduling.EventBuffer{}
		if err := apply(&current, s.engine.With(buffer)); err != nil {
			return scheduling.RendezVous{}, err
		}

		stored, err := s.store.UpdateRendezVous(ctx, toStored(current), version)
		if err == nil {
			current.Version = stored.Version
			s.publish(ctx, principal.UserID, buffer.Drain())
			return current, nil
		}
		if !errors.Is(err, persistence.ErrVersionConflict) || attempt >= retries {
			return scheduling.RendezVous{}, mapRepoError(err)
		}
		s.loggerWith(ctx, "mutate", "rendez_vous_id", id, "attempt", attempt+1).
			DebugContext(ctx, "version conflict, reapplying change")
	}
}

func (s *RendezVousService) load(ctx context.Context, id string) (scheduling.RendezVous, error) {
	if s == nil || s.store == nil {
		return scheduling.RendezVous{}, fmt.Errorf("RendezVousService is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return scheduling.RendezVous{}, ErrNotFound
	}
	stored, err := s.store.GetRendezVous(ctx, id)
	if err != nil {
		return scheduling.RendezVous{}, mapRepoError(err)
	}
	return fromStored(stored), nil
}

func (s *RendezVousService) detectOverlaps(ctx context.Context, rv scheduling.RendezVous) ([]scheduling.Overlap, error) {
	first, last := rv.CandidateDates[0], rv.CandidateDates[0]
	for _, d := range rv.CandidateDates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	from := first.Add(-overlapLookback)
	to := last.Add(rv.SlotLength())

	stored, err := s.store.ListRendezVous(ctx, persistence.RendezVousFilter{
		Statuses: []string{string(scheduling.StatusScheduled)},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	records := make([]scheduling.RendezVous, 0, len(stored))
	for _, record := range stored {
		records = append(records, fromStored(record))
	}
	return scheduling.DetectOverlaps(rv, scheduling.BusySlots(records)), nil
}

func (s *RendezVousService) ensureMembersExist(ctx context.Context, ids []string, vErr *scheduling.ValidationError) error {
	if s.members == nil {
		return nil
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.members.MissingMemberIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		vErr.Add("attendees", fmt.Sprintf("unknown member ids: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func (s *RendezVousService) publish(ctx context.Context, actorID string, events []scheduling.Event) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(ctx, actorID, event); err != nil {
			s.loggerWith(ctx, "publish", "rendez_vous_id", event.RendezVousID, "event", string(event.Kind)).
				WarnContext(ctx, "failed to publish event", "error", err)
		}
	}
}

// mergeValidation folds a validation error from the engine into vErr and
// returns any other error unchanged.
func mergeValidation(vErr *scheduling.ValidationError, err error) error {
	if err == nil {
		return nil
	}
	var engineErr *scheduling.ValidationError
	if errors.As(err, &engineErr) {
		vErr.Merge(engineErr)
		return nil
	}
	return err
}

func canView(principal Principal, rv scheduling.RendezVous) bool {
	return principal.IsAdmin || principal.UserID == rv.Organizer || rv.IsAttendee(principal.UserID)
}

func canManage(principal Principal, rv scheduling.RendezVous) bool {
	return principal.IsAdmin || (principal.UserID != "" && principal.UserID == rv.Organizer)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
