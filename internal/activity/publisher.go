// Package activity records the activity stream entries and member
// notifications raised by rendez-vous changes.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

// Activity types written to the stream.
const (
	TypeNew       = "new_rendez_vous"
	TypeUpdated   = "updated_rendez_vous"
	TypeCancelled = "cancelled_rendez_vous"
)

const excerptLength = 225

// Publisher turns engine events into activity and notification records.
type Publisher struct {
	activities    persistence.ActivityRepository
	notifications persistence.NotificationRepository
	policy        scheduling.SchedulingPolicy
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Publisher) {
		if gen != nil {
			p.idGenerator = gen
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher constructs a Publisher. A nil policy uses MemberPolicy.
func NewPublisher(activities persistence.ActivityRepository, notifications persistence.NotificationRepository, policy scheduling.SchedulingPolicy, opts ...Option) *Publisher {
	if policy == nil {
		policy = scheduling.MemberPolicy{}
	}
	p := &Publisher{
		activities:    activities,
		notifications: notifications,
		policy:        policy,
		idGenerator:   uuid.NewString,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish records event on behalf of actorID. Drafts never reach the
// activity stream; their attendees are still notified so they can vote.
func (p *Publisher) Publish(ctx context.Context, actorID string, event scheduling.Event) error {
	if p == nil || p.activities == nil || p.notifications == nil {
		return fmt.Errorf("activity publisher is not configured")
	}
	rv := event.Snapshot
	logger := p.logger.With("rendez_vous_id", event.RendezVousID, "event", string(event.Kind))

	switch event.Kind {
	case scheduling.EventCreated:
		return p.notify(ctx, actorID, event)

	case scheduling.EventUpdated:
		if rv.Status != scheduling.StatusDraft {
			if err := p.record(ctx, actorID, TypeUpdated, rv); err != nil {
				return err
			}
		}
		return p.notify(ctx, actorID, event)

	case scheduling.EventConfirmed:
		if err := p.record(ctx, actorID, TypeNew, rv); err != nil {
			return err
		}
		return p.notify(ctx, actorID, event)

	case scheduling.EventCancelled:
		existing, err := p.activities.ListActivities(ctx, event.RendezVousID)
		if err != nil {
			return fmt.Errorf("list activities: %w", err)
		}
		if len(existing) > 0 {
			if err := p.record(ctx, actorID, TypeCancelled, rv); err != nil {
				return err
			}
		}
		return p.notify(ctx, actorID, event)

	case scheduling.EventDeleted:
		var errs []error
		if rv.Status != scheduling.StatusDraft {
			n, err := p.activities.DeleteActivitiesForRendezVous(ctx, event.RendezVousID)
			if err != nil {
				errs = append(errs, fmt.Errorf("delete activities: %w", err))
			}
			logger.DebugContext(ctx, "activities deleted", "count", n)
		}
		if _, err := p.notifications.DeleteNotificationsForRendezVous(ctx, event.RendezVousID); err != nil {
			errs = append(errs, fmt.Errorf("delete notifications: %w", err))
		}
		return errors.Join(errs...)
	}

	logger.WarnContext(ctx, "ignoring unknown event")
	return nil
}

// Activities returns the stream entries of a rendez-vous, oldest first.
func (p *Publisher) Activities(ctx context.Context, rendezVousID string) ([]persistence.Activity, error) {
	return p.activities.ListActivities(ctx, rendezVousID)
}

// Notifications returns the notifications of a member, newest first.
func (p *Publisher) Notifications(ctx context.Context, recipientID string) ([]persistence.Notification, error) {
	return p.notifications.ListNotifications(ctx, recipientID)
}

func (p *Publisher) record(ctx context.Context, actorID, activityType string, rv scheduling.RendezVous) error {
	p.policy.Prepare(ctx, rv)
	args := p.policy.ActivityArgs(rv, scheduling.ActivityArgs{Type: activityType, UserID: actorID})
	entry := persistence.Activity{
		ID:              p.idGenerator(),
		Type:            args.Type,
		Component:       args.Component,
		UserID:          args.UserID,
		ItemID:          args.ItemID,
		SecondaryItemID: args.SecondaryItemID,
		RendezVousID:    rv.ID,
		PrimaryLink:     args.PrimaryLink,
		Title:           rv.Title,
		CreatedAt:       p.now(),
	}
	if activityType == TypeNew {
		entry.Content = excerpt(rv.Description, excerptLength)
	}
	if err := p.activities.CreateActivity(ctx, entry); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

func (p *Publisher) notify(ctx context.Context, actorID string, event scheduling.Event) error {
	now := p.now()
	for _, attendee := range event.Snapshot.Attendees {
		if attendee == actorID {
			continue
		}
		err := p.notifications.CreateNotification(ctx, persistence.Notification{
			ID:           p.idGenerator(),
			RecipientID:  attendee,
			ActorID:      actorID,
			RendezVousID: event.RendezVousID,
			Kind:         string(event.Kind),
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("notify %s: %w", attendee, err)
		}
	}
	return nil
}

// excerpt shortens text to at most limit runes, cutting on a word boundary.
func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + " […]"
}
