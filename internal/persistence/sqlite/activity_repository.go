package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/rendez-vous/internal/persistence"
)

// ActivityRepository implements persistence.ActivityRepository.
type ActivityRepository struct {
	repository
}

// NewActivityRepository returns an activity repository on pool.
func NewActivityRepository(pool *ConnectionPool, retry *RetryHelper) *ActivityRepository {
	return &ActivityRepository{repository: newRepository(pool, retry)}
}

// CreateActivity inserts activity.
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.RendezVousID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, type, component, user_id, item_id, secondary_item_id,
				rendez_vous_id, primary_link, title, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			activity.ID,
			activity.Type,
			activity.Component,
			activity.UserID,
			activity.ItemID,
			activity.SecondaryItemID,
			activity.RendezVousID,
			activity.PrimaryLink,
			activity.Title,
			activity.Content,
			formatTime(activity.CreatedAt),
		)
		return err
	})
}

// ListActivities returns the entries recorded for a rendez-vous, oldest first.
func (r *ActivityRepository) ListActivities(ctx context.Context, rendezVousID string) ([]persistence.Activity, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, type, component, user_id, item_id, secondary_item_id,
			rendez_vous_id, primary_link, title, content, created_at
		FROM activities
		WHERE rendez_vous_id = ?
		ORDER BY created_at ASC, id ASC`, rendezVousID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var activities []persistence.Activity
	for rows.Next() {
		var (
			activity  persistence.Activity
			createdAt string
		)
		err := rows.Scan(
			&activity.ID,
			&activity.Type,
			&activity.Component,
			&activity.UserID,
			&activity.ItemID,
			&activity.SecondaryItemID,
			&activity.RendezVousID,
			&activity.PrimaryLink,
			&activity.Title,
			&activity.Content,
			&createdAt,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		if activity.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("activity %s: %w", activity.ID, err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return activities, nil
}

// DeleteActivitiesForRendezVous removes every entry for a rendez-vous and
// reports how many were removed.
func (r *ActivityRepository) DeleteActivitiesForRendezVous(ctx context.Context, rendezVousID string) (int, error) {
	return deleteForRendezVous(ctx, r.repository, "activities", rendezVousID)
}

// NotificationRepository implements persistence.NotificationRepository.
type NotificationRepository struct {
	repository
}

// NewNotificationRepository returns a notification repository on pool.
func NewNotificationRepository(pool *ConnectionPool, retry *RetryHelper) *NotificationRepository {
	return &NotificationRepository{repository: newRepository(pool, retry)}
}

// CreateNotification inserts notification.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification persistence.Notification) error {
	if notification.ID == "" || notification.RecipientID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, recipient_id, actor_id, rendez_vous_id, kind, created_at, read_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			notification.ID,
			notification.RecipientID,
			notification.ActorID,
			notification.RendezVousID,
			notification.Kind,
			formatTime(notification.CreatedAt),
			formatNullableTime(notification.ReadAt),
		)
		return err
	})
}

// ListNotifications returns a member's notifications, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, recipientID string) ([]persistence.Notification, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, recipient_id, actor_id, rendez_vous_id, kind, created_at, read_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id ASC`, recipientID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		var (
			notification persistence.Notification
			createdAt    string
			readAt       sql.NullString
		)
		err := rows.Scan(
			&notification.ID,
			&notification.RecipientID,
			&notification.ActorID,
			&notification.RendezVousID,
			&notification.Kind,
			&createdAt,
			&readAt,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		if notification.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("notification %s: %w", notification.ID, err)
		}
		if notification.ReadAt, err = parseNullableTime(readAt); err != nil {
			return nil, fmt.Errorf("notification %s: %w", notification.ID, err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return notifications, nil
}

// DeleteNotificationsForRendezVous removes every notification about a
// rendez-vous and reports how many were removed.
func (r *NotificationRepository) DeleteNotificationsForRendezVous(ctx context.Context, rendezVousID string) (int, error) {
	return deleteForRendezVous(ctx, r.repository, "notifications", rendezVousID)
}

func deleteForRendezVous(ctx context.Context, r repository, table, rendezVousID string) (int, error) {
	var removed int64
	err := r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE rendez_vous_id = ?`, rendezVousID)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}
