package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/rendez-vous/internal/persistence"
)

// GroupRepository implements persistence.GroupRepository.
type GroupRepository struct {
	repository
}

// NewGroupRepository returns a group repository on pool.
func NewGroupRepository(pool *ConnectionPool, retry *RetryHelper) *GroupRepository {
	return &GroupRepository{repository: newRepository(pool, retry)}
}

// CreateGroup inserts group.
func (r *GroupRepository) CreateGroup(ctx context.Context, group persistence.Group) error {
	if group.ID == "" || strings.TrimSpace(group.Slug) == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO member_groups (id, slug, name, rendez_vous_enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			group.ID, group.Slug, group.Name, group.RendezVousEnabled,
			formatTime(group.CreatedAt), formatTime(group.UpdatedAt),
		)
		return err
	})
}

// GetGroup returns the group with id.
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	var (
		group              persistence.Group
		createdAt, updated string
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT id, slug, name, rendez_vous_enabled, created_at, updated_at
		FROM member_groups WHERE id = ?`, id,
	).Scan(&group.ID, &group.Slug, &group.Name, &group.RendezVousEnabled, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Group{}, persistence.ErrNotFound
		}
		return persistence.Group{}, r.mapper.MapError(err)
	}
	if group.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Group{}, fmt.Errorf("group %s: %w", id, err)
	}
	if group.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Group{}, fmt.Errorf("group %s: %w", id, err)
	}
	return group, nil
}

// UpdateGroup stores name, slug and the extension flag.
func (r *GroupRepository) UpdateGroup(ctx context.Context, group persistence.Group) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE member_groups SET slug = ?, name = ?, rendez_vous_enabled = ?, updated_at = ?
			WHERE id = ?`,
			group.Slug, group.Name, group.RendezVousEnabled, formatTime(group.UpdatedAt), group.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// AddMembership inserts or refreshes a membership.
func (r *GroupRepository) AddMembership(ctx context.Context, membership persistence.GroupMembership) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO group_memberships (group_id, member_id, is_admin, joined_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (group_id, member_id) DO UPDATE SET is_admin = excluded.is_admin`,
			membership.GroupID, membership.MemberID, membership.IsAdmin, formatTime(membership.JoinedAt),
		)
		return err
	})
}

// GetMembership returns ErrNotFound when memberID does not belong to groupID.
func (r *GroupRepository) GetMembership(ctx context.Context, groupID, memberID string) (persistence.GroupMembership, error) {
	var (
		membership persistence.GroupMembership
		joinedAt   string
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT group_id, member_id, is_admin, joined_at
		FROM group_memberships WHERE group_id = ? AND member_id = ?`, groupID, memberID,
	).Scan(&membership.GroupID, &membership.MemberID, &membership.IsAdmin, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.GroupMembership{}, persistence.ErrNotFound
		}
		return persistence.GroupMembership{}, r.mapper.MapError(err)
	}
	if membership.JoinedAt, err = parseTime(joinedAt); err != nil {
		return persistence.GroupMembership{}, err
	}
	return membership, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
