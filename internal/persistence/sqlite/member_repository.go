package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/rendez-vous/internal/persistence"
)

const memberColumns = `id, email, display_name, password_hash, is_admin, created_at, updated_at`

// MemberRepository implements persistence.MemberRepository.
type MemberRepository struct {
	repository
}

// NewMemberRepository returns a member repository on pool.
func NewMemberRepository(pool *ConnectionPool, retry *RetryHelper) *MemberRepository {
	return &MemberRepository{repository: newRepository(pool, retry)}
}

// CreateMember inserts member. Emails are stored lower-cased.
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (`+memberColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			member.ID,
			normalizeEmail(member.Email),
			member.DisplayName,
			member.PasswordHash,
			member.IsAdmin,
			formatTime(member.CreatedAt),
			formatTime(member.UpdatedAt),
		)
		return err
	})
}

// GetMember returns the member with id.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	row := r.db().QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	return r.scanMember(row)
}

// GetMemberByEmail looks a member up case-insensitively.
func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	email = normalizeEmail(email)
	if email == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	row := r.db().QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE email = ?`, email)
	return r.scanMember(row)
}

// SearchMembers matches terms against display names and emails, ordered by
// display name.
func (r *MemberRepository) SearchMembers(ctx context.Context, search persistence.MemberSearch) ([]persistence.Member, int, error) {
	var (
		where []string
		args  []any
	)
	if terms := strings.TrimSpace(search.Terms); terms != "" {
		pattern := "%" + escapeLike(strings.ToLower(terms)) + "%"
		where = append(where, `(LOWER(display_name) LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(search.Exclude) > 0 {
		where = append(where, `id NOT IN (`+placeholders(len(search.Exclude))+`)`)
		for _, id := range search.Exclude {
			args = append(args, id)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db().QueryRowContext(ctx, `SELECT COUNT(*) FROM members`+clause, args...).Scan(&total); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	query := `SELECT ` + memberColumns + ` FROM members` + clause + ` ORDER BY display_name ASC, id ASC`
	pageArgs := append([]any{}, args...)
	if search.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		pageArgs = append(pageArgs, search.Limit, max(search.Offset, 0))
	}

	rows, err := r.db().QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := r.scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	return members, total, nil
}

// MissingMemberIDs returns the ids without a member row, in input order.
func (r *MemberRepository) MissingMemberIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db().QueryContext(ctx, `SELECT id FROM members WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MemberRepository) scanMember(row rowScanner) (persistence.Member, error) {
	var (
		member             persistence.Member
		createdAt, updated string
	)
	err := row.Scan(&member.ID, &member.Email, &member.DisplayName, &member.PasswordHash, &member.IsAdmin, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Member{}, persistence.ErrNotFound
		}
		return persistence.Member{}, r.mapper.MapError(err)
	}
	if member.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Member{}, fmt.Errorf("member %s: %w", member.ID, err)
	}
	if member.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Member{}, fmt.Errorf("member %s: %w", member.ID, err)
	}
	return member, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
