package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/persistence"
)

const rendezVousColumns = `rv.id, rv.organizer_id, rv.group_id, rv.title, rv.description, rv.venue,
	rv.duration_minutes, rv.status, rv.confirmed_at, rv.version, rv.created_at, rv.updated_at`

// RendezVousRepository implements persistence.RendezVousRepository.
type RendezVousRepository struct {
	repository
}

// NewRendezVousRepository returns a rendez-vous repository on pool.
func NewRendezVousRepository(pool *ConnectionPool, retry *RetryHelper) *RendezVousRepository {
	return &RendezVousRepository{repository: newRepository(pool, retry)}
}

// CreateRendezVous inserts rv with its dates, attendees and votes. A zero
// version is stored as 1.
func (r *RendezVousRepository) CreateRendezVous(ctx context.Context, rv persistence.RendezVous) error {
	if rv.ID == "" || rv.OrganizerID == "" {
		return persistence.ErrConstraintViolation
	}
	version := rv.Version
	if version <= 0 {
		version = 1
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rendez_vous (id, organizer_id, group_id, title, description, venue,
				duration_minutes, status, confirmed_at, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rv.ID,
			rv.OrganizerID,
			nullableString(rv.GroupID),
			rv.Title,
			rv.Description,
			rv.Venue,
			rv.Duration,
			rv.Status,
			formatNullableTime(rv.ConfirmedAt),
			version,
			formatTime(rv.CreatedAt),
			formatTime(rv.UpdatedAt),
		)
		if err != nil {
			return err
		}
		return insertChildren(ctx, tx, rv)
	})
}

// GetRendezVous returns the rendez-vous with id.
func (r *RendezVousRepository) GetRendezVous(ctx context.Context, id string) (persistence.RendezVous, error) {
	if id == "" {
		return persistence.RendezVous{}, persistence.ErrNotFound
	}
	row := r.db().QueryRowContext(ctx, `SELECT `+rendezVousColumns+` FROM rendez_vous rv WHERE rv.id = ?`, id)
	rv, err := r.scanRendezVous(row)
	if err != nil {
		return persistence.RendezVous{}, err
	}
	if err := r.loadChildren(ctx, &rv); err != nil {
		return persistence.RendezVous{}, err
	}
	return rv, nil
}

// UpdateRendezVous replaces rv when the stored version is expectedVersion.
func (r *RendezVousRepository) UpdateRendezVous(ctx context.Context, rv persistence.RendezVous, expectedVersion int64) (persistence.RendezVous, error) {
	if rv.ID == "" {
		return persistence.RendezVous{}, persistence.ErrNotFound
	}
	err := r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rendez_vous
			SET group_id = ?, title = ?, description = ?, venue = ?, duration_minutes = ?,
				status = ?, confirmed_at = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			nullableString(rv.GroupID),
			rv.Title,
			rv.Description,
			rv.Venue,
			rv.Duration,
			rv.Status,
			formatNullableTime(rv.ConfirmedAt),
			formatTime(rv.UpdatedAt),
			rv.ID,
			expectedVersion,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM rendez_vous WHERE id = ?`, rv.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			if err != nil {
				return err
			}
			return persistence.ErrVersionConflict
		}

		for _, table := range []string{"rendez_vous_votes", "rendez_vous_attendees", "rendez_vous_dates"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE rendez_vous_id = ?`, rv.ID); err != nil {
				return err
			}
		}
		return insertChildren(ctx, tx, rv)
	})
	if err != nil {
		return persistence.RendezVous{}, err
	}
	rv.Version = expectedVersion + 1
	return rv, nil
}

// ListRendezVous returns the matching records, oldest first.
func (r *RendezVousRepository) ListRendezVous(ctx context.Context, filter persistence.RendezVousFilter) ([]persistence.RendezVous, error) {
	query, args := buildRendezVousQuery(filter)
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var records []persistence.RendezVous
	for rows.Next() {
		rv, err := r.scanRendezVous(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	// Children are loaded after the cursor is closed; in-memory databases
	// hold a single connection.
	for i := range records {
		if err := r.loadChildren(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// DeleteRendezVous removes the record together with its child rows.
func (r *RendezVousRepository) DeleteRendezVous(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM rendez_vous WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func insertChildren(ctx context.Context, tx *sql.Tx, rv persistence.RendezVous) error {
	for i, date := range rv.CandidateDates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rendez_vous_dates (rendez_vous_id, position, starts_at) VALUES (?, ?, ?)`,
			rv.ID, i, formatTime(date)); err != nil {
			return err
		}
	}
	for i, attendee := range rv.Attendees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rendez_vous_attendees (rendez_vous_id, member_id, position) VALUES (?, ?, ?)`,
			rv.ID, attendee, i); err != nil {
			return err
		}
	}
	for _, cell := range rv.Votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rendez_vous_votes (rendez_vous_id, member_id, starts_at, vote) VALUES (?, ?, ?, ?)`,
			rv.ID, cell.MemberID, formatTime(cell.Date), cell.Vote); err != nil {
			return err
		}
	}
	return nil
}

func (r *RendezVousRepository) loadChildren(ctx context.Context, rv *persistence.RendezVous) error {
	dates, err := r.loadDates(ctx, rv.ID)
	if err != nil {
		return err
	}
	attendees, err := r.loadAttendees(ctx, rv.ID)
	if err != nil {
		return err
	}
	votes, err := r.loadVotes(ctx, rv.ID)
	if err != nil {
		return err
	}
	rv.CandidateDates = dates
	rv.Attendees = attendees
	rv.Votes = votes
	return nil
}

func (r *RendezVousRepository) loadDates(ctx context.Context, id string) ([]time.Time, error) {
	rows, err := r.db().QueryContext(ctx,
		`SELECT starts_at FROM rendez_vous_dates WHERE rendez_vous_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, r.mapper.MapError(err)
		}
		date, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("rendez-vous %s: %w", id, err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return dates, nil
}

func (r *RendezVousRepository) loadAttendees(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db().QueryContext(ctx,
		`SELECT member_id FROM rendez_vous_attendees WHERE rendez_vous_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var attendees []string
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, r.mapper.MapError(err)
		}
		attendees = append(attendees, memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return attendees, nil
}

func (r *RendezVousRepository) loadVotes(ctx context.Context, id string) ([]persistence.VoteCell, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT v.member_id, v.starts_at, v.vote
		FROM rendez_vous_votes v
		LEFT JOIN rendez_vous_attendees a ON a.rendez_vous_id = v.rendez_vous_id AND a.member_id = v.member_id
		LEFT JOIN rendez_vous_dates d ON d.rendez_vous_id = v.rendez_vous_id AND d.starts_at = v.starts_at
		WHERE v.rendez_vous_id = ?
		ORDER BY a.position ASC, d.position ASC`, id)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var votes []persistence.VoteCell
	for rows.Next() {
		var (
			cell persistence.VoteCell
			raw  string
		)
		if err := rows.Scan(&cell.MemberID, &raw, &cell.Vote); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if cell.Date, err = parseTime(raw); err != nil {
			return nil, fmt.Errorf("rendez-vous %s: %w", id, err)
		}
		votes = append(votes, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return votes, nil
}

func (r *RendezVousRepository) scanRendezVous(row rowScanner) (persistence.RendezVous, error) {
	var (
		rv                 persistence.RendezVous
		groupID, confirmed sql.NullString
		createdAt, updated string
	)
	err := row.Scan(
		&rv.ID,
		&rv.OrganizerID,
		&groupID,
		&rv.Title,
		&rv.Description,
		&rv.Venue,
		&rv.Duration,
		&rv.Status,
		&confirmed,
		&rv.Version,
		&createdAt,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.RendezVous{}, persistence.ErrNotFound
		}
		return persistence.RendezVous{}, r.mapper.MapError(err)
	}
	rv.GroupID = stringPointer(groupID)
	if rv.ConfirmedAt, err = parseNullableTime(confirmed); err != nil {
		return persistence.RendezVous{}, fmt.Errorf("rendez-vous %s: %w", rv.ID, err)
	}
	if rv.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RendezVous{}, fmt.Errorf("rendez-vous %s: %w", rv.ID, err)
	}
	if rv.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.RendezVous{}, fmt.Errorf("rendez-vous %s: %w", rv.ID, err)
	}
	return rv, nil
}

// buildRendezVousQuery turns filter into a query. The date range applies to
// the confirmed date of scheduled records and to the candidate dates of the
// others; From is inclusive and To exclusive.
func buildRendezVousQuery(filter persistence.RendezVousFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.OrganizerID != "" {
		conditions = append(conditions, "rv.organizer_id = ?")
		args = append(args, filter.OrganizerID)
	}
	if filter.AttendeeID != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM rendez_vous_attendees a WHERE a.rendez_vous_id = rv.id AND a.member_id = ?)`)
		args = append(args, filter.AttendeeID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, "rv.group_id = ?")
		args = append(args, filter.GroupID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "rv.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.From != nil || filter.To != nil {
		confirmed, confirmedArgs := rangeClause("rv.confirmed_at", filter.From, filter.To)
		candidate, candidateArgs := rangeClause("d.starts_at", filter.From, filter.To)
		conditions = append(conditions, `(
			(rv.confirmed_at IS NOT NULL AND `+confirmed+`)
			OR (rv.confirmed_at IS NULL AND EXISTS (
				SELECT 1 FROM rendez_vous_dates d WHERE d.rendez_vous_id = rv.id AND `+candidate+`)))`)
		args = append(args, confirmedArgs...)
		args = append(args, candidateArgs...)
	}

	query := `SELECT ` + rendezVousColumns + ` FROM rendez_vous rv`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rv.created_at ASC, rv.id ASC"
	return query, args
}

func rangeClause(column string, from, to *time.Time) (string, []any) {
	var (
		bounds []string
		args   []any
	)
	if from != nil {
		bounds = append(bounds, column+" >= ?")
		args = append(args, formatTime(*from))
	}
	if to != nil {
		bounds = append(bounds, column+" < ?")
		args = append(args, formatTime(*to))
	}
	return strings.Join(bounds, " AND "), args
}
