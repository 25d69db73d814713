package application

import (
	"errors"
	"slices"

	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

func toStored(rv scheduling.RendezVous) persistence.RendezVous {
	stored := persistence.RendezVous{
		ID:             rv.ID,
		OrganizerID:    rv.Organizer,
		Title:          rv.Title,
		Description:    rv.Description,
		Venue:          rv.Venue,
		Duration:       rv.Duration,
		Status:         string(rv.Status),
		CandidateDates: slices.Clone(rv.CandidateDates),
		Attendees:      slices.Clone(rv.Attendees),
		Version:        rv.Version,
		CreatedAt:      rv.CreatedAt,
		UpdatedAt:      rv.UpdatedAt,
	}
	if rv.GroupID != "" {
		groupID := rv.GroupID
		stored.GroupID = &groupID
	}
	if rv.ConfirmedDate != nil {
		date := *rv.ConfirmedDate
		stored.ConfirmedAt = &date
	}
	for _, cell := range rv.Ledger.Cells() {
		if cell.Vote == scheduling.VoteUnspecified {
			continue
		}
		stored.Votes = append(stored.Votes, persistence.VoteCell{
			MemberID: cell.Attendee,
			Date:     cell.Date,
			Vote:     string(cell.Vote),
		})
	}
	return stored
}

func fromStored(stored persistence.RendezVous) scheduling.RendezVous {
	rv := scheduling.RendezVous{
		ID:             stored.ID,
		Organizer:      stored.OrganizerID,
		Title:          stored.Title,
		Description:    stored.Description,
		Venue:          stored.Venue,
		Duration:       stored.Duration,
		CandidateDates: slices.Clone(stored.CandidateDates),
		Attendees:      slices.Clone(stored.Attendees),
		Status:         scheduling.Status(stored.Status),
		Version:        stored.Version,
		CreatedAt:      stored.CreatedAt,
		UpdatedAt:      stored.UpdatedAt,
	}
	if stored.GroupID != nil {
		rv.GroupID = *stored.GroupID
	}
	if stored.ConfirmedAt != nil {
		date := *stored.ConfirmedAt
		rv.ConfirmedDate = &date
	}
	cells := make([]scheduling.Cell, 0, len(stored.Votes))
	for _, v := range stored.Votes {
		cells = append(cells, scheduling.Cell{Attendee: v.MemberID, Date: v.Date, Vote: scheduling.Vote(v.Vote)})
	}
	rv.Ledger = scheduling.Restore(rv.Attendees, rv.CandidateDates, cells)
	return rv
}

func toMember(stored persistence.Member) Member {
	return Member{
		ID:          stored.ID,
		Email:       stored.Email,
		DisplayName: stored.DisplayName,
		IsAdmin:     stored.IsAdmin,
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}
}

func toGroup(stored persistence.Group) Group {
	return Group{
		ID:                stored.ID,
		Slug:              stored.Slug,
		Name:              stored.Name,
		RendezVousEnabled: stored.RendezVousEnabled,
		CreatedAt:         stored.CreatedAt,
		UpdatedAt:         stored.UpdatedAt,
	}
}

func statusStrings(statuses []scheduling.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// mapRepoError translates storage sentinels to application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrVersionConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &scheduling.ValidationError{}
		vErr.Add("attendees", "related members are missing")
		return vErr
	}
	return err
}
