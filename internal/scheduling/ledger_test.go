package scheduling

import (
	"testing"
	"time"
)

func TestVoteLedger_Restore(t *testing.T) {
	t.Parallel()

	attendees := []string{"bob", "carol"}
	dates := []time.Time{slot(24), slot(48)}
	cells := []Cell{
		{Attendee: "bob", Date: slot(24), Vote: VoteAvailable},
		{Attendee: "carol", Date: slot(48).In(time.FixedZone("CET", 3600)), Vote: VoteUnavailable},
		{Attendee: "mallory", Date: slot(24), Vote: VoteAvailable},
		{Attendee: "bob", Date: slot(96), Vote: VoteAvailable},
		{Attendee: "carol", Date: slot(24), Vote: Vote("bogus")},
	}

	l := Restore(attendees, dates, cells)
	if l.Len() != 4 {
		t.Fatalf("expected 4 cells, got %d", l.Len())
	}
	if l.Get("bob", slot(24)) != VoteAvailable || l.Get("carol", slot(48)) != VoteUnavailable {
		t.Fatalf("stored votes not restored: %+v", l.Cells())
	}
	if l.Has("mallory", slot(24)) || l.Has("bob", slot(96)) {
		t.Fatalf("stale cells must be dropped")
	}
	if l.Get("carol", slot(24)) != VoteUnspecified {
		t.Fatalf("invalid vote must read as unspecified")
	}
}

func TestVoteLedger_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	l := NewVoteLedger([]string{"bob"}, []time.Time{slot(24)})
	c := l.Clone()
	c.set("bob", slot(24), VoteAvailable)
	if l.Get("bob", slot(24)) != VoteUnspecified {
		t.Fatalf("clone must not alias the original")
	}
}

func TestVoteLedger_CellsOrdered(t *testing.T) {
	t.Parallel()

	l := NewVoteLedger([]string{"carol", "bob"}, []time.Time{slot(48), slot(24)})
	cells := l.Cells()
	if len(cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(cells))
	}
	if cells[0].Attendee != "bob" || !cells[0].Date.Equal(slot(24)) || cells[3].Attendee != "carol" || !cells[3].Date.Equal(slot(48)) {
		t.Fatalf("cells not ordered by attendee then date: %+v", cells)
	}
}

func TestVoteLedger_ZeroValue(t *testing.T) {
	t.Parallel()

	var l VoteLedger
	if l.Get("bob", slot(24)) != VoteUnspecified || l.Len() != 0 {
		t.Fatalf("zero ledger must be empty")
	}
	l.set("bob", slot(24), VoteAvailable)
	if l.Get("bob", slot(24)) != VoteAvailable {
		t.Fatalf("zero ledger must accept writes")
	}
}
