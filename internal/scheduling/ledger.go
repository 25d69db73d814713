package scheduling

import (
	"sort"
	"time"
)

// Cell is one (attendee, date) entry of a vote ledger.
type Cell struct {
	Attendee string
	Date     time.Time
	Vote     Vote
}

// VoteLedger maps attendees to their vote for every candidate date.
//
// The zero value is an empty ledger. Dates are keyed by unix seconds so
// values that differ only in location or monotonic reading share a cell.
type VoteLedger struct {
	rows map[string]map[int64]Vote
}

// NewVoteLedger returns a ledger with an unspecified cell for every
// attendee and date pair.
func NewVoteLedger(attendees []string, dates []time.Time) VoteLedger {
	l := VoteLedger{rows: make(map[string]map[int64]Vote, len(attendees))}
	for _, a := range attendees {
		l.addAttendee(a, dates)
	}
	return l
}

// Get returns the vote recorded for attendee on date. Missing cells read as
// unspecified.
func (l VoteLedger) Get(attendee string, date time.Time) Vote {
	row, ok := l.rows[attendee]
	if !ok {
		return VoteUnspecified
	}
	v, ok := row[dateKey(date)]
	if !ok {
		return VoteUnspecified
	}
	return v
}

// Has reports whether the ledger holds a cell for attendee and date.
func (l VoteLedger) Has(attendee string, date time.Time) bool {
	row, ok := l.rows[attendee]
	if !ok {
		return false
	}
	_, ok = row[dateKey(date)]
	return ok
}

// Len returns the number of cells.
func (l VoteLedger) Len() int {
	n := 0
	for _, row := range l.rows {
		n += len(row)
	}
	return n
}

// Attendees returns the ledger row keys in sorted order.
func (l VoteLedger) Attendees() []string {
	out := make([]string, 0, len(l.rows))
	for a := range l.rows {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Cells lists every entry ordered by attendee then date.
func (l VoteLedger) Cells() []Cell {
	cells := make([]Cell, 0, l.Len())
	for _, a := range l.Attendees() {
		keys := make([]int64, 0, len(l.rows[a]))
		for k := range l.rows[a] {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			cells = append(cells, Cell{Attendee: a, Date: time.Unix(k, 0).UTC(), Vote: l.rows[a][k]})
		}
	}
	return cells
}

// Clone returns an independent copy of the ledger.
func (l VoteLedger) Clone() VoteLedger {
	out := VoteLedger{rows: make(map[string]map[int64]Vote, len(l.rows))}
	for a, row := range l.rows {
		copied := make(map[int64]Vote, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out.rows[a] = copied
	}
	return out
}

// Restore rebuilds a ledger from stored cells, keeping only cells that
// belong to the given attendees and dates and filling the rest with
// unspecified.
func Restore(attendees []string, dates []time.Time, cells []Cell) VoteLedger {
	l := NewVoteLedger(attendees, normalizeDates(dates))
	for _, c := range cells {
		if !l.Has(c.Attendee, c.Date) || !c.Vote.Valid() {
			continue
		}
		l.rows[c.Attendee][dateKey(c.Date)] = c.Vote
	}
	return l
}

func (l *VoteLedger) set(attendee string, date time.Time, vote Vote) {
	if l.rows == nil {
		l.rows = make(map[string]map[int64]Vote)
	}
	row, ok := l.rows[attendee]
	if !ok {
		row = make(map[int64]Vote)
		l.rows[attendee] = row
	}
	row[dateKey(date)] = vote
}

func (l *VoteLedger) addAttendee(attendee string, dates []time.Time) {
	if l.rows == nil {
		l.rows = make(map[string]map[int64]Vote)
	}
	row := make(map[int64]Vote, len(dates))
	for _, d := range dates {
		row[dateKey(d)] = VoteUnspecified
	}
	l.rows[attendee] = row
}

// reconcile prunes stale rows and cells and adds unspecified cells so the
// ledger covers exactly attendees × dates.
func (l *VoteLedger) reconcile(attendees []string, dates []time.Time) {
	wantAttendees := make(map[string]struct{}, len(attendees))
	for _, a := range attendees {
		wantAttendees[a] = struct{}{}
	}
	wantDates := make(map[int64]struct{}, len(dates))
	for _, d := range dates {
		wantDates[dateKey(d)] = struct{}{}
	}

	for a, row := range l.rows {
		if _, ok := wantAttendees[a]; !ok {
			delete(l.rows, a)
			continue
		}
		for k := range row {
			if _, ok := wantDates[k]; !ok {
				delete(row, k)
			}
		}
	}

	for _, a := range attendees {
		row, ok := l.rows[a]
		if !ok {
			l.addAttendee(a, dates)
			continue
		}
		for k := range wantDates {
			if _, ok := row[k]; !ok {
				row[k] = VoteUnspecified
			}
		}
	}
}

func dateKey(t time.Time) int64 {
	return t.Unix()
}
