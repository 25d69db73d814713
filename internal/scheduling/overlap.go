package scheduling

import (
	"sort"
	"time"
)

// BusySlot is a confirmed commitment of one attendee, taken from another
// scheduled rendez-vous.
type BusySlot struct {
	RendezVousID string
	Attendee     string
	Start        time.Time
	End          time.Time
}

// Overlap reports a candidate slot of a rendez-vous that collides with an
// attendee's existing commitment.
type Overlap struct {
	Date           time.Time
	Attendee       string
	WithRendezVous string
}

// DetectOverlaps checks every candidate slot [date, date+duration) of rv
// against busy. Slots of rv itself and of non-attendees are ignored. Results
// are ordered by date, attendee, then conflicting rendez-vous.
func DetectOverlaps(rv RendezVous, busy []BusySlot) []Overlap {
	if len(busy) == 0 || rv.Duration <= 0 {
		return nil
	}
	length := rv.SlotLength()
	var out []Overlap
	for _, date := range rv.CandidateDates {
		end := date.Add(length)
		for _, slot := range busy {
			if slot.RendezVousID == rv.ID || !rv.IsAttendee(slot.Attendee) {
				continue
			}
			if date.Before(slot.End) && slot.Start.Before(end) {
				out = append(out, Overlap{Date: date, Attendee: slot.Attendee, WithRendezVous: slot.RendezVousID})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Attendee != out[j].Attendee {
			return out[i].Attendee < out[j].Attendee
		}
		return out[i].WithRendezVous < out[j].WithRendezVous
	})
	return out
}

// BusySlots expands scheduled rendez-vous into per-attendee busy slots.
// Records without a confirmed date are skipped.
func BusySlots(records []RendezVous) []BusySlot {
	var out []BusySlot
	for _, r := range records {
		if r.Status != StatusScheduled || r.ConfirmedDate == nil {
			continue
		}
		start := *r.ConfirmedDate
		end := start.Add(r.SlotLength())
		for _, a := range r.Attendees {
			out = append(out, BusySlot{RendezVousID: r.ID, Attendee: a, Start: start, End: end})
		}
		if !r.IsAttendee(r.Organizer) {
			out = append(out, BusySlot{RendezVousID: r.ID, Attendee: r.Organizer, Start: start, End: end})
		}
	}
	return out
}
