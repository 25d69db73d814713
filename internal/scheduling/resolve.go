package scheduling

import "time"

// Outcome tells whether a resolution picked a date.
type Outcome string

const (
	OutcomeDecided   Outcome = "decided"
	OutcomeUndecided Outcome = "undecided"
)

// Agreement summarizes how the counted voters answered for one date.
type Agreement string

const (
	// AgreementFull means every counted voter is available.
	AgreementFull Agreement = "full"
	// AgreementPartial means at least one counted voter is available.
	AgreementPartial Agreement = "partial"
	AgreementNone    Agreement = "none"
)

// DateScore is the tally of a single candidate date.
type DateScore struct {
	Date        time.Time
	Available   int
	Unavailable int
	Unspecified int
	Score       int
	Agreement   Agreement
}

// Resolution is the derived scheduling decision. Date and Ends are only set
// when Outcome is decided. Scores follow candidate date order.
type Resolution struct {
	Outcome Outcome
	Date    time.Time
	Ends    time.Time
	Score   int
	Scores  []DateScore
}

// Decided reports whether a date was picked.
func (r Resolution) Decided() bool {
	return r.Outcome == OutcomeDecided
}

// Resolve computes the resolution of rv under the engine's tally policy.
func (e *Engine) Resolve(rv RendezVous) Resolution {
	return Resolve(rv, e.cfg.ExcludeOrganizerVotes)
}

// Resolve scores every candidate date as available minus unavailable votes
// and picks the highest score, earliest date first on ties. A rendez-vous
// whose best score is not positive, or that was cancelled, is undecided.
// When excludeOrganizer is set the organizer's row is left out of tallies.
func Resolve(rv RendezVous, excludeOrganizer bool) Resolution {
	voters := make([]string, 0, len(rv.Attendees))
	for _, a := range rv.Attendees {
		if excludeOrganizer && a == rv.Organizer {
			continue
		}
		voters = append(voters, a)
	}

	res := Resolution{Outcome: OutcomeUndecided, Scores: make([]DateScore, 0, len(rv.CandidateDates))}
	best := -1
	for _, date := range rv.CandidateDates {
		ds := DateScore{Date: date}
		for _, a := range voters {
			v := rv.Ledger.Get(a, date)
			switch v {
			case VoteAvailable:
				ds.Available++
			case VoteUnavailable:
				ds.Unavailable++
			default:
				ds.Unspecified++
			}
			ds.Score += v.weight()
		}
		switch {
		case len(voters) > 0 && ds.Available == len(voters):
			ds.Agreement = AgreementFull
		case ds.Available > 0:
			ds.Agreement = AgreementPartial
		default:
			ds.Agreement = AgreementNone
		}
		res.Scores = append(res.Scores, ds)

		if best < 0 {
			best = len(res.Scores) - 1
			continue
		}
		current := res.Scores[best]
		if ds.Score > current.Score || (ds.Score == current.Score && ds.Date.Before(current.Date)) {
			best = len(res.Scores) - 1
		}
	}

	if best < 0 || rv.Status == StatusCancelled {
		return res
	}
	top := res.Scores[best]
	if top.Score <= 0 {
		return res
	}
	res.Outcome = OutcomeDecided
	res.Date = top.Date
	res.Ends = top.Date.Add(rv.SlotLength())
	res.Score = top.Score
	return res
}
