package application

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/scheduling"
)

// MaxHoursPerDay is the number of start hours the editor offers per day.
const MaxHoursPerDay = 3

var hourPattern = regexp.MustCompile(`^([0-2]?[0-9]):([0-5][0-9])$`)

// expandDays turns picked days into candidate dates in loc. Malformed days
// and hours are added to vErr; days without hours contribute nothing.
func expandDays(days []CandidateDay, loc *time.Location, vErr *scheduling.ValidationError) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	var dates []time.Time
	for _, day := range days {
		raw := strings.TrimSpace(day.Date)
		date, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			vErr.Add("days", fmt.Sprintf("%q is not a YYYY-MM-DD date", day.Date))
			continue
		}

		hours := make([]string, 0, len(day.Hours))
		for _, h := range day.Hours {
			if h = strings.TrimSpace(h); h != "" {
				hours = append(hours, h)
			}
		}
		if len(hours) > MaxHoursPerDay {
			vErr.Add("days", fmt.Sprintf("%s: at most %d hours per day", raw, MaxHoursPerDay))
			continue
		}

		for _, h := range hours {
			hour, minute, ok := parseHour(h)
			if !ok {
				vErr.Add("days", fmt.Sprintf("%s: %q does not respect the format HH:MM", raw, h))
				continue
			}
			dates = append(dates, time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc))
		}
	}
	return dates
}

func parseHour(value string) (int, int, bool) {
	m := hourPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, false
	}
	return hour, minute, true
}
