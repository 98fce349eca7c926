package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"calendar-sync-api/internal/models"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences bounds how many instances one event may expand to per query.
const MaxOccurrences = 1000

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	models.EventWithCalendar
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ErrFrequencyTooHigh rejects rules repeating more often than hourly.
var ErrFrequencyTooHigh = errors.New("frequency below hourly is not supported")

// ValidateRRule checks that rule is a parseable RRULE value (without the "RRULE:" prefix).
func ValidateRRule(rule string) error {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return fmt.Errorf("invalid rrule %q: %w", rule, err)
	}
	if opt.Freq == rrule.MINUTELY || opt.Freq == rrule.SECONDLY {
		return fmt.Errorf("invalid rrule %q: %w", rule, ErrFrequencyTooHigh)
	}
	if _, err := rrule.NewRRule(*opt); err != nil {
		return fmt.Errorf("invalid rrule %q: %w", rule, err)
	}
	return nil
}

// Expand returns the occurrences of events overlapping [from, to), sorted by start.
func Expand(events []models.EventWithCalendar, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	var out []Occurrence
	for _, e := range events {
		occ, err := expandOne(e, from, to, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandOne(e models.EventWithCalendar, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	start, end, err := e.Bounds(loc)
	if err != nil {
		return nil, err
	}
	duration := end.Sub(start)
	overlaps := func(s time.Time) bool {
		if !s.Before(to) {
			return false
		}
		if duration == 0 {
			return !s.Before(from)
		}
		return s.Add(duration).After(from)
	}

	if e.RRule == "" {
		if overlaps(start) {
			return []Occurrence{{EventWithCalendar: e, Start: start, End: end}}, nil
		}
		return nil, nil
	}

	set, err := rrule.StrToRRuleSet(fmt.Sprintf("DTSTART:%s\nRRULE:%s", start.UTC().Format("20060102T150405Z"), e.RRule))
	if err != nil {
		return nil, fmt.Errorf("event %d: invalid rrule: %w", e.ID, err)
	}

	// walk lazily; the rule may be unbounded
	var out []Occurrence
	next := set.Iterator()
	for len(out) < MaxOccurrences {
		s, ok := next()
		if !ok || !s.Before(to) {
			break
		}
		s = s.In(loc)
		if !overlaps(s) {
			continue
		}
		out = append(out, Occurrence{EventWithCalendar: e, Start: s, End: s.Add(duration)})
	}
	return out, nil
}
