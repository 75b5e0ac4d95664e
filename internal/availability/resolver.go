package availability

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLookaheadDays covers today plus the next 14 days.
	DefaultLookaheadDays = 15
	SlotMinutes          = 30

	DateLayout = "2006-01-02"
)

// Slot is a bookable interval [Start, End).
type Slot struct {
	Start Clock
	End   Clock
}

func (s Slot) String() string {
	return fmt.Sprintf("%s - %s", s.Start, s.End)
}

// ParseSlot reads "HH:MM - HH:MM". Surrounding spaces around the dash are optional.
func ParseSlot(s string) (Slot, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Slot{}, fmt.Errorf("%w: slot %q", ErrInvalidClock, s)
	}
	start, err := ParseClock(from)
	if err != nil {
		return Slot{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return Slot{}, err
	}
	if end <= start {
		return Slot{}, fmt.Errorf("%w: slot %q", ErrEmptyWindow, s)
	}
	return Slot{Start: start, End: end}, nil
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ExpandCandidateDates returns, in ascending order, the days in [today, today+lookahead)
// whose weekday has at least one rule.
func ExpandCandidateDates(rules []Rule, today time.Time, lookaheadDays int) []time.Time {
	if len(rules) == 0 || lookaheadDays <= 0 {
		return nil
	}

	var days [7]bool
	for _, r := range rules {
		days[r.Day] = true
	}

	start := StartOfDay(today)
	var out []time.Time
	for i := 0; i < lookaheadDays; i++ {
		d := start.AddDate(0, 0, i)
		if days[d.Weekday()] {
			out = append(out, d)
		}
	}
	return out
}

// ExpandSlotsForDate walks every rule of date's weekday in SlotMinutes steps. Slots keep rule
// order and are not sorted across rules. A trailing step shorter than SlotMinutes is dropped.
func ExpandSlotsForDate(rules []Rule, date time.Time) []Slot {
	wd := date.Weekday()

	var out []Slot
	for _, r := range rules {
		if r.Day != wd {
			continue
		}
		for start := r.From; start+SlotMinutes <= r.To; start += SlotMinutes {
			out = append(out, Slot{Start: start, End: start + SlotMinutes})
		}
	}
	return out
}
