package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownWeekday = errors.New("unknown weekday")
	ErrInvalidClock   = errors.New("invalid time of day")
	ErrEmptyWindow    = errors.New("rule window is empty")
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock reads "H:MM" or "HH:MM" on a 24-hour clock.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if !digits(hh) || len(hh) > 2 || !digits(mm) || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(h*60 + m), nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant c on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

// Rule is one weekly recurring window [From, To).
type Rule struct {
	Day  time.Weekday
	From Clock
	To   Clock
}

// RawRule is a rule as stored inside the disponibilidad document.
type RawRule struct {
	Day  string `json:"dia"`
	From string `json:"desde"`
	To   string `json:"hasta"`
}

// SpecialtyAvailability groups the stored rules of one specialty.
type SpecialtyAvailability struct {
	Name  string    `json:"nombre"`
	Rules []RawRule `json:"disponibilidad"`
}

// Compile converts a stored rule. Rules with from >= to are rejected with ErrEmptyWindow.
func (r RawRule) Compile() (Rule, error) {
	day, err := ParseWeekday(r.Day)
	if err != nil {
		return Rule{}, err
	}
	from, err := ParseClock(r.From)
	if err != nil {
		return Rule{}, fmt.Errorf("desde: %w", err)
	}
	to, err := ParseClock(r.To)
	if err != nil {
		return Rule{}, fmt.Errorf("hasta: %w", err)
	}
	if from >= to {
		return Rule{}, fmt.Errorf("%w: %s >= %s", ErrEmptyWindow, from, to)
	}
	return Rule{Day: day, From: from, To: to}, nil
}

// CompileRules keeps the order of raw and skips malformed entries. Every skipped entry is
// reported in diagnostics so callers can log it without losing the valid rules.
func CompileRules(raw []RawRule) (rules []Rule, diagnostics []error) {
	for i, r := range raw {
		rule, err := r.Compile()
		if err != nil {
			diagnostics = append(diagnostics, fmt.Errorf("rule %d (%s %s-%s): %w", i, r.Day, r.From, r.To, err))
			continue
		}
		rules = append(rules, rule)
	}
	return rules, diagnostics
}

// FindSpecialty returns the entry named name, or false.
func FindSpecialty(list []SpecialtyAvailability, name string) (SpecialtyAvailability, bool) {
	for _, s := range list {
		if s.Name == name {
			return s, true
		}
	}
	return SpecialtyAvailability{}, false
}
