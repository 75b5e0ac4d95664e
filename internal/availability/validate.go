package availability

import (
	"errors"
	"fmt"
	"strings"
)

// Bounds accepted when a specialist edits their hours.
const (
	EditMinHour = 8
	EditMaxHour = 18
)

var (
	ErrOffGrid      = errors.New("time must be on the hour or half hour")
	ErrOutOfHours   = errors.New("time outside opening hours")
	ErrNoSpecialty  = errors.New("specialty name is required")
	ErrNotOffered   = errors.New("specialty is not offered by the specialist")
	ErrInvalidRules = errors.New("invalid availability")
)

// ValidateForEditing checks a full document submitted by a specialist and returns it with
// empty specialties dropped and weekday names normalised. offered lists the specialties the
// specialist holds; a nil slice skips that check.
func ValidateForEditing(list []SpecialtyAvailability, offered []string) ([]SpecialtyAvailability, error) {
	var problems []error
	out := make([]SpecialtyAvailability, 0, len(list))

	for _, spec := range list {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			problems = append(problems, ErrNoSpecialty)
			continue
		}
		if offered != nil && !contains(offered, name) {
			problems = append(problems, fmt.Errorf("%w: %s", ErrNotOffered, name))
			continue
		}
		if len(spec.Rules) == 0 {
			continue
		}

		clean := SpecialtyAvailability{Name: name}
		for i, raw := range spec.Rules {
			rule, err := raw.Compile()
			if err == nil {
				err = checkEditable(rule)
			}
			if err != nil {
				problems = append(problems, fmt.Errorf("%s rule %d: %w", name, i, err))
				continue
			}
			clean.Rules = append(clean.Rules, RawRule{
				Day:  WeekdayName(rule.Day),
				From: rule.From.String(),
				To:   rule.To.String(),
			})
		}
		out = append(out, clean)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, errors.Join(problems...))
	}
	return out, nil
}

func checkEditable(r Rule) error {
	for _, c := range []Clock{r.From, r.To} {
		if c.Minute() != 0 && c.Minute() != 30 {
			return fmt.Errorf("%w: %s", ErrOffGrid, c)
		}
		if c.Hour() < EditMinHour || c.Hour() > EditMaxHour {
			return fmt.Errorf("%w: %s", ErrOutOfHours, c)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
