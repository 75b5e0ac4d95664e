package availability

import (
	"fmt"
	"strings"
	"time"
)

// Stored rules name the weekday in Spanish, the way specialists author them. The core only
// works with time.Weekday; these helpers sit at the boundary.
var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
}

var weekdayTokens = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miércoles": time.Wednesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sábado":    time.Saturday,
	"sabado":    time.Saturday,

	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts Spanish or English weekday names in any case, with or without accents.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayTokens[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
	}
	return d, nil
}

// WeekdayName returns the lowercase Spanish name of d.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}
