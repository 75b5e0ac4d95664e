package availability

import "time"

// Reserved is the set of slot start times already taken on one day.
type Reserved map[Clock]struct{}

// ReservedFrom collects the start times of the given appointment instants, read in loc.
func ReservedFrom(starts []time.Time, loc *time.Location) Reserved {
	r := make(Reserved, len(starts))
	for _, t := range starts {
		if loc != nil {
			t = t.In(loc)
		}
		r[ClockOf(t)] = struct{}{}
	}
	return r
}

func (r Reserved) Has(c Clock) bool {
	_, ok := r[c]
	return ok
}

// Strings lists the reserved start times as "HH:MM".
func (r Reserved) Strings() []string {
	out := make([]string, 0, len(r))
	for c := range r {
		out = append(out, c.String())
	}
	return out
}

// AvailableSlots keeps the candidates whose start is not reserved. Only an exact start
// match counts as a conflict.
func AvailableSlots(candidates []Slot, reserved Reserved) []Slot {
	out := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if reserved.Has(s.Start) {
			continue
		}
		out = append(out, s)
	}
	return out
}
