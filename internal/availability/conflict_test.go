package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAvailableSlots_ExactStartOnly(t *testing.T) {
	candidates := []Slot{{Start: 9 * 60, End: 9*60 + 30}, {Start: 9*60 + 30, End: 10 * 60}}
	reserved := Reserved{9 * 60: {}}

	assert.Equal(t, []string{"09:30 - 10:00"}, slotStrings(AvailableSlots(candidates, reserved)))
}

func TestAvailableSlots_OverlapNotDetected(t *testing.T) {
	candidates := []Slot{{Start: 9 * 60, End: 9*60 + 30}}
	// An appointment starting at 09:15 overlaps but does not share the start.
	reserved := Reserved{9*60 + 15: {}}

	assert.Len(t, AvailableSlots(candidates, reserved), 1)
}

func TestReservedFrom_UsesLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	starts := []time.Time{time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}

	r := ReservedFrom(starts, loc)
	assert.True(t, r.Has(9*60))
	assert.Equal(t, []string{"09:00"}, r.Strings())
}
