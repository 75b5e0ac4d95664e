package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func slotStrings(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func mustRules(t *testing.T, raw ...RawRule) []Rule {
	t.Helper()
	rules, diags := CompileRules(raw)
	require.Empty(t, diags)
	return rules
}

func TestExpandSlotsForDate_HalfHourSteps(t *testing.T) {
	rules := mustRules(t, RawRule{Day: "lunes", From: "09:00", To: "10:30"})

	got := ExpandSlotsForDate(rules, monday)
	assert.Equal(t, []string{"09:00 - 09:30", "09:30 - 10:00", "10:00 - 10:30"}, slotStrings(got))
}

func TestExpandSlotsForDate_DropsPartialStep(t *testing.T) {
	rules := mustRules(t,
		RawRule{Day: "lunes", From: "09:00", To: "09:20"},
		RawRule{Day: "lunes", From: "11:00", To: "12:15"},
	)

	got := ExpandSlotsForDate(rules, monday)
	assert.Equal(t, []string{"11:00 - 11:30", "11:30 - 12:00"}, slotStrings(got))
}

func TestExpandSlotsForDate_TwoRulesSameDayKeepRuleOrder(t *testing.T) {
	afternoon := RawRule{Day: "Lunes", From: "14:00", To: "15:00"}
	morning := RawRule{Day: "lunes", From: "08:00", To: "09:30"}
	rules := mustRules(t, afternoon, morning)

	got := ExpandSlotsForDate(rules, monday)
	assert.Len(t, got, len(ExpandSlotsForDate(mustRules(t, afternoon), monday))+len(ExpandSlotsForDate(mustRules(t, morning), monday)))
	assert.Equal(t, []string{
		"14:00 - 14:30", "14:30 - 15:00",
		"08:00 - 08:30", "08:30 - 09:00", "09:00 - 09:30",
	}, slotStrings(got))
}

func TestExpandSlotsForDate_OtherWeekdayIgnored(t *testing.T) {
	rules := mustRules(t, RawRule{Day: "martes", From: "09:00", To: "12:00"})
	assert.Empty(t, ExpandSlotsForDate(rules, monday))
}

func TestExpandSlotsForDate_OvernightRuleYieldsNothing(t *testing.T) {
	rules := []Rule{{Day: time.Monday, From: 22 * 60, To: 2 * 60}}
	assert.Empty(t, ExpandSlotsForDate(rules, monday))
}

func TestExpandCandidateDates(t *testing.T) {
	rules := mustRules(t,
		RawRule{Day: "lunes", From: "09:00", To: "10:00"},
		RawRule{Day: "lunes", From: "15:00", To: "16:00"},
		RawRule{Day: "Miércoles", From: "09:00", To: "10:00"},
	)
	// Sunday 2026-10-18 at noon.
	today := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	got := ExpandCandidateDates(rules, today, DefaultLookaheadDays)

	var days []string
	for _, d := range got {
		days = append(days, d.Format(DateLayout))
	}
	assert.Equal(t, []string{"2026-10-19", "2026-10-21", "2026-10-26", "2026-10-28"}, days)
}

func TestExpandCandidateDates_Properties(t *testing.T) {
	rules := mustRules(t,
		RawRule{Day: "domingo", From: "09:00", To: "10:00"},
		RawRule{Day: "lunes", From: "09:00", To: "10:00"},
		RawRule{Day: "martes", From: "09:00", To: "10:00"},
		RawRule{Day: "miercoles", From: "09:00", To: "10:00"},
		RawRule{Day: "jueves", From: "09:00", To: "10:00"},
		RawRule{Day: "viernes", From: "09:00", To: "10:00"},
		RawRule{Day: "sabado", From: "09:00", To: "10:00"},
	)

	for offset := 0; offset < 7; offset++ {
		today := monday.AddDate(0, 0, offset)
		got := ExpandCandidateDates(rules, today, DefaultLookaheadDays)

		require.Len(t, got, DefaultLookaheadDays)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i].After(got[i-1]), "dates must be strictly ascending")
		}
		assert.Equal(t, today, got[0])
	}
}

func TestExpandCandidateDates_Empty(t *testing.T) {
	assert.Empty(t, ExpandCandidateDates(nil, monday, DefaultLookaheadDays))
	assert.Empty(t, ExpandCandidateDates(mustRules(t, RawRule{Day: "lunes", From: "09:00", To: "10:00"}), monday, 0))
}

func TestExpandCandidateDates_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	rules := mustRules(t, RawRule{Day: "lunes", From: "09:00", To: "10:00"})
	// Sunday 23:30 local is already Monday in UTC; the local weekday decides.
	today := time.Date(2026, 10, 18, 23, 30, 0, 0, loc)

	got := ExpandCandidateDates(rules, today, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-10-19", got[0].Format(DateLayout))
	assert.Equal(t, loc, got[0].Location())
}

func TestResolverIsIdempotent(t *testing.T) {
	rules := mustRules(t, RawRule{Day: "lunes", From: "09:00", To: "11:00"})

	assert.Equal(t, ExpandCandidateDates(rules, monday, 15), ExpandCandidateDates(rules, monday, 15))
	assert.Equal(t, ExpandSlotsForDate(rules, monday), ExpandSlotsForDate(rules, monday))
}

func TestParseSlot(t *testing.T) {
	s, err := ParseSlot("09:30 - 10:00")
	require.NoError(t, err)
	assert.Equal(t, Slot{Start: 570, End: 600}, s)

	s, err = ParseSlot("9:30-10:00")
	require.NoError(t, err)
	assert.Equal(t, "09:30 - 10:00", s.String())

	_, err = ParseSlot("10:00 - 09:30")
	assert.ErrorIs(t, err, ErrEmptyWindow)
	_, err = ParseSlot("09:30")
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestClockOn(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, loc)

	at := Clock(9*60 + 30).On(day)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 30, 0, 0, loc), at)
}
