package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

func TestParseWeekday(t *testing.T) {
	cases := map[string]time.Weekday{
		"lunes":     time.Monday,
		"Miércoles": time.Wednesday,
		"MIERCOLES": time.Wednesday,
		" sábado ":  time.Saturday,
		"sunday":    time.Sunday,
	}
	for in, want := range cases {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("lun")
	assert.ErrorIs(t, err, ErrUnknownWeekday)
	assert.Equal(t, "miércoles", WeekdayName(time.Wednesday))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("8:00")
	require.NoError(t, err)
	assert.Equal(t, "08:00", c.String())

	for _, bad := range []string{"", "24:00", "12:60", "12:5", "ab:cd", "1200", "123:00", "+9:00", "-1:00", "09:+5", " 9: 00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestCompileRules_SkipsMalformedWithDiagnostics(t *testing.T) {
	raw := []RawRule{
		{Day: "lunes", From: "09:00", To: "10:00"},
		{Day: "lunes", From: "nine", To: "10:00"},
		{Day: "funday", From: "09:00", To: "10:00"},
		{Day: "martes", From: "10:00", To: "10:00"},
		{Day: "martes", From: "11:00", To: "12:00"},
		{Day: "martes", From: "+9:00", To: "12:00"},
	}

	rules, diags := CompileRules(raw)
	require.Len(t, rules, 2)
	assert.Equal(t, time.Monday, rules[0].Day)
	assert.Equal(t, time.Tuesday, rules[1].Day)

	require.Len(t, diags, 4)
	assert.ErrorIs(t, diags[0], ErrInvalidClock)
	assert.ErrorIs(t, diags[1], ErrUnknownWeekday)
	assert.ErrorIs(t, diags[2], ErrEmptyWindow)
	assert.ErrorIs(t, diags[3], ErrInvalidClock)
}

func TestValidateForEditing(t *testing.T) {
	in := []SpecialtyAvailability{
		{Name: "Cardiología", Rules: []RawRule{{Day: "Lunes", From: "8:00", To: "12:30"}}},
		{Name: "Clínica", Rules: nil},
	}

	out, err := ValidateForEditing(in, []string{"Cardiología", "Clínica"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []RawRule{{Day: "lunes", From: "08:00", To: "12:30"}}, out[0].Rules)
}

func TestValidateForEditing_Rejects(t *testing.T) {
	cases := map[string]struct {
		list []SpecialtyAvailability
		want error
	}{
		"off grid": {
			list: []SpecialtyAvailability{{Name: "Cardiología", Rules: []RawRule{{Day: "lunes", From: "09:15", To: "10:00"}}}},
			want: ErrOffGrid,
		},
		"too early": {
			list: []SpecialtyAvailability{{Name: "Cardiología", Rules: []RawRule{{Day: "lunes", From: "07:00", To: "10:00"}}}},
			want: ErrOutOfHours,
		},
		"not offered": {
			list: []SpecialtyAvailability{{Name: "Pediatría", Rules: []RawRule{{Day: "lunes", From: "09:00", To: "10:00"}}}},
			want: ErrNotOffered,
		},
		"inverted": {
			list: []SpecialtyAvailability{{Name: "Cardiología", Rules: []RawRule{{Day: "lunes", From: "11:00", To: "10:00"}}}},
			want: ErrEmptyWindow,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateForEditing(tc.list, []string{"Cardiología"})
			assert.ErrorIs(t, err, ErrInvalidRules)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStoreRepository_RoundTrip(t *testing.T) {
	repo := NewStoreRepository(store.NewMemory())
	ctx := context.Background()

	list, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)

	want := []SpecialtyAvailability{{Name: "Cardiología", Rules: []RawRule{{Day: "lunes", From: "09:00", To: "10:00"}}}}
	require.NoError(t, repo.Save(ctx, "s1", want))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
