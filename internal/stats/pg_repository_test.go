package stats

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountBySpecialty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`GROUP BY especialidad`).
		WillReturnRows(pgxmock.NewRows([]string{"especialidad", "count"}).
			AddRow("Cardiología", int64(3)).
			AddRow("Clínica", int64(1)))

	got, err := NewPgRepository(mock).CountBySpecialty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Count{{Key: "Cardiología", Total: 3}, {Key: "Clínica", Total: 1}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByDay_UsesZone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	mock.ExpectQuery(`AT TIME ZONE \$1`).
		WithArgs("America/Argentina/Buenos_Aires", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"dia", "count"}).AddRow("2026-10-19", int64(5)))

	got, err := NewPgRepository(mock).CountByDay(context.Background(), loc, Range{})
	require.NoError(t, err)
	assert.Equal(t, []Count{{Key: "2026-10-19", Total: 5}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBySpecialist_StatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`GROUP BY especialista_id`).
		WithArgs(&from, &to, []string{"realizado"}).
		WillReturnRows(pgxmock.NewRows([]string{"especialista_id", "count"}).AddRow("s1", int64(2)))

	got, err := NewPgRepository(mock).CountBySpecialist(context.Background(), Range{From: from, To: to}, []string{"realizado"})
	require.NoError(t, err)
	assert.Equal(t, []Count{{Key: "s1", Total: 2}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM login_logs`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"usuario_id", "email", "tipo", "fecha_hora"}).
			AddRow("u1", "ana@example.com", "paciente", at))

	got, err := NewPgRepository(mock).Logins(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []Login{{UserID: "u1", Email: "ana@example.com", Role: "paciente", At: at}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`GROUP BY especialidad`).WillReturnError(boom)

	_, err = NewPgRepository(mock).CountBySpecialty(context.Background())
	assert.ErrorIs(t, err, boom)
}
