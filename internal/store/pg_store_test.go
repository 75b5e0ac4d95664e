package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStore_SelectBuildsFilteredQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)
	at := from.Add(9 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT "fecha_hora" FROM "turnos" WHERE "especialista_id" = $1 AND "especialidad" = $2 AND NOT ("estado" = ANY($3)) AND "fecha_hora" >= $4 AND "fecha_hora" <= $5 ORDER BY "fecha_hora" ASC`)).
		WithArgs("s1", "Cardiología", []string{"cancelado"}, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"fecha_hora"}).AddRow(at))

	s := NewPgStore(mock)
	rows, err := s.Select(context.Background(), Query{
		Collection: "turnos",
		Fields:     []string{"fecha_hora"},
		Filters: []Filter{
			Eq("especialista_id", "s1"),
			Eq("especialidad", "Cardiología"),
			NotIn("estado", "cancelado"),
			Gte("fecha_hora", from),
			Lte("fecha_hora", to),
		},
		Order: OrderBy("fecha_hora", false),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, at, rows[0]["fecha_hora"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_InsertOrdersColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "login_logs" ("email", "user_id") VALUES ($1, $2) RETURNING *`)).
		WithArgs("a@b.c", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "user_id"}).AddRow(int64(7), "a@b.c", "u1"))

	s := NewPgStore(mock)
	row, err := s.Insert(context.Background(), "login_logs", Row{"user_id": "u1", "email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_InsertUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO "turnos"`).
		WithArgs("pendiente").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	s := NewPgStore(mock)
	_, err = s.Insert(context.Background(), "turnos", Row{"estado": "pendiente"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_UpdateNumbersWhereAfterSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE "turnos" SET "comentario" = $1, "estado" = $2 WHERE "id" = $3 AND "estado" = $4`)).
		WithArgs("sin cupo", "rechazado", "t1", "pendiente").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := NewPgStore(mock)
	n, err := s.Update(context.Background(), "turnos",
		Row{"estado": "rechazado", "comentario": "sin cupo"},
		Eq("id", "t1"), Eq("estado", "pendiente"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := []byte(`[]`)
	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "disponibilidad" ("especialidades", "id") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "especialidades" = EXCLUDED."especialidades" RETURNING *`)).
		WithArgs(doc, "s1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "especialidades"}).AddRow("s1", doc))

	s := NewPgStore(mock)
	_, err = s.Upsert(context.Background(), "disponibilidad", Row{"id": "s1", "especialidades": doc}, "id")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_RejectsUnsafeIdentifiers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPgStore(mock)
	_, err = s.Select(context.Background(), Query{Collection: "turnos", Filters: []Filter{Eq(`id" OR 1=1 --`, "x")}})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = s.Update(context.Background(), "turnos", Row{"estado": "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
