package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTurnos(t *testing.T, m *Memory) time.Time {
	t.Helper()
	ctx := context.Background()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	rows := []Row{
		{"id": "a", "especialista_id": "s1", "estado": "pendiente", "fecha_hora": day.Add(9 * time.Hour)},
		{"id": "b", "especialista_id": "s1", "estado": "cancelado", "fecha_hora": day.Add(10 * time.Hour)},
		{"id": "c", "especialista_id": "s2", "estado": "aceptado", "fecha_hora": day.Add(11 * time.Hour)},
		{"id": "d", "especialista_id": "s1", "estado": "rechazado", "fecha_hora": day.AddDate(0, 0, 1).Add(9 * time.Hour)},
	}
	for _, r := range rows {
		_, err := m.Insert(ctx, "turnos", r)
		require.NoError(t, err)
	}
	return day
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["id"].(string)
	}
	return out
}

func TestMemory_SelectFilters(t *testing.T) {
	m := NewMemory()
	day := seedTurnos(t, m)
	ctx := context.Background()

	rows, err := m.Select(ctx, Query{
		Collection: "turnos",
		Filters: []Filter{
			Eq("especialista_id", "s1"),
			NotIn("estado", "cancelado"),
			Gte("fecha_hora", day),
			Lte("fecha_hora", day.Add(24*time.Hour-time.Nanosecond)),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(rows))

	rows, err = m.Select(ctx, Query{
		Collection: "turnos",
		Filters:    []Filter{In("estado", "aceptado", "rechazado")},
		Order:      OrderBy("fecha_hora", true),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, ids(rows))

	rows, err = m.Select(ctx, Query{Collection: "turnos", Filters: []Filter{Neq("especialista_id", "s1")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(rows))
}

func TestMemory_SelectProjectionAndLimit(t *testing.T) {
	m := NewMemory()
	seedTurnos(t, m)

	rows, err := m.Select(context.Background(), Query{
		Collection: "turnos",
		Fields:     []string{"estado"},
		Order:      OrderBy("id", false),
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"estado": "pendiente"}, rows[0])
	assert.Equal(t, Row{"estado": "cancelado"}, rows[1])
}

func TestMemory_SelectOneNotFound(t *testing.T) {
	m := NewMemory()
	_, err := SelectOne(context.Background(), m, Query{Collection: "usuarios", Filters: []Filter{Eq("id", "x")}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_InsertAssignsID(t *testing.T) {
	m := NewMemory()
	row, err := m.Insert(context.Background(), "usuarios", Row{"nombre": "Ana"})
	require.NoError(t, err)
	assert.NotEmpty(t, row["id"])
}

func TestMemory_UpdateConditional(t *testing.T) {
	m := NewMemory()
	seedTurnos(t, m)
	ctx := context.Background()

	n, err := m.Update(ctx, "turnos", Row{"estado": "aceptado"}, Eq("id", "a"), Eq("estado", "pendiente"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = m.Update(ctx, "turnos", Row{"estado": "aceptado"}, Eq("id", "a"), Eq("estado", "pendiente"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = m.Update(ctx, "turnos", Row{"estado": "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMemory_Upsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Upsert(ctx, "disponibilidad", Row{"id": "s1", "especialidades": []byte(`[]`)}, "id")
	require.NoError(t, err)
	_, err = m.Upsert(ctx, "disponibilidad", Row{"id": "s1", "especialidades": []byte(`[{"nombre":"x"}]`)}, "id")
	require.NoError(t, err)

	rows, err := m.Select(ctx, Query{Collection: "disponibilidad"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []byte(`[{"nombre":"x"}]`), rows[0]["especialidades"])
}

func TestMemory_UniqueIndex(t *testing.T) {
	m := NewMemory()
	m.AddUniqueIndex("turnos", func(r Row) bool { return r["estado"] != "cancelado" }, "especialista_id", "fecha_hora")
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	_, err := m.Insert(ctx, "turnos", Row{"especialista_id": "s1", "fecha_hora": at, "estado": "cancelado"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "turnos", Row{"especialista_id": "s1", "fecha_hora": at, "estado": "pendiente"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "turnos", Row{"especialista_id": "s1", "fecha_hora": at, "estado": "pendiente"})
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestMemory_RejectsBadIdentifiers(t *testing.T) {
	m := NewMemory()
	_, err := m.Select(context.Background(), Query{Collection: "turnos; drop table x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
