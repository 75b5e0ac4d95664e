package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the read side of a pgx pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PgRepository struct {
	db Querier
}

func NewPgRepository(db Querier) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanCounts(rows pgx.Rows) ([]Count, error) {
	defer rows.Close()

	var result []Count
	for rows.Next() {
		var c Count
		var total int64
		if err := rows.Scan(&c.Key, &total); err != nil {
			return nil, err
		}
		c.Total = int(total)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Interface methods

func (r *PgRepository) CountBySpecialty(ctx context.Context) ([]Count, error) {
	rows, err := r.db.Query(ctx, `
		SELECT especialidad, count(*)
		FROM turnos
		GROUP BY especialidad
		ORDER BY count(*) DESC, especialidad
	`)
	if err != nil {
		return nil, fmt.Errorf("count by specialty: %w", err)
	}
	return scanCounts(rows)
}

func (r *PgRepository) CountByDay(ctx context.Context, loc *time.Location, rng Range) ([]Count, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(fecha_hora AT TIME ZONE $1, 'YYYY-MM-DD') AS dia, count(*)
		FROM turnos
		WHERE ($2::timestamptz IS NULL OR fecha_hora >= $2)
		  AND ($3::timestamptz IS NULL OR fecha_hora <= $3)
		GROUP BY dia
		ORDER BY dia
	`, loc.String(), nullableTime(rng.From), nullableTime(rng.To))
	if err != nil {
		return nil, fmt.Errorf("count by day: %w", err)
	}
	return scanCounts(rows)
}

// CountBySpecialist counts appointments per specialist in rng. A non-empty statuses keeps
// only appointments in one of them.
func (r *PgRepository) CountBySpecialist(ctx context.Context, rng Range, statuses []string) ([]Count, error) {
	var filter []string
	if len(statuses) > 0 {
		filter = statuses
	}
	rows, err := r.db.Query(ctx, `
		SELECT especialista_id::text, count(*)
		FROM turnos
		WHERE ($1::timestamptz IS NULL OR fecha_hora >= $1)
		  AND ($2::timestamptz IS NULL OR fecha_hora <= $2)
		  AND ($3::text[] IS NULL OR estado = ANY($3))
		GROUP BY especialista_id
		ORDER BY count(*) DESC
	`, nullableTime(rng.From), nullableTime(rng.To), filter)
	if err != nil {
		return nil, fmt.Errorf("count by specialist: %w", err)
	}
	return scanCounts(rows)
}

func (r *PgRepository) Logins(ctx context.Context, limit int) ([]Login, error) {
	rows, err := r.db.Query(ctx, `
		SELECT usuario_id::text, email, tipo, fecha_hora
		FROM login_logs
		ORDER BY fecha_hora DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}
	defer rows.Close()

	var result []Login
	for rows.Next() {
		var l Login
		if err := rows.Scan(&l.UserID, &l.Email, &l.Role, &l.At); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
