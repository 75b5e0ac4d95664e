package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgStore maps collections onto Postgres tables of the same name.
type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildWhere renders filters as a WHERE clause starting at placeholder $start.
func buildWhere(filters []Filter, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	n := start

	for _, f := range filters {
		col := quote(f.Field)
		switch f.Op {
		case OpEq:
			parts = append(parts, fmt.Sprintf("%s = $%d", col, n))
		case OpNeq:
			parts = append(parts, fmt.Sprintf("%s <> $%d", col, n))
		case OpGte:
			parts = append(parts, fmt.Sprintf("%s >= $%d", col, n))
		case OpLte:
			parts = append(parts, fmt.Sprintf("%s <= $%d", col, n))
		case OpIn:
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, n))
		case OpNotIn:
			parts = append(parts, fmt.Sprintf("NOT (%s = ANY($%d))", col, n))
		default:
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownOperand, f.Op)
		}
		args = append(args, f.Value)
		n++
	}

	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (s *PgStore) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	cols := "*"
	if len(q.Fields) > 0 {
		quoted := make([]string, len(q.Fields))
		for i, f := range q.Fields {
			quoted[i] = quote(f)
		}
		cols = strings.Join(quoted, ", ")
	}

	where, args, err := buildWhere(q.Filters, 1)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", cols, quote(q.Collection), where)
	if q.Order != nil {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", quote(q.Order.Field), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Collection, err)
	}
	return collectRows(rows)
}

func (s *PgStore) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}
	cols, placeholders, args, err := splitRow(row)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(collection), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	return s.queryOne(ctx, collection, sql, args)
}

func (s *PgStore) Upsert(ctx context.Context, collection string, row Row, key string) (Row, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}
	if err := validIdent(key); err != nil {
		return nil, err
	}
	if _, ok := row[key]; !ok {
		return nil, fmt.Errorf("%w: upsert row lacks key %q", ErrInvalidQuery, key)
	}
	cols, placeholders, args, err := splitRow(row)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == quote(key) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s RETURNING *",
		quote(collection), strings.Join(cols, ", "), strings.Join(placeholders, ", "), quote(key), conflict)

	return s.queryOne(ctx, collection, sql, args)
}

func (s *PgStore) Update(ctx context.Context, collection string, patch Row, filters ...Filter) (int64, error) {
	if err := validIdent(collection); err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: update without filters", ErrInvalidQuery)
	}
	for _, f := range filters {
		if err := validIdent(f.Field); err != nil {
			return 0, err
		}
	}

	cols, _, args, err := splitRow(patch)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}

	where, whereArgs, err := buildWhere(filters, len(args)+1)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s%s", quote(collection), strings.Join(sets, ", "), where)
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, translateErr(collection, "update", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) queryOne(ctx context.Context, collection, sql string, args []any) (Row, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateErr(collection, "write", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, translateErr(collection, "write", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// splitRow orders columns by name so generated SQL is deterministic.
func splitRow(row Row) (cols, placeholders []string, args []any, err error) {
	if len(row) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty row", ErrInvalidQuery)
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		if err := validIdent(k); err != nil {
			return nil, nil, nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		cols = append(cols, quote(k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, row[k])
	}
	return cols, placeholders, args, nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		r := make(Row, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				r[fd.Name] = values[i]
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func translateErr(collection, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s: %w", op, collection, ErrConflict)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}
