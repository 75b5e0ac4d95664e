package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound       = errors.New("row not found")
	ErrConflict       = errors.New("unique constraint violated")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrUnknownOperand = errors.New("unknown filter operator")
)

// Row is one record of a collection keyed by column name.
type Row map[string]any

// Op is a filter operator understood by every Store implementation.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpIn    Op = "in"
	OpNotIn Op = "not_in"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Filter { return Filter{Field: field, Op: OpNeq, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }

// In matches rows whose field equals one of values.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// NotIn matches rows whose field equals none of values.
func NotIn(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpNotIn, Value: values}
}

type Order struct {
	Field string
	Desc  bool
}

func OrderBy(field string, desc bool) *Order {
	return &Order{Field: field, Desc: desc}
}

// Query describes a select against one collection. Empty Fields selects every column.
type Query struct {
	Collection string
	Fields     []string
	Filters    []Filter
	Order      *Order
	Limit      int
}

// Store is the collection store the domain packages read and write through.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection string, patch Row, filters ...Filter) (int64, error)
	Upsert(ctx context.Context, collection string, row Row, key string) (Row, error)
}

// SelectOne returns the first row matching q or ErrNotFound.
func SelectOne(ctx context.Context, s Store, q Query) (Row, error) {
	q.Limit = 1
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: bad identifier %q", ErrInvalidQuery, name)
	}
	return nil
}

func (q Query) validate() error {
	if err := validIdent(q.Collection); err != nil {
		return err
	}
	for _, f := range q.Fields {
		if err := validIdent(f); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := validIdent(f.Field); err != nil {
			return err
		}
	}
	if q.Order != nil {
		if err := validIdent(q.Order.Field); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}
