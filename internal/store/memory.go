package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Rows without an "id" get a random UUID on insert.
// Unique keys registered with AddUniqueIndex are enforced on insert.
type Memory struct {
	mu      sync.RWMutex
	tables  map[string][]Row
	uniques map[string][]uniqueIndex
}

type uniqueIndex struct {
	fields []string
	where  func(Row) bool
}

func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string][]Row),
		uniques: make(map[string][]uniqueIndex),
	}
}

// AddUniqueIndex rejects inserts whose fields collide with an existing row. A nil where
// applies the index to every row, otherwise only rows for which where returns true take part.
func (m *Memory) AddUniqueIndex(collection string, where func(Row) bool, fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniques[collection] = append(m.uniques[collection], uniqueIndex{fields: fields, where: where})
}

func (m *Memory) Select(_ context.Context, q Query) ([]Row, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, r := range m.tables[q.Collection] {
		ok, err := matchAll(r, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}

	if q.Order != nil {
		field, desc := q.Order.Field, q.Order.Desc
		sort.SliceStable(out, func(i, j int) bool {
			c, _ := compare(out[i][field], out[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	result := make([]Row, len(out))
	for i, r := range out {
		result[i] = project(r, q.Fields)
	}
	return result, nil
}

func (m *Memory) Insert(_ context.Context, collection string, row Row) (Row, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := copyRow(row)
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	if err := m.checkUnique(collection, r, -1); err != nil {
		return nil, err
	}
	m.tables[collection] = append(m.tables[collection], r)
	return copyRow(r), nil
}

func (m *Memory) Upsert(_ context.Context, collection string, row Row, key string) (Row, error) {
	if err := validIdent(collection); err != nil {
		return nil, err
	}
	kv, ok := row[key]
	if !ok {
		return nil, fmt.Errorf("%w: upsert row lacks key %q", ErrInvalidQuery, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.tables[collection] {
		if c, ok := compare(existing[key], kv); ok && c == 0 {
			merged := copyRow(existing)
			for k, v := range row {
				merged[k] = v
			}
			m.tables[collection][i] = merged
			return copyRow(merged), nil
		}
	}

	r := copyRow(row)
	if err := m.checkUnique(collection, r, -1); err != nil {
		return nil, err
	}
	m.tables[collection] = append(m.tables[collection], r)
	return copyRow(r), nil
}

func (m *Memory) Update(_ context.Context, collection string, patch Row, filters ...Filter) (int64, error) {
	if err := validIdent(collection); err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: update without filters", ErrInvalidQuery)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i, r := range m.tables[collection] {
		ok, err := matchAll(r, filters)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		updated := copyRow(r)
		for k, v := range patch {
			updated[k] = v
		}
		if err := m.checkUnique(collection, updated, i); err != nil {
			return n, err
		}
		m.tables[collection][i] = updated
		n++
	}
	return n, nil
}

func (m *Memory) checkUnique(collection string, candidate Row, skip int) error {
	for _, idx := range m.uniques[collection] {
		if idx.where != nil && !idx.where(candidate) {
			continue
		}
		for i, r := range m.tables[collection] {
			if i == skip {
				continue
			}
			if idx.where != nil && !idx.where(r) {
				continue
			}
			if sameFields(r, candidate, idx.fields) {
				return fmt.Errorf("insert %s: %w", collection, ErrConflict)
			}
		}
	}
	return nil
}

func sameFields(a, b Row, fields []string) bool {
	for _, f := range fields {
		c, ok := compare(a[f], b[f])
		if !ok || c != 0 {
			return false
		}
	}
	return true
}

func matchAll(r Row, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := match(r[f.Field], f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(v any, f Filter) (bool, error) {
	switch f.Op {
	case OpEq:
		c, ok := compare(v, f.Value)
		return ok && c == 0, nil
	case OpNeq:
		c, ok := compare(v, f.Value)
		return !ok || c != 0, nil
	case OpGte:
		c, ok := compare(v, f.Value)
		return ok && c >= 0, nil
	case OpLte:
		c, ok := compare(v, f.Value)
		return ok && c <= 0, nil
	case OpIn, OpNotIn:
		values, ok := f.Value.([]string)
		if !ok {
			return false, fmt.Errorf("%w: %s expects []string", ErrInvalidQuery, f.Op)
		}
		found := false
		for _, want := range values {
			if c, ok := compare(v, want); ok && c == 0 {
				found = true
				break
			}
		}
		if f.Op == OpIn {
			return found, nil
		}
		return !found, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperand, f.Op)
	}
}

// compare orders two column values. ok is false when the values are not comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, ok := b.(bool)
		if !ok || x != y {
			return 1, ok
		}
		return 0, true
	}

	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	if a == nil || b == nil {
		return 0, false
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func project(r Row, fields []string) Row {
	if len(fields) == 0 {
		return copyRow(r)
	}
	out := make(Row, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
