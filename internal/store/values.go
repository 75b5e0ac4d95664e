package store

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// JSON encodes v for a jsonb column.
func JSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeJSON reads a jsonb column into dst. Postgres hands back decoded values while the
// in-memory store keeps the raw bytes, so both shapes are accepted.
func DecodeJSON(v any, dst any) error {
	switch raw := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, dst)
	case string:
		if raw == "" {
			return nil
		}
		return json.Unmarshal([]byte(raw), dst)
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("re-encode json column: %w", err)
		}
		return json.Unmarshal(b, dst)
	}
}

// String returns the string value of a column, or "" for NULL and non-strings. uuid columns
// come back from pgx as [16]byte.
func String(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case [16]byte:
		return uuid.UUID(s).String()
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

// Bool returns the boolean value of a column, false for NULL.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Int returns the integer value of a column, 0 for NULL.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// IntPtr is Int for nullable columns.
func IntPtr(v any) *int {
	if v == nil {
		return nil
	}
	n := Int(v)
	return &n
}

// Time returns the timestamp value of a column, the zero time for NULL.
func Time(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
