// Package attrs reads typed values out of loosely typed maps, such as decoded
// JSON request bodies, and turns them into pivot column updates.
//
// Every accessor fails loudly: a present key holding the wrong type is an
// error, never a silent zero value.
package attrs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/relvacode/iso8601"
)

var (
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrUnknownColumn = errors.New("unknown pivot column")
)

// Pivot columns that callers may write.
const (
	AssignedBy = "assigned_by"
	AssignedAt = "assigned_at"
	Role       = "role"
	DeletedAt  = "deleted_at"
)

// Attributes maps pivot columns to values. A nil value writes NULL; a column
// that is absent is left untouched.
type Attributes map[string]any

func (a Attributes) Has(column string) bool {
	_, ok := a[column]
	return ok
}

// Columns returns the attribute names in a stable order.
func (a Attributes) Columns() []string {
	columns := make([]string, 0, len(a))
	for column := range a {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func mismatch(key string, want string, got any) error {
	return fmt.Errorf("%w: %s must be %s, got %T", ErrTypeMismatch, key, want, got)
}

// String returns m[key] as a string. ok is false if the key is absent or null.
func String(m map[string]any, key string) (value string, ok bool, err error) {
	raw, present := m[key]
	if !present || raw == nil {
		return "", false, nil
	}

	s, isString := raw.(string)
	if !isString {
		return "", false, mismatch(key, "a string", raw)
	}

	return s, true, nil
}

// Time returns m[key] as a time. Strings are parsed as ISO-8601.
func Time(m map[string]any, key string) (value time.Time, ok bool, err error) {
	raw, present := m[key]
	if !present || raw == nil {
		return time.Time{}, false, nil
	}

	switch v := raw.(type) {
	case time.Time:
		return v, true, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case string:
		parsed, err := iso8601.ParseString(v)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %s is not an ISO-8601 timestamp: %v", ErrTypeMismatch, key, err)
		}
		return parsed, true, nil
	default:
		return time.Time{}, false, mismatch(key, "a timestamp", raw)
	}
}

// Uint returns m[key] as an unsigned integer. JSON numbers must be integral;
// numeric strings are rejected.
func Uint(m map[string]any, key string) (value uint, ok bool, err error) {
	raw, present := m[key]
	if !present || raw == nil {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case uint:
		return v, true, nil
	case uint64:
		return uint(v), true, nil
	case int:
		if v < 0 {
			return 0, false, mismatch(key, "a non-negative integer", raw)
		}
		return uint(v), true, nil
	case int64:
		if v < 0 {
			return 0, false, mismatch(key, "a non-negative integer", raw)
		}
		return uint(v), true, nil
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint32 {
			return 0, false, mismatch(key, "a non-negative integer", raw)
		}
		return uint(v), true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false, mismatch(key, "a non-negative integer", raw)
		}
		return uint(n), true, nil
	default:
		return 0, false, mismatch(key, "a non-negative integer", raw)
	}
}

// Pivot converts a decoded object into Attributes, accepting only the given
// columns. Present keys keep their presence even when null.
func Pivot(m map[string]any, allowed ...string) (Attributes, error) {
	permitted := make(map[string]bool, len(allowed))
	for _, column := range allowed {
		permitted[column] = true
	}

	out := make(Attributes, len(m))

	for key := range m {
		if !permitted[key] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
		}

		switch key {
		case AssignedBy, Role:
			s, ok, err := String(m, key)
			if err != nil {
				return nil, err
			}
			if ok {
				out[key] = s
			} else {
				out[key] = nil
			}
		case AssignedAt, DeletedAt:
			t, ok, err := Time(m, key)
			if err != nil {
				return nil, err
			}
			if ok {
				out[key] = t
			} else {
				out[key] = nil
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
		}
	}

	return out, nil
}
