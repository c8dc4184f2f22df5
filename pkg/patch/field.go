// Package patch models partial updates: a field is either absent from the request or present
// with a value (which may itself be null for pointer types).
package patch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a presence-tagged value. The zero Field is absent.
type Field[T any] struct {
	Set   bool
	Value T
}

// Of returns a present Field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field present; JSON null decodes to T's zero value.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON encodes the value; absent fields encode as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Update accumulates "column = $n" assignments for the present fields of a patch.
type Update struct {
	sets []string
	args []any
}

// Add appends column = value.
func (u *Update) Add(column string, value any) {
	u.args = append(u.args, value)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", column, len(u.args)))
}

// Empty reports whether no field was added.
func (u *Update) Empty() bool { return len(u.sets) == 0 }

// Statement renders "UPDATE table SET ... WHERE keyColumn = $n" with key appended as the last argument.
func (u *Update) Statement(table, keyColumn string, key any) (string, []any) {
	args := append(append([]any{}, u.args...), key)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(u.sets, ", "), keyColumn, len(args))
	return sql, args
}
