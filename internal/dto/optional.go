package dto

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was left out of a JSON payload from one
// explicitly sent as null. Update payloads use it so that null can clear a
// nullable column while an absent key leaves it untouched.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON records that the key was present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}

	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Present reports whether a non-null value was supplied.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// Some builds a supplied value, mostly useful in tests.
func Some[T any](value T) Optional[T] {
	return Optional[T]{Set: true, Value: value}
}

// Null builds an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}
