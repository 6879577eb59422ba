package models

import (
	"bytes"
	"encoding/json"
)

// Field is an optional request value with three states: not supplied,
// supplied as null, and supplied with a value. The zero Field is "not
// supplied", so struct fields tagged omitzero disappear from JSON output.
type Field[T any] struct {
	value T
	set   bool
	null  bool
}

// Set returns a Field supplied with v.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Null returns a Field explicitly supplied as null.
func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the field was supplied, as a value or as null.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field was supplied as null.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Get returns the supplied value; ok is false when unset or null.
func (f Field[T]) Get() (v T, ok bool) {
	if !f.set || f.null {
		return v, false
	}
	return f.value, true
}

// Ptr returns a pointer to a copy of the value, or nil when unset or null.
func (f Field[T]) Ptr() *T {
	v, ok := f.Get()
	if !ok {
		return nil
	}
	return &v
}

// IsZero is used by encoding/json's omitzero.
func (f Field[T]) IsZero() bool { return !f.set }

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON is only invoked when the key is present, which is what
// separates "supplied as null" from "not supplied".
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	var zero T
	f.set = true
	f.value = zero
	f.null = bytes.Equal(bytes.TrimSpace(b), []byte("null"))
	if f.null {
		return nil
	}
	return json.Unmarshal(b, &f.value)
}
