// Package normalization maps loosely written configuration values onto typed enums.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Clean is the normalization applied to every key and input: trimmed and lower-cased.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Enum resolves user input to one of a fixed set of values.
type Enum[T comparable] struct {
	name   string
	values map[string]T
	keys   []string // sorted, for error messages
}

// NewEnum builds an Enum. Keys are cleaned with Clean.
func NewEnum[T comparable](name string, values map[string]T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values))}
	for k, v := range values {
		k = Clean(k)
		e.values[k] = v
		e.keys = append(e.keys, k)
	}
	sort.Strings(e.keys)
	return e
}

// Parse returns the value for raw and whether it was recognized.
func (e *Enum[T]) Parse(raw string) (T, bool) {
	v, ok := e.values[Clean(raw)]
	return v, ok
}

// Validate is Parse with a descriptive error for unknown input.
func (e *Enum[T]) Validate(raw string) (T, error) {
	if v, ok := e.Parse(raw); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", e.name, raw, strings.Join(e.keys, ", "))
}

// Keys returns the accepted spellings, sorted.
func (e *Enum[T]) Keys() []string {
	return append([]string(nil), e.keys...)
}
