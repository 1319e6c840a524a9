// Package normalization maps loosely written configuration strings onto
// typed enum values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer converts raw strings to enum values. Lookups ignore case and
// surrounding whitespace.
type Normalizer[T comparable] struct {
	name      string
	values    map[string]T
	validKeys []string
}

// New creates a normalizer for the enum called name. Keys in values are
// normalized before they are stored.
func New[T comparable](name string, values map[string]T) *Normalizer[T] {
	n := &Normalizer[T]{
		name:      name,
		values:    make(map[string]T, len(values)),
		validKeys: make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.validKeys = append(n.validKeys, key)
	}
	sort.Strings(n.validKeys)
	return n
}

// Normalize returns the enum value for raw, or an error listing the
// accepted spellings.
func (n *Normalizer[T]) Normalize(raw string) (T, error) {
	if v, ok := n.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.validKeys, ", "))
}

// ValidKeys returns the accepted spellings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.validKeys))
	copy(out, n.validKeys)
	return out
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
