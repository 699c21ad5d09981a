// Package matrix expands a job's strategy.matrix configuration into an
// ordered list of concrete parameter bindings.
package matrix

import (
	"fmt"
	"sort"

	"github.com/wrkflw/wrkflw/internal/workflow"
)

// DefaultMaxCombinations is the cap on expanded combinations before
// a *TooLargeError is returned (configurable by callers via ExpandWithLimit).
const DefaultMaxCombinations = 256

// Binding is one concrete parameter assignment: dimension name to value.
type Binding map[string]any

// TooLargeError is returned when a matrix would expand past the configured
// cap.
type TooLargeError struct {
	Count int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("matrix expands to %d combinations, exceeding the limit of %d", e.Count, e.Limit)
}

// Expand runs the full dimension/include/exclude algorithm with the default
// combination cap. A nil or empty matrix yields a single empty binding (the
// job's anonymous, matrix-less combination).
func Expand(m *workflow.Matrix) ([]Binding, error) {
	return ExpandWithLimit(m, DefaultMaxCombinations)
}

// ExpandWithLimit is Expand with an explicit combination cap.
func ExpandWithLimit(m *workflow.Matrix, limit int) ([]Binding, error) {
	if m == nil || len(m.Dimensions) == 0 {
		return []Binding{{}}, nil
	}

	base := cartesianProduct(m.Dimensions, m.DimensionOrder)
	if len(base) > limit {
		return nil, &TooLargeError{Count: len(base), Limit: limit}
	}

	excluded := applyExclude(base, m.Exclude)
	merged := applyInclude(excluded, m.Include)

	if len(merged) > limit {
		return nil, &TooLargeError{Count: len(merged), Limit: limit}
	}

	return dedupe(merged), nil
}

// cartesianProduct walks dimensions in declaration order and yields bindings
// in row-major order. order is the literal YAML key order recovered by the
// parser; when it's unavailable (or stale against dims) a sorted key order
// is used instead, still a pure, deterministic function of the input.
func cartesianProduct(dims map[string][]any, order []string) []Binding {
	names := order
	if len(names) != len(dims) {
		names = make([]string, 0, len(dims))
		for k := range dims {
			names = append(names, k)
		}
		sort.Strings(names)
	}

	result := []Binding{{}}
	for _, name := range names {
		values := dims[name]
		next := make([]Binding, 0, len(result)*len(values))
		for _, existing := range result {
			for _, v := range values {
				b := cloneBinding(existing)
				b[name] = v
				next = append(next, b)
			}
		}
		result = next
	}
	return result
}

func cloneBinding(b Binding) Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// applyExclude removes every binding whose values match an exclude entry on
// every key that entry specifies.
func applyExclude(bindings []Binding, excludes []map[string]any) []Binding {
	if len(excludes) == 0 {
		return bindings
	}
	out := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		excludedMatch := false
		for _, ex := range excludes {
			if matchesAllKeys(b, ex) {
				excludedMatch = true
				break
			}
		}
		if !excludedMatch {
			out = append(out, b)
		}
	}
	return out
}

// applyInclude merges each include entry into the first matching binding,
// or appends it as a new standalone binding if nothing matches.
func applyInclude(bindings []Binding, includes []map[string]any) []Binding {
	out := bindings
	for _, inc := range includes {
		matched := false
		for i, b := range out {
			if sharesKeyAndMatches(b, inc) {
				merged := cloneBinding(b)
				for k, v := range inc {
					merged[k] = v
				}
				out[i] = merged
				matched = true
				break
			}
		}
		if !matched {
			nb := make(Binding, len(inc))
			for k, v := range inc {
				nb[k] = v
			}
			out = append(out, nb)
		}
	}
	return out
}

// matchesAllKeys reports whether b agrees with pattern on every key pattern
// specifies (used for exclude: a binding is excluded only if it matches the
// exclude entry on all of the entry's keys).
func matchesAllKeys(b Binding, pattern map[string]any) bool {
	if len(pattern) == 0 {
		return false
	}
	for k, v := range pattern {
		bv, ok := b[k]
		if !ok || !equalValue(bv, v) {
			return false
		}
	}
	return true
}

// sharesKeyAndMatches reports whether b and pattern share at least one key
// and agree on every shared key (used for include: merge target lookup).
func sharesKeyAndMatches(b Binding, pattern map[string]any) bool {
	shared := false
	for k, v := range pattern {
		bv, ok := b[k]
		if !ok {
			continue
		}
		shared = true
		if !equalValue(bv, v) {
			return false
		}
	}
	return shared
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// dedupe removes bindings that are exact-value duplicates of an earlier
// binding, preserving first occurrence.
func dedupe(bindings []Binding) []Binding {
	seen := make(map[string]struct{}, len(bindings))
	out := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		key := bindingKey(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

func bindingKey(b Binding) string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	key := ""
	for _, n := range names {
		key += n + "=" + fmt.Sprint(b[n]) + "\x1f"
	}
	return key
}
