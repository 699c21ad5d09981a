// Package expr evaluates GitHub Actions ${{ }} expressions against a
// Context. The grammar, operator set, and coercion rules mirror
// docs.github.com/actions/learn-github-actions/expressions.
package expr

import (
	"fmt"
	"strconv"
)

// Context is the read-only, per-call snapshot passed to Eval. Building one
// mutable owner (the job-combination task) that snapshots itself before each
// expression evaluation keeps concurrent matrix combinations from aliasing
// each other's state, per the Design Notes' "Context propagation" guidance.
type Context map[string]any

// toBool applies GitHub's truthiness coercion: null and empty string are
// false; numeric zero is false; everything else not explicitly false is
// true.
func toBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// toStringValue applies GitHub's string coercion: null becomes "", booleans
// and numbers print their literal form, numbers preserve integer-ness in
// their printed form.
func toStringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	default:
		return fmt.Sprint(t)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// looseEqual implements ==/!= across mixed types the way GitHub does: values
// are compared after coercing both sides to a common type, preferring
// numeric comparison when both sides parse as numbers, falling back to
// string comparison otherwise.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok1 := a.(bool); ok1 {
		return ab == toBool(b)
	}
	if bb, ok1 := b.(bool); ok1 {
		return bb == toBool(a)
	}
	if an, ok1 := toNumber(a); ok1 {
		if bn, ok2 := toNumber(b); ok2 {
			return an == bn
		}
	}
	return toStringValue(a) == toStringValue(b)
}
