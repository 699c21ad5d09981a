package expr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
)

// FuncContextKey is the Context key under which the job/combination's
// status ("success", "failure", "cancelled") is stored; success(),
// failure(), cancelled(), and always() read it.
const FuncContextKey = "__status"

// HashFilesRoot is the Context key holding the directory hashFiles() globs
// against: resolved against the host workspace, since that is always
// populated even when no container runtime is in use (emulation mode has
// no other filesystem).
const HashFilesRoot = "__hashfiles_root"

func callFunction(n *callNode, ctx Context) (any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.name {
	case "contains":
		return fnContains(args)
	case "startsWith":
		return fnStartsWith(args)
	case "endsWith":
		return fnEndsWith(args)
	case "format":
		return fnFormat(args)
	case "fromJSON":
		return fnFromJSON(args)
	case "toJSON":
		return fnToJSON(args)
	case "hashFiles":
		return fnHashFiles(ctx, args)
	case "success":
		return status(ctx) == "success" || status(ctx) == "", nil
	case "failure":
		return status(ctx) == "failure", nil
	case "cancelled":
		return status(ctx) == "cancelled", nil
	case "always":
		return true, nil
	default:
		return nil, fmt.Errorf("unknown function %q", n.name)
	}
}

func status(ctx Context) string {
	s, _ := ctx[FuncContextKey].(string)
	return s
}

func fnContains(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("contains() takes 2 arguments")
	}
	if list, ok := args[0].([]any); ok {
		for _, item := range list {
			if looseEqual(item, args[1]) {
				return true, nil
			}
		}
		return false, nil
	}
	return strings.Contains(toStringValue(args[0]), toStringValue(args[1])), nil
}

func fnStartsWith(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("startsWith() takes 2 arguments")
	}
	return strings.HasPrefix(strings.ToLower(toStringValue(args[0])), strings.ToLower(toStringValue(args[1]))), nil
}

func fnEndsWith(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("endsWith() takes 2 arguments")
	}
	return strings.HasSuffix(strings.ToLower(toStringValue(args[0])), strings.ToLower(toStringValue(args[1]))), nil
}

func fnFormat(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("format() takes at least 1 argument")
	}
	tmpl := toStringValue(args[0])
	rest := args[1:]
	var sb strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' && i+1 < len(tmpl) {
			end := strings.IndexByte(tmpl[i:], '}')
			if end > 0 {
				idxStr := tmpl[i+1 : i+end]
				var idx int
				if _, err := fmt.Sscanf(idxStr, "%d", &idx); err == nil && idx >= 0 && idx < len(rest) {
					sb.WriteString(toStringValue(rest[idx]))
					i += end + 1
					continue
				}
			}
		}
		sb.WriteByte(tmpl[i])
		i++
	}
	return sb.String(), nil
}

// fnFromJSON parses a JSON string into the same nullable/bool/number/
// string/[]any/map[string]any shape this package's evaluator operates on.
// gjson.Parse + Result.Value() does exactly that decode, so fromJSON is
// grounded in the pack's gjson dependency rather than a hand-rolled decoder.
func fnFromJSON(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("fromJSON() takes 1 argument")
	}
	s := toStringValue(args[0])
	result := gjson.Parse(s)
	if !result.Exists() && s != "null" {
		return nil, fmt.Errorf("fromJSON(): invalid JSON")
	}
	return normalizeJSONValue(result.Value()), nil
}

// normalizeJSONValue converts gjson's json.Number-free float64 values (and
// nested structures) into the any tree Eval expects; gjson already decodes
// numbers as float64 and objects as map[string]interface{}, so this is
// mostly a pass-through kept for clarity at call sites.
func normalizeJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeJSONValue(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeJSONValue(vv)
		}
		return t
	default:
		return t
	}
}

// fnToJSON serializes a value back to its canonical JSON form. Unlike
// fromJSON there is no tidwall equivalent for marshaling an arbitrary Go
// value (sjson only patches an existing JSON document at a path), so this
// one function uses encoding/json — see DESIGN.md for that justification.
func fnToJSON(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("toJSON() takes 1 argument")
	}
	b, err := json.MarshalIndent(args[0], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("toJSON(): %w", err)
	}
	return string(b), nil
}

// fnHashFiles is best-effort: unreadable files are skipped rather than
// failing the expression.
func fnHashFiles(ctx Context, args []any) (any, error) {
	root, _ := ctx[HashFilesRoot].(string)
	if root == "" {
		root = "."
	}

	var matches []string
	for _, a := range args {
		pattern := toStringValue(a)
		found, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			continue
		}
		matches = append(matches, found...)
	}
	sort.Strings(matches)

	h := sha256.New()
	anyMatched := false
	for _, m := range matches {
		data, err := os.ReadFile(root + string(os.PathSeparator) + m) //nolint:gosec // globbed from the job workspace
		if err != nil {
			continue
		}
		anyMatched = true
		h.Write(data)
	}
	if !anyMatched {
		return "", nil
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
