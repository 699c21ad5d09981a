package expr

import (
	"strings"
)

// SubstituteString replaces every ${{ ... }} span in s with its evaluated,
// stringified result. GitHub Actions expressions don't nest, so a simple
// balanced-brace scan for the literal delimiters is sufficient.
func SubstituteString(s string, ctx Context) (string, error) {
	var sb strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${{")
		if start == -1 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			// No closing delimiter: leave the rest of the string untouched,
			// matching GitHub's behavior of passing through malformed
			// expression-looking text rather than failing the whole value.
			sb.WriteString(rest)
			break
		}
		end += start

		sb.WriteString(rest[:start])
		body := strings.TrimSpace(rest[start+3 : end])

		node, err := Parse(body)
		if err != nil {
			return "", err
		}
		val, err := Eval(node, ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(toStringValue(val))

		rest = rest[end+2:]
	}
	return sb.String(), nil
}

// EvalBool evaluates an if: expression string to a boolean per GitHub's
// truthiness rule. A bare "if: success()" form (no ${{ }} wrapper) is
// accepted, since GitHub treats the entire if: value as an implicit
// expression when it isn't already wrapped.
func EvalBool(s string, ctx Context) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return true, nil
	}
	body := s
	if strings.HasPrefix(s, "${{") && strings.HasSuffix(s, "}}") {
		body = strings.TrimSpace(s[3 : len(s)-2])
	}
	node, err := Parse(body)
	if err != nil {
		return false, err
	}
	val, err := Eval(node, ctx)
	if err != nil {
		return false, err
	}
	return toBool(val), nil
}
