package expr

import "fmt"

// Eval evaluates a parsed expression tree against ctx. An unresolved
// identifier evaluates to empty string / false rather than erroring. Syntax
// errors are caught earlier, by Parse, as *SyntaxError; Eval itself errors
// only for an unknown function or a function called with the wrong number
// of arguments.
func Eval(n Node, ctx Context) (any, error) {
	switch t := n.(type) {
	case *nullNode:
		return nil, nil
	case *boolNode:
		return t.value, nil
	case *numberNode:
		return t.value, nil
	case *stringNode:
		return t.value, nil
	case *identNode:
		v, ok := ctx[t.name]
		if !ok {
			return nil, nil
		}
		return v, nil
	case *memberNode:
		obj, err := Eval(t.obj, ctx)
		if err != nil {
			return nil, err
		}
		return lookupField(obj, t.field), nil
	case *indexNode:
		obj, err := Eval(t.obj, ctx)
		if err != nil {
			return nil, err
		}
		idx, err := Eval(t.index, ctx)
		if err != nil {
			return nil, err
		}
		return lookupIndex(obj, idx), nil
	case *unaryNode:
		v, err := Eval(t.expr, ctx)
		if err != nil {
			return nil, err
		}
		return !toBool(v), nil
	case *binaryNode:
		return evalBinary(t, ctx)
	case *callNode:
		return callFunction(t, ctx)
	default:
		return nil, fmt.Errorf("unhandled node type %T", n)
	}
}

func evalBinary(n *binaryNode, ctx Context) (any, error) {
	switch n.op {
	case "&&":
		left, err := Eval(n.left, ctx)
		if err != nil {
			return nil, err
		}
		if !toBool(left) {
			return left, nil
		}
		return Eval(n.right, ctx)
	case "||":
		left, err := Eval(n.left, ctx)
		if err != nil {
			return nil, err
		}
		if toBool(left) {
			return left, nil
		}
		return Eval(n.right, ctx)
	}

	left, err := Eval(n.left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Eval(n.right, ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", "<=", ">", ">=":
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if lok && rok {
			return compareNumbers(n.op, ln, rn), nil
		}
		return compareStrings(n.op, toStringValue(left), toStringValue(right)), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", n.op)
	}
}

func compareNumbers(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func compareStrings(op string, a, b string) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func lookupField(obj any, field string) any {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil
	}
	return m[field]
}

func lookupIndex(obj any, idx any) any {
	switch o := obj.(type) {
	case []any:
		n, ok := toNumber(idx)
		if !ok {
			return nil
		}
		i := int(n)
		if i < 0 || i >= len(o) {
			return nil
		}
		return o[i]
	case map[string]any:
		return o[toStringValue(idx)]
	default:
		return nil
	}
}
