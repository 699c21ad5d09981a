package expr

import "testing"

func eval(t *testing.T, src string, ctx Context) any {
	t.Helper()
	n, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	v, err := Eval(n, ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

func TestUnresolvedIdentifierIsEmptyNotError(t *testing.T) {
	got := eval(t, "needs.a.outputs.s_unsupported", Context{
		"needs": map[string]any{"a": map[string]any{"outputs": map[string]any{}}},
	})
	if got != nil {
		t.Fatalf("expected nil for unresolved path, got %v (%T)", got, got)
	}
	if toStringValue(got) != "" {
		t.Fatalf("expected empty string coercion, got %q", toStringValue(got))
	}
}

func TestComparisonOperators(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"1 == 1", true},
		{"1 != 2", true},
		{"2 > 1", true},
		{"1 >= 1", true},
		{"'a' < 'b'", true},
		{"true && false", false},
		{"true || false", true},
		{"!true", false},
	}
	for _, c := range cases {
		got := eval(t, c.src, Context{})
		if got != c.want {
			t.Errorf("%s => %v, want %v", c.src, got, c.want)
		}
	}
}

func TestShortCircuit(t *testing.T) {
	// success() with no status set defaults true; failure() defaults false.
	// noSuchFunction() errors if it is ever evaluated, so these only pass
	// when the right operand is skipped.
	ctx := Context{}
	if got := eval(t, "success() || noSuchFunction()", ctx); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := eval(t, "failure() && noSuchFunction()", ctx); got != false {
		t.Fatalf("expected false, got %v", got)
	}
}

func TestFunctions(t *testing.T) {
	ctx := Context{}
	if got := eval(t, "contains('hello world', 'world')", ctx); got != true {
		t.Fatalf("contains: got %v", got)
	}
	if got := eval(t, "startsWith('hello', 'HE')", ctx); got != true {
		t.Fatalf("startsWith: got %v", got)
	}
	if got := eval(t, "format('{0} and {1}', 'a', 'b')", ctx); got != "a and b" {
		t.Fatalf("format: got %v", got)
	}
}

func TestFromJSONIndexesParsedValue(t *testing.T) {
	ctx := Context{}
	got := eval(t, `fromJSON('{"a":1,"b":[1,2,3]}').b[1]`, ctx)
	if got != float64(2) {
		t.Fatalf("expected 2, got %v (%T)", got, got)
	}
}

func TestSubstituteStringMultipleExpressions(t *testing.T) {
	ctx := Context{"matrix": map[string]any{"n": float64(3)}}
	got, err := SubstituteString("value=${{ matrix.n }}, twice=${{ matrix.n }} done", ctx)
	if err != nil {
		t.Fatalf("SubstituteString: %v", err)
	}
	if got != "value=3, twice=3 done" {
		t.Fatalf("got %q", got)
	}
}

func TestSyntaxErrorFailsStep(t *testing.T) {
	_, err := Parse("1 +")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if _, ok := err.(*SyntaxError); !ok {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
}
