package version

import "testing"

func TestCompareLaws(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"1.0~beta1", "1.0", -1},
		{"1.0-1", "1.0-2", -1},
		{"1:0", "2", 1},
		{"1.0a", "1.0b", -1},
		{"1.0", "1.0.1", -1},
	}
	for _, c := range cases {
		va, err := Parse(c.a)
		if err != nil {
			t.Fatalf("parse %q: %v", c.a, err)
		}
		vb, err := Parse(c.b)
		if err != nil {
			t.Fatalf("parse %q: %v", c.b, err)
		}
		got := Compare(va, vb)
		got = sign(got)
		if got != c.want {
			t.Errorf("compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{"1.0", "2:1.0-3", "1.0~beta1", "0.9.8+dfsg-1", "10:abc-def"}
	for _, s := range inputs {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		v2, err := Parse(v.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", v.String(), err)
		}
		if Compare(v, v2) != 0 {
			t.Errorf("round trip mismatch: %q -> %q -> %v", s, v.String(), v2)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{"", KindEmptyVersion},
		{"1.0 2", KindEmbeddedSpaces},
		{":1.0", KindEmptyEpoch},
		{"a:1.0", KindNonNumericEpoch},
		{"-1:1.0", KindNegativeEpoch},
		{"1:", KindEmptyAfterEpochColon},
		{"1.0-", KindEmptyRevision},
	}
	for _, c := range cases {
		_, err := Parse(c.in)
		if err == nil {
			t.Fatalf("parse %q: expected error", c.in)
		}
		pe, ok := err.(*ParseError)
		if !ok {
			t.Fatalf("parse %q: expected *ParseError, got %T", c.in, err)
		}
		if pe.Kind != c.kind {
			t.Errorf("parse %q: kind = %v, want %v", c.in, pe.Kind, c.kind)
		}
	}
}

func TestParseLaxWarnings(t *testing.T) {
	v, err := ParseLax("abc-1")
	if err == nil {
		t.Fatal("expected a warning-level error")
	}
	pe := err.(*ParseError)
	if !pe.Kind.IsWarning() {
		t.Fatalf("expected a warning kind, got %v", pe.Kind)
	}
	if v.Upstream != "abc" {
		t.Fatalf("expected best-effort parse to still populate upstream, got %+v", v)
	}

	if _, err := Parse("abc-1"); err == nil {
		t.Fatal("strict Parse should reject the same input")
	}
}

func TestEpochDominates(t *testing.T) {
	v1, _ := Parse("1:0")
	v2, _ := Parse("999")
	if !Less(v2, v1) {
		t.Fatal("epoch 1 should outrank epoch 0 regardless of upstream")
	}
}
