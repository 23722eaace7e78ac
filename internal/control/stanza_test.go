package control

import (
	"strings"
	"testing"
)

func TestReadStanzaBasic(t *testing.T) {
	in := "Package: foo\nVersion: 1.0\nDescription: a test package\n continued line\n\nPackage: bar\nVersion: 2.0\n"
	r := NewReader(strings.NewReader(in))

	st, err := r.Next()
	if err != nil {
		t.Fatalf("first stanza: %v", err)
	}
	if v, _ := st.Get("package"); v != "foo" {
		t.Errorf("package = %q, want foo", v)
	}
	if v, _ := st.Get("Description"); v != "a test package\ncontinued line" {
		t.Errorf("description = %q", v)
	}

	st2, err := r.Next()
	if err != nil {
		t.Fatalf("second stanza: %v", err)
	}
	if v, _ := st2.Get("Package"); v != "bar" {
		t.Errorf("package = %q, want bar", v)
	}

	if _, err := r.Next(); err == nil {
		t.Fatal("expected io.EOF after last stanza")
	}
}

func TestDuplicateField(t *testing.T) {
	in := "Package: foo\nPackage: bar\n"
	r := NewReader(strings.NewReader(in))
	_, err := r.Next()
	if err == nil {
		t.Fatal("expected duplicate field error")
	}
	if _, ok := err.(*DuplicateFieldError); !ok {
		t.Fatalf("got %T, want *DuplicateFieldError", err)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := "Package: foo\nVersion: 1.0\nDescription: line one\n line two\n"
	r := NewReader(strings.NewReader(in))
	st, err := r.Next()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var b strings.Builder
	if err := Format(&b, []Stanza{st}); err != nil {
		t.Fatalf("format: %v", err)
	}

	r2 := NewReader(strings.NewReader(b.String()))
	st2, err := r2.Next()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(st2.Fields) != len(st.Fields) {
		t.Fatalf("field count mismatch: %d vs %d", len(st2.Fields), len(st.Fields))
	}
	for i := range st.Fields {
		if st.Fields[i] != st2.Fields[i] {
			t.Errorf("field %d mismatch: %+v vs %+v", i, st.Fields[i], st2.Fields[i])
		}
	}
}
