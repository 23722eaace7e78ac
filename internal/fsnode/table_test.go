package fsnode

import "testing"

func TestFindInternsOnce(t *testing.T) {
	tbl := New()
	r1, ok := tbl.Find("/usr/bin/foo", CreateIfMissing)
	if !ok {
		t.Fatal("expected intern to succeed")
	}
	r2, ok := tbl.Find("/usr/bin/foo", CreateIfMissing)
	if !ok || r1 != r2 {
		t.Fatalf("expected same Ref on re-find, got %d and %d", r1, r2)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 node, got %d", tbl.Len())
	}
}

func TestFindWithoutCreateMissing(t *testing.T) {
	tbl := New()
	if _, ok := tbl.Find("/etc/nope", 0); ok {
		t.Fatal("expected no match for uninterned path without CreateIfMissing")
	}
}

func TestOwnersAddRemove(t *testing.T) {
	tbl := New()
	ref, _ := tbl.Find("/etc/foo.conf", CreateIfMissing)
	tbl.AddOwner(ref, "foo")
	tbl.AddOwner(ref, "foo") // idempotent
	if owners := tbl.Get(ref).Owners; len(owners) != 1 {
		t.Fatalf("expected 1 owner, got %v", owners)
	}
	tbl.RemoveOwner(ref, "foo")
	if owners := tbl.Get(ref).Owners; len(owners) != 0 {
		t.Fatalf("expected no owners after remove, got %v", owners)
	}
}

func TestResetPreservesIdentityAndOwners(t *testing.T) {
	tbl := New()
	ref, _ := tbl.Find("/usr/bin/foo", CreateIfMissing)
	tbl.AddOwner(ref, "foo")
	tbl.Get(ref).Flags = FlagNew
	tbl.Reset(ref)
	n := tbl.Get(ref)
	if n.Flags != FlagNone {
		t.Fatalf("expected flags cleared, got %v", n.Flags)
	}
	if len(n.Owners) != 1 || n.Owners[0] != "foo" {
		t.Fatalf("expected owners preserved, got %v", n.Owners)
	}
}

func TestWithPrefix(t *testing.T) {
	tbl := New()
	tbl.Find("/usr/share/doc/foo/changelog", CreateIfMissing)
	tbl.Find("/usr/share/doc/foo/copyright", CreateIfMissing)
	tbl.Find("/usr/bin/foo", CreateIfMissing)

	refs := tbl.WithPrefix("/usr/share/doc/foo")
	if len(refs) != 2 {
		t.Fatalf("expected 2 matches under prefix, got %d", len(refs))
	}
}

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"usr/bin/foo":    "/usr/bin/foo",
		"/usr//bin/./foo": "/usr/bin/foo",
		"":                "/",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}
