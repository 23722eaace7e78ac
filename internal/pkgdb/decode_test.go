package pkgdb

import (
	"strings"
	"testing"

	"github.com/pkgctl/pkgctl/internal/control"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	in := "Package: foo\n" +
		"Status: install ok installed\n" +
		"Architecture: amd64\n" +
		"Version: 1.2-3\n" +
		"Maintainer: Jane Doe <jane@example.com>\n" +
		"Depends: libc6 (>= 2.17), bar | baz\n" +
		"Conffiles:\n" +
		" /etc/foo.conf abcd1234abcd1234abcd1234abcd1234\n" +
		"X-Custom-Field: untouched\n"

	r := control.NewReader(strings.NewReader(in))
	st, err := r.Next()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var p Package
	if err := DecodeStanza(st, &p, false); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if p.Name != "foo" || p.Arch != "amd64" {
		t.Fatalf("got name=%q arch=%q", p.Name, p.Arch)
	}
	if p.Status != StatusInstalled || p.Want != WantInstall || p.EFlag != EFlagOk {
		t.Fatalf("got status=%v want=%v eflag=%v", p.Status, p.Want, p.EFlag)
	}
	if p.Installed.Version.String() != "1.2-3" {
		t.Fatalf("got version %q", p.Installed.Version)
	}
	if len(p.Installed.Depends) != 2 {
		t.Fatalf("got %d depends disjunctions, want 2", len(p.Installed.Depends))
	}
	if len(p.Installed.Conffiles) != 1 || p.Installed.Conffiles[0].Path != "/etc/foo.conf" {
		t.Fatalf("got conffiles %+v", p.Installed.Conffiles)
	}
	if len(p.Installed.Extra) != 1 || p.Installed.Extra[0].Name != "X-Custom-Field" {
		t.Fatalf("got extra %+v", p.Installed.Extra)
	}

	st2 := EncodeStanza(&p, false)
	var p2 Package
	if err := DecodeStanza(st2, &p2, false); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if p2.Installed.Version.String() != p.Installed.Version.String() {
		t.Fatalf("round-trip version mismatch: %q vs %q", p2.Installed.Version, p.Installed.Version)
	}
	if p2.Installed.Depends.String() != p.Installed.Depends.String() {
		t.Fatalf("round-trip depends mismatch: %q vs %q", p2.Installed.Depends, p.Installed.Depends)
	}
}
