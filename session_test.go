package pkgctl

import (
	"testing"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// TestOpenFreshAdminDir covers scenario S1 ("given empty admin-dir"): Open
// must succeed against a directory that exists but has none of info/,
// triggers/, status, or config.toml populated yet, and the result must be
// an empty, usable session rather than an error.
func TestOpenFreshAdminDir(t *testing.T) {
	dir := admindir.Dir{Admin: t.TempDir(), Root: t.TempDir()}

	sess, err := Open(dir)
	if err != nil {
		t.Fatalf("Open on a fresh admin directory: %v", err)
	}
	defer sess.Close()

	if got := len(sess.PS.All()); got != 0 {
		t.Fatalf("expected no packages in a fresh admin directory, got %d", got)
	}
	if sess.Table == nil || sess.Trigger == nil || sess.Archive == nil {
		t.Fatal("expected Open to assemble every collaborator even with nothing on disk")
	}

	if err := sess.Commit(); err != nil {
		t.Fatalf("Commit on a fresh session: %v", err)
	}
}

// TestOpenReopenConverges covers testable property 6 (restart-and-converge):
// a session opened, mutated, committed, and closed must be fully visible to
// a second Open against the same admin directory.
func TestOpenReopenConverges(t *testing.T) {
	dir := admindir.Dir{Admin: t.TempDir(), Root: t.TempDir()}

	sess, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	sess.PS.Get("widget", "amd64").Status = pkgdb.StatusNotInstalled
	if err := sess.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer reopened.Close()

	p, ok := reopened.PS.Find("widget", "amd64")
	if !ok {
		t.Fatal("expected widget/amd64 to survive a close and reopen")
	}
	if p.Status != pkgdb.StatusNotInstalled {
		t.Fatalf("unexpected status after reopen: %s", p.Status)
	}
}
