package trigger

import (
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "triggers.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexRebuildAndLookup(t *testing.T) {
	idx := newTestIndex(t)

	ps := pkgdb.NewPackageSet()
	icons := ps.Get("icon-theme-watcher", "amd64")
	icons.Status = pkgdb.StatusInstalled
	icons.Installed.Version = mustVersion(t, "1.0")
	icons.Installed.TriggerFilePrefixes = []string{"/usr/share/icons"}
	icons.Installed.TriggersInterest = []string{"update-icons"}

	if err := idx.Rebuild(ps); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	names, err := idx.FileTriggerInterested("/usr/share/icons/hicolor/foo.png")
	if err != nil {
		t.Fatalf("FileTriggerInterested: %v", err)
	}
	if len(names) != 1 || names[0] != "icon-theme-watcher" {
		t.Errorf("FileTriggerInterested = %v, want [icon-theme-watcher]", names)
	}

	if names, err = idx.FileTriggerInterested("/etc/foo"); err != nil || len(names) != 0 {
		t.Errorf("FileTriggerInterested(unrelated) = %v, %v", names, err)
	}

	interested, err := idx.InterestedIn("update-icons")
	if err != nil || len(interested) != 1 || interested[0] != "icon-theme-watcher" {
		t.Errorf("InterestedIn = %v, %v", interested, err)
	}
}

func TestEngineActivateAndAwait(t *testing.T) {
	ps := pkgdb.NewPackageSet()
	target := ps.Get("T", "amd64")
	target.Status = pkgdb.StatusInstalled

	awaiter := ps.Get("A", "amd64")
	awaiter.Status = pkgdb.StatusInstalled

	e := NewEngine(admindirDirForTest(), newTestIndex(t), 2)

	if err := e.Activate(ps, "T", "amd64", "/usr/share/icons"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if target.Status != pkgdb.StatusTriggersPending {
		t.Errorf("target status = %v, want triggers-pending", target.Status)
	}
	if len(target.Triggers.Pending) != 1 {
		t.Errorf("target pending = %v", target.Triggers.Pending)
	}

	if err := e.Await(ps, "A", "amd64", "T"); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if awaiter.Status != pkgdb.StatusTriggersAwaited {
		t.Errorf("awaiter status = %v, want triggers-awaited", awaiter.Status)
	}

	e.releaseAwaiters(ps, "T")
	if awaiter.Status != pkgdb.StatusInstalled {
		t.Errorf("awaiter status after release = %v, want installed", awaiter.Status)
	}
}

func TestEngineReentryBound(t *testing.T) {
	ps := pkgdb.NewPackageSet()
	p := ps.Get("T", "amd64")
	p.Status = pkgdb.StatusTriggersPending

	e := NewEngine(admindirDirForTest(), newTestIndex(t), 1)
	key := "T/amd64"
	e.reentries[key] = 1 // simulate having already processed once

	outcome, err := e.ProcessOne(testContext(), ps, p)
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if outcome != OutcomeDeferred {
		t.Errorf("outcome = %v, want OutcomeDeferred", outcome)
	}
}
