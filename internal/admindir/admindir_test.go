package admindir

import (
	"path/filepath"
	"testing"
)

func TestForceParseAndString(t *testing.T) {
	f, err := ParseForce("depends, confnew , remove-essential")
	if err != nil {
		t.Fatalf("ParseForce: %v", err)
	}
	if !f.Has(ForceDepends) || !f.Has(ForceConfNew) || !f.Has(ForceRemoveEssential) {
		t.Fatalf("expected all three flags set, got %s", f)
	}
	if f.Has(ForceBreaks) {
		t.Fatalf("did not expect ForceBreaks set")
	}

	got, err := ParseForce(f.String())
	if err != nil {
		t.Fatalf("round-trip ParseForce: %v", err)
	}
	if got != f {
		t.Fatalf("round trip mismatch: %s != %s", got, f)
	}
}

func TestForceUnknownFlag(t *testing.T) {
	_, err := ParseForce("not-a-real-flag")
	if err == nil {
		t.Fatal("expected an error for an unknown force flag")
	}
	if _, ok := err.(*UnknownForceFlagError); !ok {
		t.Fatalf("expected *UnknownForceFlagError, got %T", err)
	}
}

func TestConfigLoadMissingReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected DefaultConfig() for a missing file, got %+v", cfg)
	}
}

func TestConfigSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.DefaultForce = "confnew"
	cfg.TriggerCycleBound = 42

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.DefaultForce != "confnew" || got.TriggerCycleBound != 42 {
		t.Fatalf("unexpected reloaded config: %+v", got)
	}
	if !got.Force().Has(ForceConfNew) {
		t.Fatalf("expected Force() to reflect reloaded DefaultForce")
	}
}

func TestDirLayoutPaths(t *testing.T) {
	d := Dir{Admin: "/var/lib/pkgctl", Root: "/"}
	if d.Status() != "/var/lib/pkgctl/status" {
		t.Fatalf("unexpected Status path: %s", d.Status())
	}
	if d.PackageList("widget") != "/var/lib/pkgctl/info/widget.list" {
		t.Fatalf("unexpected PackageList path: %s", d.PackageList("widget"))
	}
	if d.MaintainerScript("widget", "postinst") != "/var/lib/pkgctl/info/widget.postinst" {
		t.Fatalf("unexpected MaintainerScript path: %s", d.MaintainerScript("widget", "postinst"))
	}
}

func TestSessionLockAcquireRelease(t *testing.T) {
	dir := Dir{Admin: t.TempDir(), Root: t.TempDir()}
	l := NewSessionLock(dir)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	other := NewSessionLock(dir)
	ok, err := other.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if ok {
		t.Fatal("expected a second lock attempt to fail while the first is held")
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	ok, err = other.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire after release: %v", err)
	}
	if !ok {
		t.Fatal("expected the lock to be acquirable after release")
	}
	other.Release()
}
