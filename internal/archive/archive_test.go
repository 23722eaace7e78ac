package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/conffile"
	"github.com/pkgctl/pkgctl/internal/fsnode"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
	"github.com/pkgctl/pkgctl/internal/version"
)

// eofReader is a fixed in-memory Reader, standing in for the (out-of-scope)
// decoded archive container a real front end would supply.
type eofReader struct {
	entries []Entry
	i       int
}

func newMemReader(entries ...Entry) Reader { return &eofReader{entries: entries} }

func (r *eofReader) Next() (Entry, error) {
	if r.i >= len(r.entries) {
		return Entry{}, io.EOF
	}
	e := r.entries[r.i]
	r.i++
	return e, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, admindir.Dir) {
	t.Helper()
	root := t.TempDir()
	dir := admindir.Dir{Admin: filepath.Join(root, "admin"), Root: filepath.Join(root, "target")}
	if err := os.MkdirAll(dir.InfoDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir.Root, 0755); err != nil {
		t.Fatal(err)
	}
	pl := &Pipeline{
		Dir:        dir,
		Table:      fsnode.New(),
		PS:         pkgdb.NewPackageSet(),
		ConfPolicy: conffile.PolicyDefault,
		DryRun:     false,
	}
	return pl, dir
}

func fileEntry(path, content string) Entry {
	return Entry{Path: path, Mode: 0644, Content: strings.NewReader(content)}
}

func TestInstallFreshUnpackAndConfigure(t *testing.T) {
	pl, dir := newTestPipeline(t)

	v, err := version.Parse("1.0-1")
	if err != nil {
		t.Fatal(err)
	}

	ctl := Control{
		Name: "widget",
		Arch: "amd64",
		Binary: pkgdb.PackageBinary{
			Version: v,
		},
	}
	pkg := Package{
		Control: ctl,
		Files:   newMemReader(fileEntry("/usr/bin/widget", "#!/bin/sh\necho hi\n")),
	}

	if err := pl.Install(context.Background(), pkg, true); err != nil {
		t.Fatalf("Install: %v", err)
	}

	p, ok := pl.PS.Find("widget", "amd64")
	if !ok {
		t.Fatal("expected widget to be recorded in the package set")
	}
	if p.Status != pkgdb.StatusInstalled {
		t.Fatalf("expected status installed, got %s", p.Status)
	}
	if p.Installed.Version.String() != "1.0-1" {
		t.Fatalf("expected installed version 1.0-1, got %s", p.Installed.Version.String())
	}

	installed := dir.ResolvePath("/usr/bin/widget")
	b, err := os.ReadFile(installed)
	if err != nil {
		t.Fatalf("reading installed file: %v", err)
	}
	if string(b) != "#!/bin/sh\necho hi\n" {
		t.Fatalf("unexpected installed content: %q", string(b))
	}

	ref, ok := pl.Table.Find("/usr/bin/widget", 0)
	if !ok {
		t.Fatal("expected node table entry for installed path")
	}
	node := pl.Table.Get(ref)
	found := false
	for _, o := range node.Owners {
		if o == "widget" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected widget to own /usr/bin/widget, owners=%v", node.Owners)
	}
}

func TestInstallRefusesUnlicensedOverwrite(t *testing.T) {
	pl, _ := newTestPipeline(t)

	ref, _ := pl.Table.Find("/usr/bin/shared", fsnode.CreateIfMissing)
	pl.Table.AddOwner(ref, "first")
	pl.PS.Get("first", "amd64")

	v, _ := version.Parse("1.0-1")
	ctl := Control{Name: "second", Arch: "amd64", Binary: pkgdb.PackageBinary{Version: v}}
	pkg := Package{Control: ctl, Files: newMemReader(fileEntry("/usr/bin/shared", "x"))}

	err := pl.Install(context.Background(), pkg, false)
	if err == nil {
		t.Fatal("expected a conflict error, got nil")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T: %v", err, err)
	}
}

func TestRemoveUnlinksOwnedFilesAndKeepsConffiles(t *testing.T) {
	pl, dir := newTestPipeline(t)

	v, _ := version.Parse("1.0-1")
	conffilePath := "/etc/widget.conf"
	ctl := Control{
		Name: "widget",
		Arch: "amd64",
		Binary: pkgdb.PackageBinary{
			Version:   v,
			Conffiles: []pkgdb.Conffile{{Path: conffilePath}},
		},
	}
	pkg := Package{
		Control: ctl,
		Files: newMemReader(
			fileEntry("/usr/bin/widget", "bin"),
			fileEntry(conffilePath, "config"),
		),
	}
	if err := pl.Install(context.Background(), pkg, true); err != nil {
		t.Fatalf("Install: %v", err)
	}

	p, _ := pl.PS.Find("widget", "amd64")
	// Resolve() records the hash so Remove/Purge can compare against it, the
	// same bookkeeping a real front end would have done on a prior commit.
	hash, err := conffile.Hash(dir.ResolvePath(conffilePath))
	if err != nil {
		t.Fatal(err)
	}
	p.Installed.Conffiles[0].MD5 = hash

	if err := pl.Remove(context.Background(), p, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if p.Status != pkgdb.StatusConfigFiles {
		t.Fatalf("expected status config-files, got %s", p.Status)
	}
	if _, err := os.Stat(dir.ResolvePath("/usr/bin/widget")); !os.IsNotExist(err) {
		t.Fatalf("expected /usr/bin/widget to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(dir.ResolvePath(conffilePath)); err != nil {
		t.Fatalf("expected conffile to survive a plain remove: %v", err)
	}

	if err := pl.Purge(context.Background(), p); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if p.Status != pkgdb.StatusNotInstalled {
		t.Fatalf("expected status not-installed after purge, got %s", p.Status)
	}
	if _, err := os.Stat(dir.ResolvePath(conffilePath)); !os.IsNotExist(err) {
		t.Fatalf("expected conffile to be gone after purge, stat err=%v", err)
	}
}

func TestRemoveRefusesEssentialWithoutForce(t *testing.T) {
	pl, _ := newTestPipeline(t)
	p := pl.PS.Get("base-files", "amd64")
	p.Installed = pkgdb.PackageBinary{Essential: true}
	p.Status = pkgdb.StatusInstalled

	if err := pl.Remove(context.Background(), p, false); err == nil {
		t.Fatal("expected removal of an essential package to be refused")
	}

	pl.Force = admindir.ForceRemoveEssential
	if err := pl.Remove(context.Background(), p, false); err != nil {
		t.Fatalf("expected forced removal to succeed, got %v", err)
	}
}

func TestRecoverConvergesHalfConfigured(t *testing.T) {
	pl, _ := newTestPipeline(t)
	p := pl.PS.Get("widget", "amd64")
	p.Status = pkgdb.StatusHalfConfigured
	p.Installed = pkgdb.PackageBinary{}

	if err := pl.Recover(context.Background(), pl.PS); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if p.Status != pkgdb.StatusInstalled {
		t.Fatalf("expected recovery to reach installed, got %s", p.Status)
	}
}
