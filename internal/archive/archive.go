// Package archive implements the archive-processing pipeline (spec §4.7):
// staging an incoming package's files onto disk with conflict resolution,
// conffile handling, and crash-safe rename commit.
//
// Reading the archive container format itself (the ar/tar member layout) is
// an explicit out-of-scope external collaborator (spec §1): this package
// only ever consumes an already-decoded Reader yielding (path, mode, uid,
// gid, mtime, content-stream) tuples, exactly the interface spec §1
// describes.
//
// Grounded on the teacher's txn_writer.go (stage-then-atomic-rename-with-
// rollback discipline: SafeWriter.Prepare stages into a scratch area,
// SafeWriter.Write commits, and a failure mid-write rolls the scratch area
// back rather than leaving a half-written target) and internal/fs/fs.go's
// RenameWithFallback/CopyDir/copyFile. Staging happens one entry at a time
// (spec §4.7 step 5 tracks per-file placed-on-disk state for crash
// recovery), so there is no whole-tree copy step here; a front end decoding
// an archive container onto disk before handing it to this package can use
// github.com/karrick/godirwalk for that enumeration (see cmd/pkgctl).
package archive

import (
	"io"
	"os"
	"time"

	"github.com/pkgctl/pkgctl/internal/depgraph"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Entry is one file, directory, or symlink from a decoded package archive,
// the tuple spec §1 names as the archive reader's external contract.
type Entry struct {
	Path       string
	Mode       os.FileMode
	UID, GID   int
	MTime      time.Time
	IsDir      bool
	LinkTarget string // non-empty for symlinks; Content is nil in that case
	Content    io.Reader
}

// Reader yields successive Entry values from a decoded archive, io.EOF
// terminating the stream. Implemented by the (out-of-scope) archive
// container reader; this package only consumes it.
type Reader interface {
	Next() (Entry, error)
}

// Control is the subset of a package's control stanza the archive pipeline
// needs to drive validation, conflict checks, and the database update at
// the end of unpack. It reuses pkgdb.PackageBinary directly rather than
// duplicating the field set.
type Control struct {
	Name    string
	Arch    string
	Binary  pkgdb.PackageBinary
}

// Package bundles one archive's decoded control metadata with its file
// entries - the unit Install operates on.
type Package struct {
	Control Control
	Files   Reader
}

// Verdict is the outcome of one archive operation, the granularity spec §7
// calls "per-operation force-policy decisions" resolve at.
type Verdict int

const (
	VerdictOk Verdict = iota
	VerdictAborted
)

// ConflictError reports step 4's refusal: another installed package already
// owns the path and no Replaces relationship licenses taking it over (spec
// §4.7 step 4, scenario S4).
type ConflictError struct {
	Path        string
	NewPackage  string
	OldPackage  string
}

func (e *ConflictError) Error() string {
	return "trying to overwrite " + e.Path + ", which is also in package " + e.OldPackage + " (no Replaces from " + e.NewPackage + ")"
}

// DependencyError reports step 2's pre-depends validation failure (spec
// §4.7 step 2: "on failure, abort before touching the filesystem").
type DependencyError struct {
	Package string
	Reasons []string
}

func (e *DependencyError) Error() string {
	msg := "pre-depends not satisfied for " + e.Package
	for _, r := range e.Reasons {
		msg += "; " + r
	}
	return msg
}

// checkPreDepends implements spec §4.7 step 2 for the Pre-Depends
// relationship only (Depends is checked by internal/scheduler before the
// pipeline is invoked at all, since Depends need only be satisfied before
// configure, not before unpack).
func checkPreDepends(ctl Control, ps *pkgdb.PackageSet) error {
	res := depgraph.Evaluate(ctl.Binary.PreDepends, ctl.Arch, ps, depgraph.ViewIsToBe)
	if res.Verdict == depgraph.Halt {
		return &DependencyError{Package: ctl.Name, Reasons: res.Reasons}
	}
	return nil
}
