package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/archive"
	"github.com/pkgctl/pkgctl/internal/control"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// loadStagedPackage builds an archive.Package from a directory this front
// end has already decoded an archive into: dir/control holds the control
// stanza, and dir/data is the file tree to install rooted at "/". Decoding
// the archive container itself (the ar/tar member layout) is the declared
// out-of-scope external collaborator (spec §1); this is the adapter a real
// front end would write to hand the engine already-extracted content, kept
// here at the cmd layer rather than inside internal/archive so that
// boundary stays explicit.
func loadStagedPackage(dir string) (archive.Package, error) {
	ctl, err := loadControl(filepath.Join(dir, "control"))
	if err != nil {
		return archive.Package{}, err
	}

	dataRoot := filepath.Join(dir, "data")
	entries, err := collectEntries(dataRoot)
	if err != nil {
		return archive.Package{}, err
	}

	return archive.Package{Control: ctl, Files: &sliceReader{entries: entries}}, nil
}

func loadControl(path string) (archive.Control, error) {
	f, err := os.Open(path)
	if err != nil {
		return archive.Control{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	r := control.NewReader(f)
	st, err := r.Next()
	if err != nil {
		return archive.Control{}, errors.Wrapf(err, "reading control stanza from %s", path)
	}

	var p pkgdb.Package
	if err := pkgdb.DecodeStanza(st, &p, true); err != nil {
		return archive.Control{}, errors.Wrapf(err, "decoding control stanza from %s", path)
	}
	return archive.Control{Name: p.Name, Arch: p.Arch, Binary: p.Available}, nil
}

// collectEntries walks root (the decoded package's data tree) and builds
// one archive.Entry per file, directory, and symlink, with Path rewritten
// relative to root so it reads as an absolute install-root path the way a
// real archive member name would (spec §1's (path, mode, uid, gid, mtime,
// content) tuple).
func collectEntries(root string) ([]archive.Entry, error) {
	var entries []archive.Entry
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return errors.Wrapf(err, "relativizing %s", osPathname)
			}
			entryPath := "/" + filepath.ToSlash(rel)

			lst, err := os.Lstat(osPathname)
			if err != nil {
				return errors.Wrapf(err, "statting %s", osPathname)
			}

			entry := archive.Entry{
				Path:  entryPath,
				Mode:  lst.Mode(),
				MTime: lst.ModTime(),
				IsDir: lst.IsDir(),
			}
			if uid, gid, ok := numericOwner(lst); ok {
				entry.UID, entry.GID = uid, gid
			}

			if lst.Mode()&os.ModeSymlink != 0 {
				target, err := os.Readlink(osPathname)
				if err != nil {
					return errors.Wrapf(err, "reading symlink %s", osPathname)
				}
				entry.LinkTarget = target
			} else if !lst.IsDir() {
				// Stays open until Install reads it during its staging pass,
				// well after this walk returns; a one-shot CLI invocation
				// lets the process exit reclaim the descriptor rather than
				// closing it here, before it has been read.
				content, err := os.Open(osPathname)
				if err != nil {
					return errors.Wrapf(err, "opening %s", osPathname)
				}
				entry.Content = content
			}

			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	// Directories before the files they contain, shallowest first, so
	// Install's staging pass can MkdirAll a parent before a child needs it.
	sort.Slice(entries, func(i, j int) bool {
		return strings.Count(entries[i].Path, "/") < strings.Count(entries[j].Path, "/")
	})
	return entries, nil
}

func numericOwner(fi os.FileInfo) (uid, gid int, ok bool) {
	stat, isSys := fi.Sys().(*syscall.Stat_t)
	if !isSys {
		return 0, 0, false
	}
	return int(stat.Uid), int(stat.Gid), true
}

// sliceReader adapts a pre-collected []archive.Entry to archive.Reader.
type sliceReader struct {
	entries []archive.Entry
	i       int
}

func (r *sliceReader) Next() (archive.Entry, error) {
	if r.i >= len(r.entries) {
		return archive.Entry{}, io.EOF
	}
	e := r.entries[r.i]
	r.i++
	return e, nil
}
