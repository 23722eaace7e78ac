package fsnode

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// RebuildFromInfoDir reconstructs a node table's ownership index from the
// per-package info/<pkg>.list files in admindir/info, the crash-recovery
// path described in spec §4.4 ("rebuild the node table from the owning
// packages' recorded file lists instead of trusting any cached index").
//
// Walking admindir/info is done through godirwalk rather than filepath.Walk
// for the lower per-entry allocation cost, since a large info directory can
// hold thousands of list files.
//
// A missing infoDir (a fresh admin directory, spec §9 scenario S1) is not
// an error - it means no packages are known yet, the same way
// pkgdb.Store.loadFile tolerates a missing status file.
func RebuildFromInfoDir(t *Table, infoDir string) error {
	if _, err := os.Stat(infoDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "statting %s", infoDir)
	}
	return godirwalk.Walk(infoDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(osPathname, ".list") {
				return nil
			}
			pkg := strings.TrimSuffix(filepath.Base(osPathname), ".list")
			return loadListFile(t, pkg, osPathname)
		},
	})
}

func loadListFile(t *Table, pkg, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ref, _ := t.Find(line, CreateIfMissing)
		t.AddOwner(ref, pkg)
	}
	return sc.Err()
}
