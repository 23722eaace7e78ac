// Package fs provides the filesystem primitives the archive and package
// database layers build their atomic-commit behavior on: rename with a
// cross-device fallback, recursive directory copy, and directory tests.
package fs

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// IsDir reports whether path exists and is a directory.
func IsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// IsSymlink reports whether path exists and is a symbolic link.
func IsSymlink(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

// RenameWithFallback attempts to rename src to dst, falling back to a copy
// plus remove when the two paths are on different devices (the rename
// syscall's EXDEV case, which a same-filesystem admin directory should never
// hit, but a test harness or a bind-mounted root might).
func RenameWithFallback(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return renameByCopy(src, dst)
}

func renameByCopy(src, dst string) error {
	var cerr error
	if dir, _ := IsDir(src); dir {
		cerr = CopyDir(src, dst)
		if cerr != nil {
			cerr = errors.Wrap(cerr, "copying directory failed")
		}
	} else {
		cerr = copyFile(src, dst)
		if cerr != nil {
			cerr = errors.Wrap(cerr, "copying file failed")
		}
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "rename fallback failed: cannot rename %s to %s", src, dst)
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}

var (
	errSrcNotDir = errors.New("source is not a directory")
	errDstExist  = errors.New("destination already exists")
)

// CopyDir recursively copies a directory tree, preserving permissions and
// symlinks. The source must exist and the destination must not.
func CopyDir(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errSrcNotDir
	}
	if _, err := os.Stat(dst); err == nil {
		return errDstExist
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dst, fi.Mode()); err != nil {
		return errors.Wrapf(err, "cannot mkdir %s", dst)
	}

	entries, err := ioutil.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "cannot read directory %s", src)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return errors.Wrap(err, "copying directory failed")
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return errors.Wrap(err, "copying file failed")
		}
	}
	return nil
}

// copyFile copies src to dst, preserving mode and symlinks, fsyncing regular
// file contents before returning so a crash right after cannot leave dst
// looking committed but actually empty.
func copyFile(src, dst string) error {
	if sym, err := IsSymlink(src); err != nil {
		return errors.Wrap(err, "symlink check failed")
	} else if sym {
		return cloneSymlink(src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, si.Mode())
}

func cloneSymlink(src, dst string) error {
	resolved, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(resolved, dst)
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so a concurrent reader never observes a partially-written file
// (used for the status/available flat files and journal entries).
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing temp file %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "fsyncing temp file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temp file %s", tmpName)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return errors.Wrapf(err, "chmod temp file %s", tmpName)
	}
	return RenameWithFallback(tmpName, path)
}
