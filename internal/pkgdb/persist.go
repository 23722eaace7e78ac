package pkgdb

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/control"
	internalfs "github.com/pkgctl/pkgctl/internal/fs"
)

const (
	statusFileName    = "status"
	availableFileName = "available"
	updatesDirName    = "updates"
)

// Store is the on-disk persistence layer for a PackageSet: the flat status
// and available files, plus the updates/NNNN journal used to make a session
// recoverable after a crash between a status write and its fsync (spec §4.3,
// testable property "journal merge idempotency").
//
// It follows the stage-to-temp-then-rename commit discipline used
// throughout this engine (see internal/archive), rather than rewriting
// status/available in place.
type Store struct {
	AdminDir string
}

// Load reads status, available, and any pending journal entries (oldest
// first) into a fresh PackageSet, applying journal entries on top of status
// exactly as a crash-recovered session would (spec §4.3).
func (s *Store) Load() (*PackageSet, error) {
	ps := NewPackageSet()

	if err := s.loadFile(filepath.Join(s.AdminDir, statusFileName), ps, false); err != nil {
		return nil, errors.Wrap(err, "loading status file")
	}
	if err := s.loadFile(filepath.Join(s.AdminDir, availableFileName), ps, true); err != nil {
		return nil, errors.Wrap(err, "loading available file")
	}

	entries, err := s.pendingUpdates()
	if err != nil {
		return nil, errors.Wrap(err, "listing updates journal")
	}
	for _, entry := range entries {
		if err := s.loadFile(entry, ps, false); err != nil {
			return nil, errors.Wrapf(err, "replaying journal entry %s", entry)
		}
	}
	return ps, nil
}

func (s *Store) loadFile(path string, ps *PackageSet, isAvailable bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := control.NewReader(bufio.NewReader(f))
	for {
		st, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name, _ := st.Get("Package")
		arch, _ := st.Get("Architecture")
		key := Key{Name: strings.ToLower(strings.TrimSpace(name)), Arch: strings.TrimSpace(arch)}
		p := ps.packages[key]
		if p == nil {
			p = &Package{Name: key.Name, Arch: key.Arch}
			ps.packages[key] = p
		}
		if err := DecodeStanza(st, p, isAvailable); err != nil {
			return err
		}
	}
}

// pendingUpdates returns the updates/NNNN journal files in ascending
// numeric order, the order a startup merge must apply them in.
func (s *Store) pendingUpdates() ([]string, error) {
	dir := filepath.Join(s.AdminDir, updatesDirName)
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	var nums []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue // not a journal entry; ignore stray files
		}
		nums = append(nums, numbered{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i].n < nums[j].n })

	paths := make([]string, len(nums))
	for i, n := range nums {
		paths[i] = n.path
	}
	return paths, nil
}

// WriteJournalEntry appends one journal file recording a single package's
// post-operation status, instead of rewriting the whole status file. This
// is the crash-safety unit: if the process dies before MergeJournal runs
// again, the next session's Load replays it (spec §4.3).
func (s *Store) WriteJournalEntry(p *Package) error {
	dir := filepath.Join(s.AdminDir, updatesDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	nums, err := s.pendingUpdates()
	if err != nil {
		return err
	}
	next := 1
	if len(nums) > 0 {
		last := filepath.Base(nums[len(nums)-1])
		if n, err := strconv.Atoi(last); err == nil {
			next = n + 1
		}
	}

	var buf bytes.Buffer
	st := EncodeStanza(p, false)
	if err := control.Format(&buf, []control.Stanza{st}); err != nil {
		return errors.Wrap(err, "formatting journal stanza")
	}

	path := filepath.Join(dir, strconv.Itoa(next))
	return internalfs.WriteFileAtomic(path, buf.Bytes(), 0644)
}

// MergeJournal folds every pending updates/NNNN entry into status, via a
// single staged rewrite, then removes the journal files. It is idempotent:
// running it twice with no intervening WriteJournalEntry calls is a no-op
// on the second run (testable property "journal merge idempotency").
func (s *Store) MergeJournal(ps *PackageSet) error {
	if err := s.writeStatus(ps); err != nil {
		return errors.Wrap(err, "rewriting status file")
	}
	entries, err := s.pendingUpdates()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Remove(entry); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing merged journal entry %s", entry)
		}
	}
	return nil
}

func (s *Store) writeStatus(ps *PackageSet) error {
	var buf bytes.Buffer
	stanzas := make([]control.Stanza, 0, len(ps.packages))
	for _, p := range ps.sortedByKey() {
		stanzas = append(stanzas, EncodeStanza(p, false))
	}
	if err := control.Format(&buf, stanzas); err != nil {
		return err
	}
	return internalfs.WriteFileAtomic(filepath.Join(s.AdminDir, statusFileName), buf.Bytes(), 0644)
}

// WriteAvailable rewrites the available file in full; unlike status it has
// no journal, since it is only ever refreshed wholesale from a new package
// feed rather than incrementally during a session (spec §4.3).
func (s *Store) WriteAvailable(ps *PackageSet) error {
	var buf bytes.Buffer
	stanzas := make([]control.Stanza, 0, len(ps.packages))
	for _, p := range ps.sortedByKey() {
		if p.Available.IsZero() {
			continue
		}
		stanzas = append(stanzas, EncodeStanza(p, true))
	}
	if err := control.Format(&buf, stanzas); err != nil {
		return err
	}
	return internalfs.WriteFileAtomic(filepath.Join(s.AdminDir, availableFileName), buf.Bytes(), 0644)
}
