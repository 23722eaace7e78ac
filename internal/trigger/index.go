// Package trigger implements the trigger engine (spec §4.9): explicit and
// file-path-based activation, deferred processing of a target package's
// accumulated trigger names, and a bounded re-entry count that prevents
// mutually-activating triggers from livelocking a session.
//
// The path-prefix and trigger-name interest indexes are rebuilt fresh every
// session into an embedded BoltDB file rather than trusted as a persistent
// cache across runs, the same "rebuild from authoritative state, don't
// trust a stale index" discipline the teacher applies to its own BoltDB
// source cache in internal/gps/source_cache_bolt.go - there it is revision
// metadata keyed by project; here it is package names keyed by trigger name
// or path prefix. Composite keys (name + insertion sequence, so a trigger
// interested in the same name from two packages does not collide) are built
// with jmank88/nuts, mirroring the teacher's own bolt+nuts pairing.
package trigger

import (
	"bytes"
	"sort"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

var (
	bucketTriggerName = []byte("trigger-interest")
	bucketFilePrefix   = []byte("file-trigger-interest")
)

// Index is a rebuilt-each-session BoltDB-backed map from trigger name (or
// file-path prefix) to the set of packages interested in it (spec §3
// "global trigger-interest index" / "file-trigger index").
type Index struct {
	db *bolt.DB
}

// OpenIndex opens (creating if necessary) the BoltDB file backing Index.
// Callers must call Rebuild before querying it in a new session: the file
// may be stale or, on first run, freshly created and empty.
func OpenIndex(path string) (*Index, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening trigger index %s", path)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying BoltDB handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Rebuild wipes and repopulates the index from every installed package's
// declared trigger interests, the crash-recovery-safe equivalent of reading
// triggers/File and each package's info/<pkg>.triggers interest lines fresh
// every session instead of incrementally patching a cache (spec §4.9).
func (idx *Index) Rebuild(ps *pkgdb.PackageSet) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketTriggerName, bucketFilePrefix} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		nameBucket := tx.Bucket(bucketTriggerName)
		prefixBucket := tx.Bucket(bucketFilePrefix)

		// Deterministic order so composite-key sequence numbers (and thus
		// iteration order for equal keys) are stable across rebuilds.
		pkgs := ps.All()
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Key().Name < pkgs[j].Key().Name })

		seq := 0
		for _, p := range pkgs {
			if !p.Status.HasCompleteMetadata() {
				continue
			}
			for _, name := range p.Installed.TriggersInterest {
				key, err := compositeKey(name, seq)
				if err != nil {
					return err
				}
				seq++
				if err := nameBucket.Put(key, []byte(p.Name)); err != nil {
					return err
				}
			}
			for _, prefix := range p.Installed.TriggerFilePrefixes {
				key, err := compositeKey(prefix, seq)
				if err != nil {
					return err
				}
				seq++
				if err := prefixBucket.Put(key, []byte(p.Name)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// compositeKey builds a "<name>\x00<seq>" bolt key, the seq portion encoded
// as a fixed-width big-endian nuts.Key so that keys sharing the same name
// sort contiguously in ascending insertion order (letting InterestedIn/
// FileTriggerInterested prefix-scan with bolt's Cursor) while staying
// unique per (name, package) pair.
func compositeKey(name string, seq int) ([]byte, error) {
	enc := make(nuts.Key, nuts.KeyLen(uint64(seq)))
	enc.Put(uint64(seq))
	key := make([]byte, 0, len(name)+1+len(enc))
	key = append(key, name...)
	key = append(key, 0)
	key = append(key, enc...)
	return key, nil
}

// InterestedIn returns the packages that declared an explicit interest in
// trigger name.
func (idx *Index) InterestedIn(name string) ([]string, error) {
	return idx.scan(bucketTriggerName, name, true)
}

// FileTriggerInterested returns the packages watching any prefix of path -
// every declared prefix that path starts under, not just an exact match
// (spec §4.9 "writing a path that matches a interest path prefix").
func (idx *Index) FileTriggerInterested(path string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	err := idx.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFilePrefix)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			prefix := prefixOf(k)
			if prefixMatches(prefix, path) && !seen[string(v)] {
				seen[string(v)] = true
				out = append(out, string(v))
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying file-trigger index")
	}
	sort.Strings(out)
	return out, nil
}

func (idx *Index) scan(bucket []byte, exactName string, exact bool) ([]string, error) {
	var out []string
	prefix := append([]byte(exactName), 0)
	err := idx.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, string(v))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "querying trigger index for %q", exactName)
	}
	sort.Strings(out)
	return out, nil
}

func prefixOf(key []byte) string {
	idx := bytes.IndexByte(key, 0)
	if idx < 0 {
		return string(key)
	}
	return string(key[:idx])
}

func prefixMatches(prefix, path string) bool {
	if prefix == path {
		return true
	}
	if len(path) <= len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix && (prefix == "/" || path[len(prefix)] == '/')
}
