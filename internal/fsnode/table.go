// Package fsnode implements the process-wide filesystem node table: every
// absolute path this engine has ever needed to reason about, interned once
// and referenced everywhere else by a stable arena index rather than a raw
// pointer (spec §3, §4.4, §9 design note).
package fsnode

import (
	"path"
	"strings"

	radix "github.com/armon/go-radix"
)

// Ref is a stable reference to an interned path. It survives table
// compaction and is safe to store in other records (spec §9: "arena-indexed
// cross-references instead of raw pointers").
type Ref int

// NoRef is the zero value, meaning "no node".
const NoRef Ref = -1

// Flag records transient, per-session state about a node that Reset clears
// between operations, as distinct from its permanent identity and owners.
type Flag int

const (
	FlagNone Flag = 0
	// FlagNew marks a node staged by the archive pipeline but not yet
	// committed (spec §4.7 step 3: "stage to .dpkg-new").
	FlagNew Flag = 1 << iota
	// FlagOld marks a node backed up during commit (spec §4.7 step 8:
	// "backup to .dpkg-old").
	FlagOld
	// FlagObsolete marks a node whose owning package no longer lists it,
	// pending removal once no other package claims it.
	FlagObsolete
	// FlagPlacedOnDisk marks a node whose .dpkg-new sibling has been
	// written and fsynced, but not yet renamed into place (spec §4.7 step
	// 5: "fsync the file, mark placed-on-disk on the node").
	FlagPlacedOnDisk
	// FlagNewConffile marks a node staged from a conffile declaration in
	// the incoming archive (spec §3 run-state flags).
	FlagNewConffile
	// FlagOldConffile marks a node that was a conffile of the previously
	// installed version, used to detect obsolete conffiles (spec §4.8).
	FlagOldConffile
)

// Node is one filesystem path and the bookkeeping this engine keeps about
// it: which packages own it, any diversion or stat override in effect, and
// transient staging flags.
type Node struct {
	Path string

	Owners []string // package names that list this path in their contents

	Diversion     *Diversion
	StatOverride  *StatOverride

	Flags Flag
}

// Table is the process-wide arena: nodes are appended and never physically
// removed (their Ref stays valid for the session's lifetime), matching the
// teacher's habit of indexing into a flat slice instead of chasing pointers
// across a mutable graph.
type Table struct {
	nodes []Node
	index *radix.Tree // canonical path -> Ref, for path and longest-prefix lookups
}

// New returns an empty node table.
func New() *Table {
	return &Table{index: radix.New()}
}

// FindFlags controls Find's behavior when a path is not yet interned.
type FindFlags int

const (
	// CreateIfMissing interns a new, ownerless node for the path instead of
	// returning NoRef.
	CreateIfMissing FindFlags = 1 << iota
)

// Find resolves path to its Ref, interning it first if CreateIfMissing is
// set and it is not already present.
func (t *Table) Find(p string, flags FindFlags) (Ref, bool) {
	key := Canonicalize(p)
	if v, ok := t.index.Get(key); ok {
		return v.(Ref), true
	}
	if flags&CreateIfMissing == 0 {
		return NoRef, false
	}
	ref := Ref(len(t.nodes))
	t.nodes = append(t.nodes, Node{Path: key})
	t.index.Insert(key, ref)
	return ref, true
}

// Get dereferences ref. Callers must not retain the returned pointer across
// a call that may grow the underlying slice (Find with CreateIfMissing);
// re-dereference by Ref instead.
func (t *Table) Get(ref Ref) *Node {
	if ref < 0 || int(ref) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[ref]
}

// Canonicalize normalizes p into the absolute, slash-separated, "."/".."
// free form used as the table's lookup key (spec §4.4).
func Canonicalize(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.ReplaceAll(p, `\`, `/`)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Reset clears a node's transient flags while preserving its identity,
// owners, diversion, and stat override — called between scheduler ticks so
// staging state from one operation never leaks into the next (spec §4.4).
func (t *Table) Reset(ref Ref) {
	if n := t.Get(ref); n != nil {
		n.Flags = FlagNone
	}
}

// Len reports how many nodes have been interned.
func (t *Table) Len() int { return len(t.nodes) }

// Walk calls fn for every interned node, in Ref order (ascending, matching
// intern order). Ordering is stable across a session, which the scheduler
// relies on for deterministic conflict-check output.
func (t *Table) Walk(fn func(Ref, *Node) bool) {
	for i := range t.nodes {
		if !fn(Ref(i), &t.nodes[i]) {
			return
		}
	}
}

// WithPrefix returns the Refs of every node whose path has p as a directory
// prefix, used by the trigger engine's file-path-prefix activation (spec
// §4.9) and by diversion resolution.
func (t *Table) WithPrefix(p string) []Ref {
	prefix := Canonicalize(p)
	var refs []Ref
	t.index.WalkPrefix(prefix, func(k string, v interface{}) bool {
		refs = append(refs, v.(Ref))
		return false
	})
	return refs
}

// AddOwner records pkg as an owner of ref's path, if not already present.
func (t *Table) AddOwner(ref Ref, pkg string) {
	n := t.Get(ref)
	if n == nil {
		return
	}
	for _, o := range n.Owners {
		if o == pkg {
			return
		}
	}
	n.Owners = append(n.Owners, pkg)
}

// RemoveOwner drops pkg from ref's owner list.
func (t *Table) RemoveOwner(ref Ref, pkg string) {
	n := t.Get(ref)
	if n == nil {
		return
	}
	out := n.Owners[:0]
	for _, o := range n.Owners {
		if o != pkg {
			out = append(out, o)
		}
	}
	n.Owners = out
}
