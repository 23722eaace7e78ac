package pkgdb

import (
	"sort"

	"github.com/pkgctl/pkgctl/internal/depgraph"
)

// PackageSet is the in-memory indexed collection of package records for one
// admin directory: every package ever mentioned in status or available,
// keyed by (name, architecture) (spec §3).
//
// PackageSet implements depgraph.Lookup by structural typing, so the
// depgraph package never needs to import pkgdb.
type PackageSet struct {
	packages map[Key]*Package
}

// NewPackageSet returns an empty set.
func NewPackageSet() *PackageSet {
	return &PackageSet{packages: make(map[Key]*Package)}
}

// Get returns the package at (name, arch), creating it if absent.
func (ps *PackageSet) Get(name, arch string) *Package {
	key := Key{Name: name, Arch: arch}
	p := ps.packages[key]
	if p == nil {
		p = &Package{Name: name, Arch: arch}
		ps.packages[key] = p
	}
	return p
}

// Find returns the package at (name, arch) without creating it.
func (ps *PackageSet) Find(name, arch string) (*Package, bool) {
	p, ok := ps.packages[Key{Name: name, Arch: arch}]
	return p, ok
}

// All returns every package in the set, in no particular order.
func (ps *PackageSet) All() []*Package {
	out := make([]*Package, 0, len(ps.packages))
	for _, p := range ps.packages {
		out = append(out, p)
	}
	return out
}

func (ps *PackageSet) sortedByKey() []*Package {
	out := ps.All()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Arch < out[j].Arch
	})
	return out
}

// Remove deletes a package record entirely (used once a purge has
// completed and status has settled to not-installed with nothing left to
// remember, spec §3 "not-installed packages are forgotten").
func (ps *PackageSet) Remove(name, arch string) {
	delete(ps.packages, Key{Name: name, Arch: arch})
}

// Match implements depgraph.Lookup: it resolves name either as a real
// package (by exact name match across every architecture) or as a virtual
// name satisfied through some package's Provides field, under the
// requested view.
func (ps *PackageSet) Match(name string, view depgraph.View) []depgraph.Match {
	var matches []depgraph.Match
	for _, p := range ps.packages {
		binary, ok := ps.binaryForView(p, view)
		if !ok {
			continue
		}
		if p.Name == name {
			matches = append(matches, depgraph.Match{
				Name:     p.Name,
				Arch:     p.Arch,
				Version:  binary.Version,
				Unpacked: p.Status == StatusUnpacked,
			})
			continue
		}
		for _, disj := range binary.Provides {
			for _, atom := range disj {
				if atom.Name == name {
					matches = append(matches, depgraph.Match{
						Name:    p.Name,
						Arch:    p.Arch,
						Virtual: true,
					})
				}
			}
		}
	}
	return matches
}

// binaryForView picks which of a package's binary records is visible under
// view, and whether the package counts as present at all in that view.
func (ps *PackageSet) binaryForView(p *Package, view depgraph.View) (PackageBinary, bool) {
	switch view {
	case depgraph.ViewAvailable:
		return p.Available, !p.Available.IsZero()
	default: // ViewInstalled, ViewIsToBe
		present := p.Status.HasCompleteMetadata() || p.Status == StatusUnpacked
		return p.Installed, present
	}
}
