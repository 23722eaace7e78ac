package main

import (
	"github.com/pkgctl/pkgctl"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// findByName resolves a bare package name (no architecture qualifier, the
// form every subcommand's positional args take) against the session's
// package set. Multi-arch disambiguation by "name:arch" is left to a future
// front-end flag; this returns the first match, which is unambiguous on the
// single-architecture admin directories this tool is exercised against.
func findByName(sess *pkgctl.Session, name string) (*pkgdb.Package, bool) {
	for _, p := range sess.PS.All() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
