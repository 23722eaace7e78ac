// Package depgraph models dependency expressions — and-of-or relationship
// expressions over (package name, architecture qualifier, version
// constraint) atoms — and evaluates them against a package lookup view
// (spec §4.5).
package depgraph

import (
	"fmt"
	"strings"

	"github.com/pkgctl/pkgctl/internal/version"
)

// Op is a version-constraint relational operator.
type Op int

const (
	// OpNone means the atom carries no version constraint — any version matches.
	OpNone Op = iota
	OpLT          // <<
	OpLE          // <=
	OpEQ          // =
	OpGE          // >=
	OpGT          // >>
)

func (o Op) String() string {
	switch o {
	case OpLT:
		return "<<"
	case OpLE:
		return "<="
	case OpEQ:
		return "="
	case OpGE:
		return ">="
	case OpGT:
		return ">>"
	default:
		return ""
	}
}

// Atom is a single dependency term: a package name, an optional
// architecture qualifier, an optional version constraint, and an optional
// architecture restriction list (the set of architectures this atom applies
// to; empty means "all").
type Atom struct {
	Name          string
	ArchQualifier string // e.g. ":any", ":native", or empty
	Op            Op
	Version       version.Version
	ArchRestrict  []string
}

// Matches reports whether a candidate (version, architecture) satisfies the
// atom's version constraint. Name/provides matching happens one level up in
// Checker, since it requires the package-set view.
func (a Atom) Matches(v version.Version) bool {
	if a.Op == OpNone {
		return true
	}
	c := version.Compare(v, a.Version)
	switch a.Op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpEQ:
		return c == 0
	case OpGE:
		return c >= 0
	case OpGT:
		return c > 0
	default:
		return true
	}
}

// ArchAllowed reports whether arch is permitted by the atom's restriction
// list (an empty list allows every architecture).
func (a Atom) ArchAllowed(arch string) bool {
	if len(a.ArchRestrict) == 0 {
		return true
	}
	for _, r := range a.ArchRestrict {
		neg := strings.HasPrefix(r, "!")
		name := strings.TrimPrefix(r, "!")
		if name == arch {
			return !neg
		}
	}
	// If every entry was a negation and none matched, arch is allowed.
	allNeg := true
	for _, r := range a.ArchRestrict {
		if !strings.HasPrefix(r, "!") {
			allNeg = false
			break
		}
	}
	return allNeg
}

func (a Atom) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	if a.ArchQualifier != "" {
		b.WriteString(a.ArchQualifier)
	}
	if a.Op != OpNone {
		fmt.Fprintf(&b, " (%s %s)", a.Op, a.Version)
	}
	for _, r := range a.ArchRestrict {
		fmt.Fprintf(&b, " [%s]", r)
	}
	return b.String()
}

// Disjunction is an "or" group of Atoms: satisfied if any one atom is.
type Disjunction []Atom

func (d Disjunction) String() string {
	parts := make([]string, len(d))
	for i, a := range d {
		parts[i] = a.String()
	}
	return strings.Join(parts, " | ")
}

// Expression is an "and of or" relationship expression: a conjunction of
// Disjunctions, satisfied iff every disjunction is satisfied.
type Expression []Disjunction

func (e Expression) String() string {
	parts := make([]string, len(e))
	for i, d := range e {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
