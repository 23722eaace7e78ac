package depgraph

import (
	"github.com/pkgctl/pkgctl/internal/version"
)

// View selects which slice of package state an Expression is evaluated
// against (spec §4.5: "installed vs available vs by-istobe").
type View int

const (
	// ViewInstalled considers only currently-installed package state.
	ViewInstalled View = iota
	// ViewAvailable considers the available (candidate) package state.
	ViewAvailable
	// ViewIsToBe considers installed state as it will be after pending
	// scheduler operations are applied, letting the checker return Defer
	// instead of Halt for atoms that a not-yet-processed operation would
	// satisfy.
	ViewIsToBe
)

// Match is one real or virtual package the Lookup found for an atom's name.
type Match struct {
	Name     string // the concrete package name (may differ from the atom's virtual name)
	Arch     string
	Version  version.Version
	Virtual  bool // satisfied via a Provides declaration rather than by name
	Unpacked bool // installed but not yet configured (relevant to Pre-Depends)
}

// Lookup resolves a package or provider name to the matches visible under a
// View. Implemented by the package database (internal/pkgdb); kept as an
// interface here so depgraph never imports pkgdb.
type Lookup interface {
	Match(name string, view View) []Match
}

// Verdict is the checker's three-way result for one Expression (spec §4.5).
type Verdict int

const (
	// Ok means every atom is currently satisfied.
	Ok Verdict = iota
	// Defer means the expression is not currently satisfied, but may become
	// so once pending scheduler operations complete.
	Defer
	// Halt means the expression is permanently unsatisfiable given the
	// current plan.
	Halt
)

func (v Verdict) String() string {
	switch v {
	case Ok:
		return "ok"
	case Defer:
		return "defer"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

// Result carries a Verdict plus the accumulated human-readable reasons that
// produced it, in evaluation order.
type Result struct {
	Verdict Verdict
	Reasons []string
}

func (r *Result) note(s string) { r.Reasons = append(r.Reasons, s) }

// Evaluate checks expr against lookup for a candidate installed on arch,
// under view. A conjunction succeeds iff every disjunction succeeds; a
// disjunction succeeds if any atom within it is satisfied.
func Evaluate(expr Expression, arch string, lookup Lookup, view View) Result {
	res := Result{Verdict: Ok}
	for _, disj := range expr {
		switch evaluateDisjunction(disj, arch, lookup, view, &res) {
		case Ok:
			// keep scanning the remaining disjunctions
		case Defer:
			if res.Verdict == Ok {
				res.Verdict = Defer
			}
		case Halt:
			res.Verdict = Halt
			return res
		}
	}
	return res
}

func evaluateDisjunction(d Disjunction, arch string, lookup Lookup, view View, res *Result) Verdict {
	sawDefer := false
	for _, atom := range d {
		if !atom.ArchAllowed(arch) {
			continue
		}
		matches := lookup.Match(atom.Name, view)
		for _, m := range matches {
			if !atom.Matches(m.Version) {
				continue
			}
			res.note(atom.Name + " satisfied by " + m.Name + " " + m.Version.String())
			return Ok
		}
		if view == ViewIsToBe && len(matches) == 0 {
			sawDefer = true
		}
	}
	res.note("unsatisfied: " + d.String())
	if sawDefer {
		return Defer
	}
	return Halt
}

// CheckBreaksConflicts evaluates the negation used for Breaks/Conflicts
// checks (spec §4.5): a conflict atom forbids coexistence with any matching
// package; a break atom forbids coexistence only while the breaking package
// is fully installed (configured is true for fully-installed candidates).
func CheckBreaksConflicts(expr Expression, arch string, lookup Lookup, isBreaks bool, configured func(Match) bool) Result {
	res := Result{Verdict: Ok}
	for _, disj := range expr {
		for _, atom := range disj {
			if !atom.ArchAllowed(arch) {
				continue
			}
			for _, m := range lookup.Match(atom.Name, ViewInstalled) {
				if !atom.Matches(m.Version) {
					continue
				}
				if isBreaks && configured != nil && !configured(m) {
					continue
				}
				res.Verdict = Halt
				res.note("forbidden coexistence with " + m.Name + " " + m.Version.String())
				return res
			}
		}
	}
	return res
}
