package trigger

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/maintscript"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Engine drives trigger activation, deferral, and processing against a
// PackageSet (spec §4.9). It is constructed per session so its re-entry
// counters naturally reset, matching spec §5's "re-entry bound per
// session" cancellation model.
type Engine struct {
	Dir   admindir.Dir
	Index *Index
	Bound int // max re-activations per package per session before deferring

	reentries map[string]int
}

// NewEngine returns an Engine with the spec §4.9 default re-entry bound
// unless overridden by the caller's loaded Config.
func NewEngine(dir admindir.Dir, idx *Index, bound int) *Engine {
	if bound <= 0 {
		bound = 1000
	}
	return &Engine{Dir: dir, Index: idx, Bound: bound, reentries: map[string]int{}}
}

// Activate records an explicit trigger activation for target (spec §4.9
// "Activation... explicit (activate <name>)"): name is appended to the
// target package's pending set (deduplicated) and its status transitions
// installed -> triggers-pending.
func (e *Engine) Activate(ps *pkgdb.PackageSet, targetName, arch, name string) error {
	p, ok := ps.Find(targetName, arch)
	if !ok {
		return errors.Errorf("trigger activation for unknown package %s/%s", targetName, arch)
	}
	if !containsStr(p.Triggers.Pending, name) {
		p.Triggers.Pending = append(p.Triggers.Pending, name)
	}
	if p.Status == pkgdb.StatusInstalled {
		p.Status = pkgdb.StatusTriggersPending
	}
	return nil
}

// ActivateFile resolves path against the file-trigger index and activates
// every interested package with path as the trigger argument (spec §4.9
// "by file-trigger: writing a path that matches a interest path prefix
// declared by some installed package activates that package").
func (e *Engine) ActivateFile(ps *pkgdb.PackageSet, path string) error {
	names, err := e.Index.FileTriggerInterested(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		p, ok := findByName(ps, name)
		if !ok {
			continue
		}
		if err := e.Activate(ps, p.Name, p.Arch, path); err != nil {
			return err
		}
	}
	return nil
}

// Await records that awaiter is blocked on target completing its deferred
// triggers (spec §4.9 "Packages that requested to await triggers of
// another package transition to triggers-awaited").
func (e *Engine) Await(ps *pkgdb.PackageSet, awaiterName, awaiterArch, targetName string) error {
	p, ok := ps.Find(awaiterName, awaiterArch)
	if !ok {
		return errors.Errorf("trigger await for unknown package %s/%s", awaiterName, awaiterArch)
	}
	if !containsStr(p.Triggers.Awaited, targetName) {
		p.Triggers.Awaited = append(p.Triggers.Awaited, targetName)
	}
	p.Status = pkgdb.StatusTriggersAwaited
	return nil
}

// Pending returns every package currently in triggers-pending status, the
// work list a --triggers-only pass processes.
func Pending(ps *pkgdb.PackageSet) []*pkgdb.Package {
	var out []*pkgdb.Package
	for _, p := range ps.All() {
		if p.Status == pkgdb.StatusTriggersPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProcessOne runs p's deferred postinst with its accumulated trigger
// arguments, clears its pending set, and transitions it (and any
// now-unblocked awaiters) toward installed (spec §4.9 "Processing").
//
// Re-entry accounting: a package re-activated during the same session's
// run is allowed to be processed again (triggers can mutually activate,
// spec §4.9), but once its count exceeds Bound, ProcessOne refuses and
// reports the package as deferred to the next session rather than risking
// a livelock.
func (e *Engine) ProcessOne(ctx context.Context, ps *pkgdb.PackageSet, p *pkgdb.Package) (Outcome, error) {
	key := p.Name + "/" + p.Arch
	e.reentries[key]++
	if e.reentries[key] > e.Bound {
		return OutcomeDeferred, nil
	}

	names := p.Triggers.Pending
	p.Triggers.Pending = nil

	res, err := maintscript.Run(ctx, maintscript.Invocation{
		Script:   maintscript.PostInst,
		Path:     e.Dir.MaintainerScript(p.Name, string(maintscript.PostInst)),
		Args:     maintscript.Argv(maintscript.ActionTriggered, names...),
		Package:  p.Name,
		Arch:     p.Arch,
		Root:     e.Dir.Root,
		AdminDir: e.Dir.Admin,
	})
	if err != nil {
		return OutcomeFailed, err
	}
	if res.Ran && res.ExitCode != 0 {
		p.EFlag = pkgdb.EFlagReinstreq
		return OutcomeFailed, errors.Errorf("%s postinst triggered exited %d: %s", p.Name, res.ExitCode, res.Stderr)
	}

	p.Status = pkgdb.StatusInstalled
	e.releaseAwaiters(ps, p.Name)
	return OutcomeProcessed, nil
}

// releaseAwaiters drops targetName from every other package's Awaited list
// and, for any awaiter whose Awaited list becomes empty, transitions it
// triggers-awaited -> installed (spec §4.9 "awaiters after their target
// completes").
func (e *Engine) releaseAwaiters(ps *pkgdb.PackageSet, targetName string) {
	for _, p := range ps.All() {
		if p.Status != pkgdb.StatusTriggersAwaited {
			continue
		}
		p.Triggers.Awaited = removeStr(p.Triggers.Awaited, targetName)
		if len(p.Triggers.Awaited) == 0 {
			p.Status = pkgdb.StatusInstalled
		}
	}
}

// Outcome is what ProcessOne accomplished for one package.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeFailed
	OutcomeDeferred
)

func findByName(ps *pkgdb.PackageSet, name string) (*pkgdb.Package, bool) {
	for _, p := range ps.All() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func removeStr(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
