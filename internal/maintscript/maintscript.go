// Package maintscript invokes a package's maintainer scripts (preinst,
// postinst, prerm, postrm) as direct child processes with argv preserved -
// never through a shell - per spec §6's contract and the explicit rejection
// of shell-joined argv in spec §9's design notes ("the embedded runcmd/
// fixedCmd pattern is almost certainly a bug").
//
// Grounded on the teacher's internal/gps/cmd.go, which invokes git and other
// VCS tools the same way: an *exec.Cmd built directly from a string slice,
// gated by a context-scoped semaphore rather than unbounded concurrency.
package maintscript

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// Script names the four maintainer scripts spec §6 and §4.7 steps 6-11
// invoke by name.
type Script string

const (
	PreInst  Script = "preinst"
	PostInst Script = "postinst"
	PreRm    Script = "prerm"
	PostRm   Script = "postrm"
)

// Invocation is one maintainer-script call: which script, which argv (the
// action word plus its arguments, e.g. "configure", "<old-version>"), and
// the package/arch context spec §6 requires in the environment.
type Invocation struct {
	Script   Script
	Path     string // info/<pkg>.<script>, the on-disk script to run
	Args     []string
	Package  string
	Arch     string
	Root     string // DPKG_ROOT
	AdminDir string // DPKG_ADMINDIR
}

// env builds the process environment spec §6 names: the maintainer-script
// context variables layered on top of the engine's own inherited
// environment (locale vars, SHELL, COLUMNS flow through unchanged).
func (inv Invocation) env() []string {
	base := os.Environ()
	return append(base,
		"DPKG_MAINTSCRIPT_PACKAGE="+inv.Package,
		"DPKG_MAINTSCRIPT_ARCH="+inv.Arch,
		"DPKG_MAINTSCRIPT_NAME="+string(inv.Script),
		"DPKG_ADMINDIR="+inv.AdminDir,
		"DPKG_ROOT="+inv.Root,
	)
}

// ctxKey is the context key a Limiter installs a semaphore channel under,
// the same pattern as the teacher's subProcsSem (internal/gps/cmd.go).
type ctxKey int

const limiterKey ctxKey = 0

type sem chan struct{}

// WithLimit returns a copy of ctx carrying a semaphore that bounds how many
// maintainer scripts Run will execute concurrently. Since spec §5 mandates
// the engine block synchronously on each script (no internal parallelism
// across packages), n is normally 1; the mechanism is kept general because
// the teacher's own CtxWithCmdLimit is, and a front end driving several
// independent admin directories in one process can use a larger value.
func WithLimit(ctx context.Context, n int) (context.Context, error) {
	if n < 1 {
		return nil, errors.Errorf("maintscript: concurrency limit must be positive, got %d", n)
	}
	return context.WithValue(ctx, limiterKey, make(sem, n)), nil
}

func acquire(ctx context.Context) (release func(), err error) {
	v := ctx.Value(limiterKey)
	if v == nil {
		return func() {}, nil
	}
	s := v.(sem)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result is what Run reports about one completed (or skipped) invocation.
type Result struct {
	ExitCode int
	Ran      bool // false when Path did not exist - not every package ships every script
	Stderr   string
}

// Run executes inv's script via a direct execve-equivalent (exec.Cmd with
// Args set, no shell interposed), blocking until it exits (spec §5 "the
// engine blocks on each script's exit synchronously").
//
// A missing script file is not an error: not every package ships every
// maintainer script, and the caller (internal/archive, internal/trigger)
// is expected to treat Result.Ran == false as "nothing to do" rather than
// a failure.
func Run(ctx context.Context, inv Invocation) (Result, error) {
	if _, err := os.Stat(inv.Path); err != nil {
		if os.IsNotExist(err) {
			return Result{Ran: false}, nil
		}
		return Result{}, errors.Wrapf(err, "statting maintainer script %s", inv.Path)
	}

	release, err := acquire(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "waiting for maintainer-script concurrency slot")
	}
	defer release()

	abs, err := filepath.Abs(inv.Path)
	if err != nil {
		abs = inv.Path
	}

	cmd := exec.CommandContext(ctx, abs, inv.Args...)
	cmd.Env = inv.env()
	cmd.Dir = inv.Root

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	runErr := cmd.Run()
	res := Result{Ran: true, Stderr: stderr.String()}
	if runErr == nil {
		res.ExitCode = 0
		return res, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, errors.Wrapf(runErr, "running maintainer script %s", abs)
}

// Argv builds the action-plus-arguments argv for the well-known actions
// spec §6 enumerates, so callers (internal/archive, internal/trigger) pass
// a typed action instead of hand-assembling string slices.
func Argv(action string, args ...string) []string {
	return append([]string{action}, args...)
}

const (
	ActionConfigure      = "configure"
	ActionTriggered      = "triggered"
	ActionUpgrade        = "upgrade"
	ActionInstall        = "install"
	ActionRemove         = "remove"
	ActionPurge          = "purge"
	ActionAbortUpgrade   = "abort-upgrade"
	ActionAbortInstall   = "abort-install"
	ActionAbortRemove    = "abort-remove"
	ActionFailedUpgrade  = "failed-upgrade"
)
