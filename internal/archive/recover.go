package archive

import (
	"context"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/maintscript"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Recover implements the crash-recovery discipline of spec §4.7: every step
// between the first irreversible on-disk mutation and the status commit is
// protected by re-running the appropriate script on the next startup, so a
// package never stays stuck in half-installed or half-configured (scenario
// S6: kill between .dpkg-new rename and status commit, restart converges).
//
// Callers run Recover over the whole PackageSet once, before accepting any
// new install/remove request, mirroring dpkg's own "process --configure -a"
// style recovery pass.
func (pl *Pipeline) Recover(ctx context.Context, ps *pkgdb.PackageSet) error {
	for _, p := range ps.All() {
		if err := pl.recoverOne(ctx, p); err != nil {
			return errors.Wrapf(err, "recovering %s", p.Name)
		}
	}
	return nil
}

func (pl *Pipeline) recoverOne(ctx context.Context, p *pkgdb.Package) error {
	switch p.Status {
	case pkgdb.StatusHalfInstalled:
		// Unpack was interrupted after files were staged or committed but
		// before configure ran. We cannot tell from status alone whether
		// postinst configure would leave the package usable, so converge
		// to the same defined, inert state dpkg itself falls back to: run
		// the abort-upgrade/abort-install hook if one exists and mark the
		// package as requiring attention rather than silently calling it
		// installed.
		action := maintscript.ActionAbortInstall
		if !p.Installed.IsZero() && !p.Available.IsZero() {
			action = maintscript.ActionAbortUpgrade
		}
		res, err := maintscript.Run(ctx, maintscript.Invocation{
			Script:   maintscript.PostInst,
			Path:     pl.Dir.MaintainerScript(p.Name, string(maintscript.PostInst)),
			Args:     maintscript.Argv(action, p.Installed.Version.String()),
			Package:  p.Name,
			Arch:     p.Arch,
			Root:     pl.Dir.Root,
			AdminDir: pl.Dir.Admin,
		})
		if err != nil {
			return err
		}
		if res.Ran && res.ExitCode == 0 {
			p.Status = pkgdb.StatusHalfConfigured
			return pl.configureLocked(ctx, p, pkgdb.PackageBinary{})
		}
		p.EFlag = pkgdb.EFlagReinstreq
		return nil

	case pkgdb.StatusHalfConfigured:
		// postinst configure itself was interrupted mid-run; re-running it
		// is the documented recovery path (spec §4.7: "re-runs the
		// appropriate script ... to reach a defined state").
		return pl.configureLocked(ctx, p, pkgdb.PackageBinary{})

	default:
		return nil
	}
}
