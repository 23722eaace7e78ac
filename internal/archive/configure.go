package archive

import (
	"context"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/maintscript"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Configure drives one unpacked package through spec §4.6's "depends must
// be configured before installed" requirement and spec §4.7 step 11's
// postinst invocation. Callers (internal/scheduler) are responsible for
// ensuring Depends is already satisfied before calling Configure; Configure
// itself only runs the script and updates status.
func (pl *Pipeline) Configure(ctx context.Context, p *pkgdb.Package) error {
	// No distinct "previously configured version" is tracked once Install
	// has already folded the candidate into Installed (spec §4.7 step 9),
	// so a standalone configure pass (as opposed to one chained directly
	// from Install) reports an empty old-version argument, the same as
	// dpkg does for a package with no prior configured version.
	return pl.configureLocked(ctx, p, pkgdb.PackageBinary{})
}

func (pl *Pipeline) configureLocked(ctx context.Context, p *pkgdb.Package, oldVersion pkgdb.PackageBinary) error {
	p.Status = pkgdb.StatusHalfConfigured

	res, err := maintscript.Run(ctx, maintscript.Invocation{
		Script:   maintscript.PostInst,
		Path:     pl.Dir.MaintainerScript(p.Name, string(maintscript.PostInst)),
		Args:     maintscript.Argv(maintscript.ActionConfigure, oldVersion.Version.String()),
		Package:  p.Name,
		Arch:     p.Arch,
		Root:     pl.Dir.Root,
		AdminDir: pl.Dir.Admin,
	})
	if err != nil {
		return errors.Wrapf(err, "running postinst configure for %s", p.Name)
	}
	if res.Ran && res.ExitCode != 0 {
		p.EFlag = pkgdb.EFlagReinstreq
		return errors.Errorf("%s postinst configure failed with exit code %d: %s", p.Name, res.ExitCode, res.Stderr)
	}

	if len(p.Triggers.Awaited) > 0 {
		p.Status = pkgdb.StatusTriggersAwaited
	} else {
		p.Status = pkgdb.StatusInstalled
	}
	p.EFlag = pkgdb.EFlagOk
	return nil
}
