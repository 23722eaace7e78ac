package archive

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/feedback"
	"github.com/pkgctl/pkgctl/internal/fsnode"
	"github.com/pkgctl/pkgctl/internal/maintscript"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Remove drives a package from installed toward not-installed or
// config-files (spec §3 status machine): it runs prerm/postrm remove,
// unlinks every file this package owns that no other package also owns,
// rmdir's now-empty, now-unreferenced directories, and either keeps (purge
// == false) or deletes (purge == true) declared conffiles.
//
// Essential packages are protected from unforced removal (spec §7
// "Essential-package removal - fatal unless --force-remove-essential").
func (pl *Pipeline) Remove(ctx context.Context, p *pkgdb.Package, purge bool) error {
	if p.Installed.Essential && !pl.Force.Has(admindir.ForceRemoveEssential) {
		pl.note(feedback.KindEssentialProtected, p.Name, p.Arch, "refusing to remove essential package")
		return errors.Errorf("%s is an essential package; not removing without --force-remove-essential", p.Name)
	}

	// Reverse-dependency checking (refusing to remove a package something
	// else still Depends on) happens one level up in internal/scheduler,
	// which has the whole pending batch in view; Remove itself only
	// enforces the Essential guard above.

	if pl.DryRun {
		return nil
	}

	if err := pl.runScript(ctx, maintscript.PreRm, p.Name, p.Arch, maintscript.Argv(maintscript.ActionRemove)); err != nil {
		return err
	}

	p.Status = pkgdb.StatusHalfInstalled
	pl.unlinkOwnedFiles(p, conffileSet(p))

	if err := pl.runScript(ctx, maintscript.PostRm, p.Name, p.Arch, maintscript.Argv(maintscript.ActionRemove)); err != nil {
		return err
	}

	if purge {
		return pl.Purge(ctx, p)
	}

	p.Status = pkgdb.StatusConfigFiles
	return nil
}

// Purge removes a package's declared conffiles (normally preserved across a
// plain Remove) and drops its record entirely once nothing is left to
// remember (spec §3 "not-installed packages are forgotten").
func (pl *Pipeline) Purge(ctx context.Context, p *pkgdb.Package) error {
	for _, c := range p.Installed.Conffiles {
		os.Remove(pl.Dir.ResolvePath(c.Path))
	}
	if err := pl.runScript(ctx, maintscript.PostRm, p.Name, p.Arch, maintscript.Argv(maintscript.ActionPurge)); err != nil {
		return err
	}
	p.Status = pkgdb.StatusNotInstalled
	p.Installed = pkgdb.PackageBinary{}
	p.Want = pkgdb.WantUnknown
	return nil
}

// conffileSet returns the canonicalized set of p's declared conffile paths,
// the files a plain Remove must leave on disk (spec §3: "status=config-files
// ⇒ no files owned, conffile records may remain").
func conffileSet(p *pkgdb.Package) map[string]bool {
	set := make(map[string]bool, len(p.Installed.Conffiles))
	for _, c := range p.Installed.Conffiles {
		set[fsnode.Canonicalize(c.Path)] = true
	}
	return set
}

// unlinkOwnedFiles removes p's ownership from every node it owns and
// unlinks the on-disk path once no other package claims it, except for
// paths in keep (p's own conffiles, which Remove must leave in place and
// only Purge deletes). Directories it leaves empty and unreferenced are
// rmdir'd last (spec §4.7 step 8 applied in reverse for removal, spec §9
// "FlagObsolete").
func (pl *Pipeline) unlinkOwnedFiles(p *pkgdb.Package, keep map[string]bool) {
	var dirs []string
	pl.Table.Walk(func(ref fsnode.Ref, n *fsnode.Node) bool {
		owned := false
		for _, o := range n.Owners {
			if o == p.Name {
				owned = true
			}
		}
		if !owned {
			return true
		}
		pl.Table.RemoveOwner(ref, p.Name)
		remaining := pl.Table.Get(ref).Owners
		if len(remaining) > 0 || keep[n.Path] {
			return true
		}
		full := pl.Dir.ResolvePath(n.Path)
		if fi, err := os.Lstat(full); err == nil {
			if fi.IsDir() {
				dirs = append(dirs, full)
				return true
			}
			os.Remove(full)
		}
		return true
	})

	// Remove directories deepest-first so a parent isn't rmdir'd while it
	// still (transiently) contains an as-yet-unremoved child directory.
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i]) // no-op (ENOTEMPTY, ignored) if still populated
	}
}
