package archive

import (
	"context"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/conffile"
	"github.com/pkgctl/pkgctl/internal/depgraph"
	"github.com/pkgctl/pkgctl/internal/feedback"
	internalfs "github.com/pkgctl/pkgctl/internal/fs"
	"github.com/pkgctl/pkgctl/internal/fsnode"
	"github.com/pkgctl/pkgctl/internal/maintscript"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

// Pipeline holds the session-scoped collaborators the archive pipeline
// needs: the filesystem node table and package set it mutates, the admin
// directory layout, the standing force/conffile policy, and a feedback log
// to explain its decisions (spec §4.7, threaded as a session context per
// spec §9 design note rather than process-global singletons).
type Pipeline struct {
	Dir        admindir.Dir
	Table      *fsnode.Table
	PS         *pkgdb.PackageSet
	Force      admindir.Force
	ConfPolicy conffile.Policy
	Feedback   *feedback.Log
	DryRun     bool
}

// stagedFile is one entry that made it through conflict detection and got
// written to its .dpkg-new sibling, carried from Stage through Commit.
type stagedFile struct {
	entry      Entry
	ref        fsnode.Ref
	target     string // resolved, diversion-applied final path
	isConffile bool
}

// Install drives one archive through spec §4.7's eleven steps. configure
// controls whether step 11's postinst configure runs immediately (an
// "unpack and configure" operation) or is left for a later scheduler pass
// (a plain "unpack", spec §4.6 ordering).
func (pl *Pipeline) Install(ctx context.Context, pkg Package, configure bool) error {
	ctl := pkg.Control
	old, hadOld := pl.PS.Find(ctl.Name, ctl.Arch)
	oldVersion := pkgdb.PackageBinary{}
	if hadOld {
		oldVersion = old.Installed
	}

	// Step 2: validate pre-depends before touching the filesystem at all.
	if err := checkPreDepends(ctl, pl.PS); err != nil {
		if !pl.Force.Has(admindir.ForceDepends) {
			pl.note(feedback.KindDependencyHalted, ctl.Name, ctl.Arch, err.Error())
			return err
		}
		pl.note(feedback.KindDependencyForced, ctl.Name, ctl.Arch, err.Error())
	}

	// Step 3 + 4: enumerate the file list and detect ownership conflicts
	// before any staging happens.
	staged, dropFrom, err := pl.enumerateAndCheck(ctl, pkg.Files)
	if err != nil {
		return err
	}

	if pl.DryRun {
		return nil
	}

	// Step 5: stage every entry to its .dpkg-new sibling.
	if err := pl.stage(ctl, staged); err != nil {
		pl.rollbackStaged(staged)
		return err
	}

	// Step 6: pre-removal script of the old package, if upgrading.
	if hadOld && !oldVersion.IsZero() {
		action := maintscript.ActionUpgrade
		if old.Status == pkgdb.StatusNotInstalled || old.Status == pkgdb.StatusConfigFiles {
			action = maintscript.ActionInstall
		}
		if err := pl.runScript(ctx, maintscript.PreRm, old.Name, old.Arch, maintscript.Argv(action, ctl.Binary.Version.String())); err != nil {
			pl.rollbackStaged(staged)
			return err
		}
	}

	// Step 7: pre-install script of the new package.
	preinstArg := maintscript.ActionInstall
	if hadOld && !oldVersion.IsZero() {
		preinstArg = maintscript.ActionUpgrade
	}
	if err := pl.runScript(ctx, maintscript.PreInst, ctl.Name, ctl.Arch, maintscript.Argv(preinstArg, oldVersion.Version.String())); err != nil {
		pl.rollbackStaged(staged)
		return err
	}

	// Step 8: commit every staged file into place.
	if err := pl.commit(ctl, staged); err != nil {
		return errors.Wrap(err, "committing staged files (filesystem may be left half-installed; rerun to recover)")
	}

	// Drop ownership from packages this install replaces.
	for name := range dropFrom {
		if other, ok := findPackageByName(pl.PS, name); ok {
			pl.dropOwnership(other)
		}
	}

	// Step 9: update the in-memory package record.
	p := pl.PS.Get(ctl.Name, ctl.Arch)
	p.Available = ctl.Binary // the candidate just installed becomes "available" too, for round-trip
	p.Installed = ctl.Binary
	p.Status = pkgdb.StatusUnpacked
	p.EFlag = pkgdb.EFlagOk
	for _, sf := range staged {
		pl.Table.AddOwner(sf.ref, p.Name)
	}

	// Step 11a: postrm of the old package, now that content has moved.
	if hadOld && !oldVersion.IsZero() && old.Name != p.Name {
		action := maintscript.ActionUpgrade
		pl.runScript(ctx, maintscript.PostRm, old.Name, old.Arch, maintscript.Argv(action, ctl.Binary.Version.String()))
	}

	if !configure {
		return nil
	}
	return pl.configureLocked(ctx, p, oldVersion)
}

// enumerateAndCheck implements spec §4.7 steps 3-4: normalize each entry's
// path, resolve any diversion, intern (or find) its FilesystemNode, mark it
// FlagNew, and refuse the whole operation if another installed package
// claims the same node without licensing an overwrite via Replaces.
func (pl *Pipeline) enumerateAndCheck(ctl Control, r Reader) ([]stagedFile, map[string]bool, error) {
	var staged []stagedFile
	dropFrom := map[string]bool{}
	conffileSet := map[string]bool{}
	for _, c := range ctl.Binary.Conffiles {
		conffileSet[fsnode.Canonicalize(c.Path)] = true
	}

	for {
		entry, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading archive entry")
		}

		target := pl.resolveDiversion(entry.Path, ctl.Name)
		ref, _ := pl.Table.Find(target, fsnode.CreateIfMissing)
		node := pl.Table.Get(ref)
		node.Flags |= fsnode.FlagNew

		if err := pl.checkOwnership(ctl, node, target, dropFrom); err != nil {
			return nil, nil, err
		}

		staged = append(staged, stagedFile{
			entry:      entry,
			ref:        ref,
			target:     pl.Dir.ResolvePath(target),
			isConffile: conffileSet[fsnode.Canonicalize(entry.Path)],
		})
	}
	return staged, dropFrom, nil
}

// checkOwnership implements spec §4.7 step 4's conflict/Replaces check:
// another installed owner is tolerated only if ctl's Replaces expression
// says so, in which case that owner is scheduled (via dropFrom) to drop
// ownership once the new content is committed.
func (pl *Pipeline) checkOwnership(ctl Control, node *fsnode.Node, target string, dropFrom map[string]bool) error {
	for _, owner := range node.Owners {
		if owner == ctl.Name {
			continue
		}
		res := depgraph.Evaluate(ctl.Binary.Replaces, ctl.Arch, pl.PS, depgraph.ViewInstalled)
		replacesOwner := false
		for _, disj := range ctl.Binary.Replaces {
			for _, atom := range disj {
				if atom.Name == owner {
					replacesOwner = true
				}
			}
		}
		if !replacesOwner || res.Verdict == depgraph.Halt {
			if pl.Force.Has(admindir.ForceBadPath) {
				continue
			}
			return &ConflictError{Path: target, NewPackage: ctl.Name, OldPackage: owner}
		}
		dropFrom[owner] = true
	}
	return nil
}

// resolveDiversion applies any Diversion recorded for path, returning the
// redirected path when this package is not the one licensed to use the
// contested path directly (spec §3 Diversion, §4.7 step 3).
func (pl *Pipeline) resolveDiversion(path, pkgName string) string {
	canon := fsnode.Canonicalize(path)
	ref, ok := pl.Table.Find(canon, 0)
	if !ok {
		return canon
	}
	node := pl.Table.Get(ref)
	if node.Diversion == nil {
		return canon
	}
	if node.Diversion.By == pkgName {
		return canon
	}
	return node.Diversion.AltPath
}

// stage implements spec §4.7 step 5: write each entry's content to a
// .dpkg-new sibling of its target, created with mode 0600, then content
// written, owner/group/mode applied (stat-override takes precedence over
// archive metadata), fsynced, and the node marked placed-on-disk.
// Directories are created directly at the target path, not staged.
func (pl *Pipeline) stage(ctl Control, staged []stagedFile) error {
	for i, sf := range staged {
		if sf.entry.IsDir {
			if err := os.MkdirAll(sf.target, 0755); err != nil {
				return errors.Wrapf(err, "creating directory %s", sf.target)
			}
			continue
		}
		if sf.entry.LinkTarget != "" {
			continue // symlinks are created directly at commit time, nothing to stage
		}

		newPath := sf.target + ".dpkg-new"
		if err := writeStagedFile(newPath, sf.entry); err != nil {
			return err
		}

		node := pl.Table.Get(sf.ref)
		mode := sf.entry.Mode
		uid, gid := sf.entry.UID, sf.entry.GID
		if node.StatOverride != nil {
			mode = os.FileMode(node.StatOverride.Mode)
			if resolvedUID, resolvedGID, ok := resolveOwner(node.StatOverride.Owner, node.StatOverride.Group); ok {
				uid, gid = resolvedUID, resolvedGID
			}
		}
		if err := os.Chmod(newPath, mode); err != nil {
			return errors.Wrapf(err, "chmod %s", newPath)
		}
		// Best-effort: chown requires privilege the engine may not have
		// (e.g. running unprivileged in a container or test), and spec §7
		// reserves hard failure for I/O errors on the admin directory
		// itself, not every unprivileged ownership request.
		_ = os.Chown(newPath, uid, gid)
		node.Flags |= fsnode.FlagPlacedOnDisk
		if sf.isConffile {
			node.Flags |= fsnode.FlagNewConffile
		}
		staged[i] = sf
	}
	return nil
}

func writeStagedFile(path string, entry Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	if entry.Content != nil {
		if _, err := io.Copy(f, entry.Content); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return f.Sync()
}

// commit implements spec §4.7 step 8: back up any pre-existing non-
// directory target to .dpkg-old, then rename the .dpkg-new sibling into
// place. Conffiles are routed through internal/conffile's decision matrix
// instead of an unconditional overwrite.
func (pl *Pipeline) commit(ctl Control, staged []stagedFile) error {
	// Stable order keeps commit (and any partial-failure recovery) output
	// deterministic across runs given the same archive.
	ordered := make([]stagedFile, len(staged))
	copy(ordered, staged)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].target < ordered[j].target })

	for _, sf := range ordered {
		if sf.entry.IsDir {
			continue
		}
		if sf.entry.LinkTarget != "" {
			if err := commitSymlink(sf.target, sf.entry.LinkTarget); err != nil {
				return err
			}
			continue
		}
		if sf.isConffile {
			if err := pl.commitConffile(ctl, sf); err != nil {
				return err
			}
			continue
		}
		if err := pl.commitPlain(sf.target); err != nil {
			return err
		}
	}
	return nil
}

func (pl *Pipeline) commitPlain(target string) error {
	newPath := target + ".dpkg-new"
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		if err := os.Rename(target, target+".dpkg-old"); err != nil {
			return errors.Wrapf(err, "backing up %s", target)
		}
	}
	return internalfs.RenameWithFallback(newPath, target)
}

func commitSymlink(target, linkTarget string) error {
	os.Remove(target)
	return os.Symlink(linkTarget, target)
}

// commitConffile implements spec §4.8's decision matrix at commit time:
// compare old-installed, new-from-archive, and current-on-disk hashes and
// either install the new content, keep the current file (stashing the new
// content at .dpkg-dist for review), or apply the standing policy.
func (pl *Pipeline) commitConffile(ctl Control, sf stagedFile) error {
	newPath := sf.target + ".dpkg-new"
	newHash, err := conffile.Hash(newPath)
	if err != nil {
		return err
	}
	currentHash, err := conffile.Hash(sf.target)
	if err != nil {
		return err
	}
	oldHash := ""
	if old, ok := findPackageByName(pl.PS, ctl.Name); ok {
		for _, c := range old.Installed.Conffiles {
			if fsnode.Canonicalize(c.Path) == fsnode.Canonicalize(sf.entry.Path) {
				oldHash = c.MD5
			}
		}
	}

	decision := conffile.Resolve(oldHash, newHash, currentHash, pl.ConfPolicy)
	switch decision.Action {
	case conffile.ActionInstall:
		if err := pl.commitPlain(sf.target); err != nil {
			return err
		}
	case conffile.ActionKeep:
		// Leave the on-disk file as-is; stash the new content for review
		// unless it is identical, and discard the staged .dpkg-new.
		if newHash != currentHash {
			if err := os.Rename(newPath, conffile.DistPath(sf.target)); err != nil {
				return errors.Wrapf(err, "stashing %s", conffile.DistPath(sf.target))
			}
		} else {
			os.Remove(newPath)
		}
	case conffile.ActionPrompt:
		// Non-interactive default when no policy/force flag resolved the
		// three-way conflict: behave like ActionKeep and leave a .dpkg-dist
		// for the administrator, same as dpkg's own non-interactive mode.
		if err := os.Rename(newPath, conffile.DistPath(sf.target)); err != nil {
			return errors.Wrapf(err, "stashing %s", conffile.DistPath(sf.target))
		}
	}
	return nil
}

// rollbackStaged removes every .dpkg-new sibling written so far, used when
// a later step (maintainer script, commit) fails before any rename has
// happened - the pipeline has made no irreversible change yet, so cleanup
// is a plain unlink pass (spec §4.7: conflict/validation failures abort
// "before any staging" or, for a later failure, leave only scratch files).
func (pl *Pipeline) rollbackStaged(staged []stagedFile) {
	for _, sf := range staged {
		if !sf.entry.IsDir && sf.entry.LinkTarget == "" {
			os.Remove(sf.target + ".dpkg-new")
		}
	}
}

func (pl *Pipeline) runScript(ctx context.Context, script maintscript.Script, pkg, arch string, args []string) error {
	res, err := maintscript.Run(ctx, maintscript.Invocation{
		Script:   script,
		Path:     pl.Dir.MaintainerScript(pkg, string(script)),
		Args:     args,
		Package:  pkg,
		Arch:     arch,
		Root:     pl.Dir.Root,
		AdminDir: pl.Dir.Admin,
	})
	if err != nil {
		return err
	}
	if res.Ran && res.ExitCode != 0 {
		if p, ok := findPackageByName(pl.PS, pkg); ok {
			p.EFlag = pkgdb.EFlagReinstreq
		}
		pl.note(feedback.KindScriptFailed, pkg, arch, string(script)+" exited "+strconv.Itoa(res.ExitCode)+": "+res.Stderr)
		if !pl.Force.Has(admindir.ForceRemoveReinstreq) {
			return errors.Errorf("%s %s failed with exit code %d: %s", pkg, script, res.ExitCode, res.Stderr)
		}
	}
	return nil
}

func (pl *Pipeline) dropOwnership(p *pkgdb.Package) {
	pl.Table.Walk(func(ref fsnode.Ref, n *fsnode.Node) bool {
		for _, o := range n.Owners {
			if o == p.Name {
				pl.Table.RemoveOwner(ref, p.Name)
			}
		}
		return true
	})
}

func (pl *Pipeline) note(kind feedback.Kind, pkg, arch, detail string) {
	if pl.Feedback == nil {
		return
	}
	pl.Feedback.Record(feedback.Entry{Kind: kind, Package: pkg, Arch: arch, Detail: detail})
}

func findPackageByName(ps *pkgdb.PackageSet, name string) (*pkgdb.Package, bool) {
	for _, p := range ps.All() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// resolveOwner looks up a stat-override's owner/group names to numeric
// ids. Overrides are recorded by name (spec §6 statoverride file format:
// "uid gid mode path", conventionally usernames); a lookup failure (no such
// user on this system) falls back to the archive's own numeric metadata
// rather than failing the whole unpack.
func resolveOwner(owner, group string) (uid, gid int, ok bool) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, false
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return 0, 0, false
	}
	uid, err1 := strconv.Atoi(u.Uid)
	gid, err2 := strconv.Atoi(g.Gid)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uid, gid, true
}
