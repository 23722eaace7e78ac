// Package admindir models the persisted admin-directory layout (spec §6),
// the exclusive session lock guarding it (spec §5), its force-flag policy
// (spec §7), and the engine's own configuration file.
package admindir

import "path/filepath"

// Dir locates every file and subdirectory spec §6 names under one admin
// directory root (DPKG_ADMINDIR), plus the separate filesystem root
// (DPKG_ROOT) archive content is staged under.
type Dir struct {
	Admin string // admindir root, e.g. /var/lib/dpkg
	Root  string // filesystem root content is installed under, usually "/"
}

func (d Dir) Status() string    { return filepath.Join(d.Admin, "status") }
func (d Dir) Available() string { return filepath.Join(d.Admin, "available") }
func (d Dir) Updates() string   { return filepath.Join(d.Admin, "updates") }
func (d Dir) InfoDir() string   { return filepath.Join(d.Admin, "info") }

func (d Dir) InfoFile(pkg, ext string) string {
	return filepath.Join(d.InfoDir(), pkg+"."+ext)
}

func (d Dir) PackageList(pkg string) string      { return d.InfoFile(pkg, "list") }
func (d Dir) PackageMD5Sums(pkg string) string    { return d.InfoFile(pkg, "md5sums") }
func (d Dir) PackageConffiles(pkg string) string  { return d.InfoFile(pkg, "conffiles") }
func (d Dir) PackageTriggers(pkg string) string   { return d.InfoFile(pkg, "triggers") }
func (d Dir) MaintainerScript(pkg, script string) string {
	return d.InfoFile(pkg, script)
}

func (d Dir) Diversions() string    { return filepath.Join(d.Admin, "diversions") }
func (d Dir) DiversionsOld() string { return filepath.Join(d.Admin, "diversions-old") }
func (d Dir) DiversionsNew() string { return filepath.Join(d.Admin, "diversions-new") }

func (d Dir) StatOverride() string    { return filepath.Join(d.Admin, "statoverride") }
func (d Dir) StatOverrideOld() string { return filepath.Join(d.Admin, "statoverride-old") }
func (d Dir) StatOverrideNew() string { return filepath.Join(d.Admin, "statoverride-new") }

func (d Dir) TriggersDir() string      { return filepath.Join(d.Admin, "triggers") }
func (d Dir) TriggersFile() string     { return filepath.Join(d.TriggersDir(), "File") }
func (d Dir) TriggersUnincorp() string { return filepath.Join(d.TriggersDir(), "Unincorp") }
func (d Dir) TriggersPackage(pkg string) string {
	return filepath.Join(d.TriggersDir(), pkg)
}

func (d Dir) Lock() string         { return filepath.Join(d.Admin, "lock") }
func (d Dir) LockFrontend() string { return filepath.Join(d.Admin, "lock-frontend") }

func (d Dir) Config() string { return filepath.Join(d.Admin, "config.toml") }

// ResolvePath joins a path from an archive entry (always absolute within
// the package's own namespace) onto the filesystem root, the translation
// every archive-pipeline and conffile-engine filesystem write goes through.
func (d Dir) ResolvePath(p string) string {
	return filepath.Join(d.Root, p)
}
