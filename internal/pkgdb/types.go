// Package pkgdb implements the package database: an in-memory indexed set
// of package records loaded from the status and available files, with
// atomic, journaled persistence (spec §3, §4.3).
package pkgdb

import (
	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/depgraph"
	"github.com/pkgctl/pkgctl/internal/version"
)

// MultiArch is a package's coexistence mode across architectures (spec §3).
type MultiArch int

const (
	MultiArchNo MultiArch = iota
	MultiArchSame
	MultiArchForeign
	MultiArchAllowed
)

func (m MultiArch) String() string {
	switch m {
	case MultiArchSame:
		return "same"
	case MultiArchForeign:
		return "foreign"
	case MultiArchAllowed:
		return "allowed"
	default:
		return "no"
	}
}

// Want is the administrator's selection state for a package.
type Want int

const (
	WantUnknown Want = iota
	WantInstall
	WantHold
	WantDeinstall
	WantPurge
)

func (w Want) String() string {
	switch w {
	case WantInstall:
		return "install"
	case WantHold:
		return "hold"
	case WantDeinstall:
		return "deinstall"
	case WantPurge:
		return "purge"
	default:
		return "unknown"
	}
}

func ParseWant(s string) Want {
	switch s {
	case "install":
		return WantInstall
	case "hold":
		return WantHold
	case "deinstall":
		return WantDeinstall
	case "purge":
		return WantPurge
	default:
		return WantUnknown
	}
}

// EFlag is the sticky error flag described in spec §3: once set to
// Reinstreq by a failed script, it survives across sessions until a
// successful unpack+configure.
type EFlag int

const (
	EFlagOk EFlag = iota
	EFlagReinstreq
)

func (e EFlag) String() string {
	if e == EFlagReinstreq {
		return "reinstreq"
	}
	return "ok"
}

func ParseEFlag(s string) EFlag {
	if s == "reinstreq" {
		return EFlagReinstreq
	}
	return EFlagOk
}

// Status is a package's installation state machine position (spec §3).
type Status int

const (
	StatusNotInstalled Status = iota
	StatusConfigFiles
	StatusHalfInstalled
	StatusUnpacked
	StatusHalfConfigured
	StatusTriggersAwaited
	StatusTriggersPending
	StatusInstalled
)

var statusNames = map[Status]string{
	StatusNotInstalled:    "not-installed",
	StatusConfigFiles:     "config-files",
	StatusHalfInstalled:   "half-installed",
	StatusUnpacked:        "unpacked",
	StatusHalfConfigured:  "half-configured",
	StatusTriggersAwaited: "triggers-awaited",
	StatusTriggersPending: "triggers-pending",
	StatusInstalled:       "installed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func ParseStatus(s string) (Status, bool) {
	for k, v := range statusNames {
		if v == s {
			return k, true
		}
	}
	return StatusNotInstalled, false
}

// HasFiles reports whether a package in this status is expected to own
// files on disk (spec §3 invariants).
func (s Status) HasFiles() bool {
	switch s {
	case StatusNotInstalled, StatusConfigFiles:
		return false
	default:
		return true
	}
}

// HasCompleteMetadata reports whether installed metadata must be fully
// populated in this status (spec §3 invariants).
func (s Status) HasCompleteMetadata() bool {
	switch s {
	case StatusNotInstalled, StatusConfigFiles:
		return false
	default:
		return true
	}
}

// Conffile is one declared configuration file and the md5 digest recorded
// for it the last time the engine wrote it (spec §4.8).
type Conffile struct {
	Path string
	MD5  string
}

// ExtraField is a control-stanza field this engine does not interpret, kept
// verbatim for round-trip formatting (spec §4.2).
type ExtraField struct {
	Name  string
	Value string
}

// PackageBinary holds the fields of one control stanza: either the
// currently-installed metadata or the metadata describing an available
// candidate (spec §3).
type PackageBinary struct {
	Version     version.Version
	Maintainer  string
	Description string
	Section     string
	Priority    string
	Essential   bool

	Conffiles []Conffile

	Depends     depgraph.Expression
	PreDepends  depgraph.Expression
	Recommends  depgraph.Expression
	Suggests    depgraph.Expression
	Enhances    depgraph.Expression
	Conflicts   depgraph.Expression
	Breaks      depgraph.Expression
	Replaces    depgraph.Expression
	Provides    depgraph.Expression

	TriggersInterest    []string // explicit trigger names this package activates on
	TriggerFilePrefixes []string // path prefixes this package watches

	Extra []ExtraField
}

// IsZero reports whether b has never been populated (no version recorded).
func (b PackageBinary) IsZero() bool { return b.Version.IsZero() && b.Maintainer == "" && b.Description == "" }

// TriggerState is a package's pending/awaited trigger bookkeeping (spec §3, §4.9).
type TriggerState struct {
	Pending []string // trigger names queued for this package's next postinst
	Awaited []string // package names this one is blocked on
}

// Package is one (name, architecture) package record, with both an
// installed and an available binary slot (spec §3).
type Package struct {
	Name      string
	Arch      string
	MultiArch MultiArch

	Installed PackageBinary
	Available PackageBinary

	Want   Want
	EFlag  EFlag
	Status Status

	Triggers TriggerState
}

// Key is the (name, architecture) identity used for unique indexing.
type Key struct {
	Name string
	Arch string
}

func (p *Package) Key() Key { return Key{Name: p.Name, Arch: p.Arch} }

// Validate checks the spec §3 status invariants.
func (p *Package) Validate() error {
	if p.Status == StatusNotInstalled {
		if !p.Installed.Version.IsZero() {
			return errors.Errorf("%s/%s: status not-installed but installed.version is %q", p.Name, p.Arch, p.Installed.Version)
		}
	}
	if p.Status.HasCompleteMetadata() && p.Installed.Version.IsZero() && p.Status != StatusConfigFiles {
		return errors.Errorf("%s/%s: status %s requires complete installed metadata", p.Name, p.Arch, p.Status)
	}
	return nil
}
