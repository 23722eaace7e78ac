package admindir

import "strings"

// Force is the closed bitset of force-flags named throughout spec §7 and
// §4.6-§4.8, consulted uniformly at every force-policy decision point
// rather than threaded through as individual booleans.
type Force uint32

const (
	ForceDepends Force = 1 << iota
	ForceBreaks
	ForceConflicts
	ForceRemoveReinstreq
	ForceRemoveEssential
	ForceBadPath
	ForceConfNew
	ForceConfOld
	ForceConfDef
	ForceConfMiss
	ForceConfAsk
	ForceLaxVersionParser
)

var forceNames = map[string]Force{
	"depends":             ForceDepends,
	"breaks":              ForceBreaks,
	"conflicts":           ForceConflicts,
	"remove-reinstreq":    ForceRemoveReinstreq,
	"remove-essential":    ForceRemoveEssential,
	"bad-path":            ForceBadPath,
	"confnew":             ForceConfNew,
	"confold":             ForceConfOld,
	"confdef":             ForceConfDef,
	"confmiss":            ForceConfMiss,
	"confask":             ForceConfAsk,
	"lax-version-parser":  ForceLaxVersionParser,
}

// Has reports whether every flag in want is set in f.
func (f Force) Has(want Force) bool { return f&want == want }

// ParseForce parses a comma-separated list of force-flag names, the form
// taken by both the DPKG_FORCE environment variable and a repeated
// --force-<name> command-line flag (spec §6, §7).
func ParseForce(s string) (Force, error) {
	var f Force
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		bit, ok := forceNames[name]
		if !ok {
			return 0, &UnknownForceFlagError{Name: name}
		}
		f |= bit
	}
	return f, nil
}

// UnknownForceFlagError reports a --force-<name>/DPKG_FORCE token this
// engine does not recognize.
type UnknownForceFlagError struct{ Name string }

func (e *UnknownForceFlagError) Error() string {
	return "unknown force flag " + e.Name
}

// String renders f back into the same comma-separated form ParseForce
// accepts, sorted for determinism.
func (f Force) String() string {
	if f == 0 {
		return ""
	}
	// Fixed iteration order (declaration order of the consts above) rather
	// than map iteration, so the rendered form is stable across runs.
	ordered := []struct {
		bit  Force
		name string
	}{
		{ForceDepends, "depends"},
		{ForceBreaks, "breaks"},
		{ForceConflicts, "conflicts"},
		{ForceRemoveReinstreq, "remove-reinstreq"},
		{ForceRemoveEssential, "remove-essential"},
		{ForceBadPath, "bad-path"},
		{ForceConfNew, "confnew"},
		{ForceConfOld, "confold"},
		{ForceConfDef, "confdef"},
		{ForceConfMiss, "confmiss"},
		{ForceConfAsk, "confask"},
		{ForceLaxVersionParser, "lax-version-parser"},
	}
	var parts []string
	for _, o := range ordered {
		if f.Has(o.bit) {
			parts = append(parts, o.name)
		}
	}
	return strings.Join(parts, ",")
}
