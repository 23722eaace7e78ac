// Package version implements the version string grammar and comparison
// algorithm used to order package versions: a triple of epoch, upstream
// portion, and revision, compared field by field with a custom
// alternating-run algorithm over the upstream and revision strings.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is the parsed, comparable form of a package version string.
//
// The zero Version (epoch 0, empty upstream, empty revision) compares as
// less than any version with a non-empty upstream.
type Version struct {
	Epoch    uint
	Upstream string
	Revision string
}

// Kind classifies a parse error or warning.
type Kind int

const (
	// KindEmptyVersion indicates the input string was empty or all whitespace.
	KindEmptyVersion Kind = iota
	// KindEmbeddedSpaces indicates whitespace was found inside the version.
	KindEmbeddedSpaces
	// KindEmptyEpoch indicates an epoch prefix with no digits before the colon.
	KindEmptyEpoch
	// KindNonNumericEpoch indicates the epoch prefix contained a non-digit.
	KindNonNumericEpoch
	// KindNegativeEpoch indicates a '-' was seen where the epoch was expected.
	KindNegativeEpoch
	// KindEpochTooLarge indicates the epoch overflowed a reasonable integer range.
	KindEpochTooLarge
	// KindEmptyAfterEpochColon indicates nothing followed the epoch's ':'.
	KindEmptyAfterEpochColon
	// KindEmptyRevision indicates a trailing '-' with nothing after it.
	KindEmptyRevision
	// KindUpstreamDoesNotStartWithDigit is a warning-level condition: lax
	// parsers may continue, strict parsers reject.
	KindUpstreamDoesNotStartWithDigit
	// KindInvalidCharInVersion is a warning-level condition for the upstream portion.
	KindInvalidCharInVersion
	// KindInvalidCharInRevision is a warning-level condition for the revision portion.
	KindInvalidCharInRevision
)

// IsWarning reports whether a Kind is a warning-level condition that a lax
// parser (ParseLax) tolerates instead of rejecting.
func (k Kind) IsWarning() bool {
	switch k {
	case KindUpstreamDoesNotStartWithDigit, KindInvalidCharInVersion, KindInvalidCharInRevision:
		return true
	default:
		return false
	}
}

// ParseError is a tagged error carrying the offending Kind plus formatted text.
type ParseError struct {
	Kind  Kind
	Input string
	msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("version %q: %s", e.Input, e.msg)
}

func newParseError(kind Kind, input, msg string) *ParseError {
	return &ParseError{Kind: kind, Input: input, msg: msg}
}

// Parse parses s under strict rules: any warning-level condition (spec
// §4.1) is treated as a hard error. See ParseLax for the tolerant variant.
func Parse(s string) (Version, error) {
	return parse(s, false)
}

// ParseLax parses s, downgrading warning-level conditions (an upstream not
// starting with a digit, or a stray character outside the permitted set) to
// a non-nil *ParseError returned alongside a best-effort Version, instead of
// failing outright. Callers distinguish the two cases by checking the
// returned error's Kind via IsWarning.
func ParseLax(s string) (Version, error) {
	return parse(s, true)
}

func parse(s string, lax bool) (Version, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Version{}, newParseError(KindEmptyVersion, s, "must not be empty")
	}
	if trimmed != s {
		// Leading/trailing whitespace is stripped silently per spec; only
		// embedded whitespace is an error.
		s = trimmed
	}
	if strings.ContainsAny(s, " \t\n\r\v\f") {
		return Version{}, newParseError(KindEmbeddedSpaces, s, "must not contain embedded whitespace")
	}

	rest := s
	var epoch uint
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		epochStr := rest[:idx]
		if epochStr == "" {
			return Version{}, newParseError(KindEmptyEpoch, s, "epoch prefix is empty")
		}
		if strings.HasPrefix(epochStr, "-") {
			return Version{}, newParseError(KindNegativeEpoch, s, "epoch must not be negative")
		}
		for _, r := range epochStr {
			if r < '0' || r > '9' {
				return Version{}, newParseError(KindNonNumericEpoch, s, "epoch must be all digits")
			}
		}
		n, err := strconv.ParseUint(epochStr, 10, 32)
		if err != nil {
			return Version{}, newParseError(KindEpochTooLarge, s, "epoch out of range")
		}
		epoch = uint(n)
		rest = rest[idx+1:]
		if rest == "" {
			return Version{}, newParseError(KindEmptyAfterEpochColon, s, "nothing follows epoch ':'")
		}
	}

	upstream := rest
	revision := ""
	if idx := strings.LastIndexByte(rest, '-'); idx >= 0 {
		upstream = rest[:idx]
		revision = rest[idx+1:]
		if revision == "" {
			return Version{}, newParseError(KindEmptyRevision, s, "revision must not be empty when '-' is present")
		}
	}

	if upstream == "" {
		return Version{}, newParseError(KindEmptyVersion, s, "upstream portion must not be empty")
	}

	var warn *ParseError
	if !(upstream[0] >= '0' && upstream[0] <= '9') {
		w := newParseError(KindUpstreamDoesNotStartWithDigit, s, "upstream does not start with a digit")
		if !lax {
			return Version{}, w
		}
		warn = w
	}

	for _, r := range upstream {
		if !validUpstreamChar(r) {
			w := newParseError(KindInvalidCharInVersion, s, fmt.Sprintf("invalid character %q in upstream version", r))
			if !lax {
				return Version{}, w
			}
			warn = w
			break
		}
	}
	for _, r := range revision {
		if !validRevisionChar(r) {
			w := newParseError(KindInvalidCharInRevision, s, fmt.Sprintf("invalid character %q in revision", r))
			if !lax {
				return Version{}, w
			}
			warn = w
			break
		}
	}

	v := Version{Epoch: epoch, Upstream: upstream, Revision: revision}
	if warn != nil {
		return v, warn
	}
	return v, nil
}

func validUpstreamChar(r rune) bool {
	if isAlnum(r) {
		return true
	}
	switch r {
	case '.', '-', '+', '~', ':':
		return true
	}
	return false
}

func validRevisionChar(r rune) bool {
	if isAlnum(r) {
		return true
	}
	switch r {
	case '.', '+', '~':
		return true
	}
	return false
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// String formats the version back into its canonical string form. Parse and
// String round-trip: Parse(v.String()) compares equal to v (testable
// property 2 in spec §8).
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d:", v.Epoch)
	}
	b.WriteString(v.Upstream)
	if v.Revision != "" {
		b.WriteByte('-')
		b.WriteString(v.Revision)
	}
	return b.String()
}

// IsZero reports whether v is the empty, not-installed version.
func (v Version) IsZero() bool {
	return v.Epoch == 0 && v.Upstream == "" && v.Revision == ""
}

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater than b,
// comparing epoch, then upstream, then revision (spec §4.1).
func Compare(a, b Version) int {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return -1
		}
		return 1
	}
	if c := compareFragment(a.Upstream, b.Upstream); c != 0 {
		return c
	}
	return compareFragment(a.Revision, b.Revision)
}

// Less reports whether a sorts strictly before b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

// compareFragment implements the alternating non-digit/digit run comparison
// described in spec §4.1: take the longest non-digit prefix of each and
// compare under the custom character order, then take the longest digit
// prefix of each and compare as integers, repeating until both strings are
// exhausted.
func compareFragment(a, b string) int {
	for len(a) > 0 || len(b) > 0 {
		aNonDigit, aRest := splitNonDigit(a)
		bNonDigit, bRest := splitNonDigit(b)

		if c := compareNonDigitRuns(aNonDigit, bNonDigit); c != 0 {
			return c
		}
		a, b = aRest, bRest

		aDigit, aRest2 := splitDigit(a)
		bDigit, bRest2 := splitDigit(b)

		if c := compareDigitRuns(aDigit, bDigit); c != 0 {
			return c
		}
		a, b = aRest2, bRest2
	}
	return 0
}

func splitNonDigit(s string) (run, rest string) {
	i := 0
	for i < len(s) && !isDigitByte(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func splitDigit(s string) (run, rest string) {
	i := 0
	for i < len(s) && isDigitByte(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

// charOrder returns a sortable rank for a single byte of a non-digit run:
// letters sort before all non-letters, '~' sorts before the run's end
// (empty), and otherwise plain ASCII order applies. The end-of-string
// sentinel is represented by the caller via compareNonDigitRuns's length
// handling, mirroring dpkg's "~ sorts before empty" rule.
func charOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case isAlphaByte(c):
		return int(c) + 256
	default:
		return int(c) + 512
	}
}

func isAlphaByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func compareNonDigitRuns(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		oa, ob := charOrder(a[i]), charOrder(b[i])
		if oa != ob {
			if oa < ob {
				return -1
			}
			return 1
		}
	}
	// One is a prefix of the other (or they're equal length). The shorter
	// string is smaller unless the next rune of the longer one is '~', in
	// which case '~' still sorts before the implicit end, making the
	// longer string smaller.
	switch {
	case len(a) == len(b):
		return 0
	case len(a) < len(b):
		if b[n] == '~' {
			return 1
		}
		return -1
	default:
		if a[n] == '~' {
			return -1
		}
		return 1
	}
}

func compareDigitRuns(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Validate re-runs Parse purely for its error, useful when a caller already
// holds a Version and wants to confirm it would round-trip cleanly (spec §8
// property 2).
func Validate(v Version) error {
	_, err := Parse(v.String())
	return errors.Wrapf(err, "version %q failed to round-trip", v.String())
}
