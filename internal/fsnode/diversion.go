package fsnode

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Diversion records that a path normally owned by one package has been
// redirected to an alternate location, optionally only for a specific
// package (spec §3, §6 diversions file format).
type Diversion struct {
	Path    string // the diverted path
	AltPath string // where the real content now lives
	By      string // package responsible for the diversion ("local" if none)
}

// StatOverride records an administrator-forced owner/group/mode for a path
// that should be applied on top of whatever the archive staged (spec §3).
type StatOverride struct {
	Path  string
	Owner string
	Group string
	Mode  uint32
}

// LoadDiversions reads the diversions file, three lines per entry (path,
// alt-path, package-or-"local"), as dpkg-divert maintains it.
func LoadDiversions(path string) ([]Diversion, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening diversions file %s", path)
	}
	defer f.Close()

	var out []Diversion
	sc := bufio.NewScanner(f)
	for {
		from, ok, err := scanLine(sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		to, ok, err := scanLine(sc)
		if err != nil || !ok {
			return nil, errors.Errorf("diversions file %s: truncated entry for %q", path, from)
		}
		by, ok, err := scanLine(sc)
		if err != nil || !ok {
			return nil, errors.Errorf("diversions file %s: truncated entry for %q", path, from)
		}
		out = append(out, Diversion{Path: from, AltPath: to, By: by})
	}
	return out, nil
}

func scanLine(sc *bufio.Scanner) (string, bool, error) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return strings.TrimRight(sc.Text(), "\r"), true, nil
}

// LoadStatOverrides reads the statoverride file, one "owner group mode path"
// line per entry.
func LoadStatOverrides(path string) ([]StatOverride, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening statoverride file %s", path)
	}
	defer f.Close()

	var out []StatOverride
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("statoverride file %s: malformed line %q", path, line)
		}
		out = append(out, StatOverride{
			Owner: fields[0],
			Group: fields[1],
			Mode:  parseOctal(fields[2]),
			Path:  fields[3],
		})
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func parseOctal(s string) uint32 {
	var n uint32
	for _, r := range s {
		if r < '0' || r > '7' {
			return 0
		}
		n = n*8 + uint32(r-'0')
	}
	return n
}

// Apply installs divs and overrides onto t, interning each affected path.
func (t *Table) Apply(divs []Diversion, overrides []StatOverride) {
	for i := range divs {
		ref, _ := t.Find(divs[i].Path, CreateIfMissing)
		t.Get(ref).Diversion = &divs[i]
	}
	for i := range overrides {
		ref, _ := t.Find(overrides[i].Path, CreateIfMissing)
		t.Get(ref).StatOverride = &overrides[i]
	}
}
