package pkgdb

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/control"
	"github.com/pkgctl/pkgctl/internal/depgraph"
	"github.com/pkgctl/pkgctl/internal/version"
)

// fieldDecoder maps one known control-stanza field onto a Package, in the
// closed-registry style described by spec §9 ("tagged variant field decoders
// with a static registry instead of dynamic dispatch"). Fields absent from
// this registry are preserved verbatim in PackageBinary.Extra.
type fieldDecoder struct {
	name   string
	decode func(p *Package, binary *PackageBinary, value string) error
	encode func(p *Package, binary *PackageBinary) (string, bool)
}

var fieldRegistry []fieldDecoder

func register(name string, decode func(*Package, *PackageBinary, string) error, encode func(*Package, *PackageBinary) (string, bool)) {
	fieldRegistry = append(fieldRegistry, fieldDecoder{name: name, decode: decode, encode: encode})
}

func init() {
	register("Package", func(p *Package, b *PackageBinary, v string) error {
		p.Name = strings.ToLower(strings.TrimSpace(v))
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		return p.Name, p.Name != ""
	})

	register("Architecture", func(p *Package, b *PackageBinary, v string) error {
		p.Arch = strings.TrimSpace(v)
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		return p.Arch, p.Arch != ""
	})

	register("Multi-Arch", func(p *Package, b *PackageBinary, v string) error {
		switch strings.TrimSpace(v) {
		case "same":
			p.MultiArch = MultiArchSame
		case "foreign":
			p.MultiArch = MultiArchForeign
		case "allowed":
			p.MultiArch = MultiArchAllowed
		default:
			p.MultiArch = MultiArchNo
		}
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if p.MultiArch == MultiArchNo {
			return "", false
		}
		return p.MultiArch.String(), true
	})

	register("Status", func(p *Package, b *PackageBinary, v string) error {
		parts := strings.Fields(v)
		if len(parts) != 3 {
			return errors.Errorf("malformed Status field %q: want 3 space-separated words", v)
		}
		p.Want = ParseWant(parts[0])
		p.EFlag = ParseEFlag(parts[1])
		st, ok := ParseStatus(parts[2])
		if !ok {
			return errors.Errorf("unknown status word %q", parts[2])
		}
		p.Status = st
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		return p.Want.String() + " " + p.EFlag.String() + " " + p.Status.String(), true
	})

	register("Version", func(p *Package, b *PackageBinary, v string) error {
		ver, err := version.Parse(v)
		if err != nil {
			return errors.Wrapf(err, "parsing Version field %q", v)
		}
		b.Version = ver
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if b.Version.IsZero() {
			return "", false
		}
		return b.Version.String(), true
	})

	register("Maintainer", func(p *Package, b *PackageBinary, v string) error {
		b.Maintainer = v
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) { return b.Maintainer, b.Maintainer != "" })

	register("Description", func(p *Package, b *PackageBinary, v string) error {
		b.Description = v
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) { return b.Description, b.Description != "" })

	register("Section", func(p *Package, b *PackageBinary, v string) error {
		b.Section = v
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) { return b.Section, b.Section != "" })

	register("Priority", func(p *Package, b *PackageBinary, v string) error {
		b.Priority = v
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) { return b.Priority, b.Priority != "" })

	register("Essential", func(p *Package, b *PackageBinary, v string) error {
		b.Essential = strings.EqualFold(strings.TrimSpace(v), "yes")
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if !b.Essential {
			return "", false
		}
		return "yes", true
	})

	register("Conffiles", func(p *Package, b *PackageBinary, v string) error {
		for _, line := range strings.Split(v, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return errors.Errorf("malformed Conffiles line %q", line)
			}
			b.Conffiles = append(b.Conffiles, Conffile{Path: fields[0], MD5: fields[1]})
		}
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if len(b.Conffiles) == 0 {
			return "", false
		}
		lines := make([]string, len(b.Conffiles))
		for i, c := range b.Conffiles {
			lines[i] = c.Path + " " + c.MD5
		}
		return strings.Join(lines, "\n"), true
	})

	registerExpression("Depends", func(b *PackageBinary) *depgraph.Expression { return &b.Depends })
	registerExpression("Pre-Depends", func(b *PackageBinary) *depgraph.Expression { return &b.PreDepends })
	registerExpression("Recommends", func(b *PackageBinary) *depgraph.Expression { return &b.Recommends })
	registerExpression("Suggests", func(b *PackageBinary) *depgraph.Expression { return &b.Suggests })
	registerExpression("Enhances", func(b *PackageBinary) *depgraph.Expression { return &b.Enhances })
	registerExpression("Conflicts", func(b *PackageBinary) *depgraph.Expression { return &b.Conflicts })
	registerExpression("Breaks", func(b *PackageBinary) *depgraph.Expression { return &b.Breaks })
	registerExpression("Replaces", func(b *PackageBinary) *depgraph.Expression { return &b.Replaces })
	registerExpression("Provides", func(b *PackageBinary) *depgraph.Expression { return &b.Provides })

	register("Triggers-Pending", func(p *Package, b *PackageBinary, v string) error {
		p.Triggers.Pending = strings.Fields(v)
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if len(p.Triggers.Pending) == 0 {
			return "", false
		}
		return strings.Join(p.Triggers.Pending, " "), true
	})

	register("Triggers-Awaited", func(p *Package, b *PackageBinary, v string) error {
		p.Triggers.Awaited = strings.Fields(v)
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		if len(p.Triggers.Awaited) == 0 {
			return "", false
		}
		return strings.Join(p.Triggers.Awaited, " "), true
	})
}

func registerExpression(name string, field func(*PackageBinary) *depgraph.Expression) {
	register(name, func(p *Package, b *PackageBinary, v string) error {
		expr, err := depgraph.ParseExpression(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s field", name)
		}
		*field(b) = expr
		return nil
	}, func(p *Package, b *PackageBinary) (string, bool) {
		expr := *field(b)
		if len(expr) == 0 {
			return "", false
		}
		return expr.String(), true
	})
}

func lookupDecoder(name string) (fieldDecoder, bool) {
	for _, d := range fieldRegistry {
		if strings.EqualFold(d.name, name) {
			return d, true
		}
	}
	return fieldDecoder{}, false
}

// DecodeStanza turns one control stanza into a Package, routing known fields
// through fieldRegistry and keeping unknown fields in binary.Extra.
//
// isAvailable selects which of Package.Installed/Package.Available receives
// the version-ish fields (Version, Maintainer, Description, ... Conffiles);
// Package/Architecture/Multi-Arch/Status/Triggers-* always apply to the
// Package itself regardless of which file the stanza came from.
func DecodeStanza(st control.Stanza, p *Package, isAvailable bool) error {
	binary := &p.Installed
	if isAvailable {
		binary = &p.Available
	}
	for _, f := range st.Fields {
		d, ok := lookupDecoder(f.Name)
		if !ok {
			binary.Extra = append(binary.Extra, ExtraField{Name: f.Name, Value: f.Value})
			continue
		}
		if err := d.decode(p, binary, f.Value); err != nil {
			return errors.Wrapf(err, "stanza at line %d", st.Line)
		}
	}
	return nil
}

// EncodeStanza serializes p back into a control stanza, in field-registry
// order, followed by any Extra fields in their original order.
func EncodeStanza(p *Package, isAvailable bool) control.Stanza {
	binary := &p.Installed
	if isAvailable {
		binary = &p.Available
	}
	var st control.Stanza
	for _, d := range fieldRegistry {
		value, ok := d.encode(p, binary)
		if !ok {
			continue
		}
		st.Fields = append(st.Fields, control.Field{Name: d.name, Value: value})
	}
	for _, ex := range binary.Extra {
		st.Fields = append(st.Fields, control.Field{Name: ex.Name, Value: ex.Value})
	}
	return st
}
