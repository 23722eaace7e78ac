package depgraph

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pkgctl/pkgctl/internal/version"
)

// ParseExpression parses a dependency field's value (e.g.
// "foo (>= 1.0) | bar [amd64 !i386], baz") into an Expression: a
// comma-separated conjunction of pipe-separated disjunctions.
func ParseExpression(s string) (Expression, error) {
	var expr Expression
	for _, group := range splitTop(s, ',') {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		var disj Disjunction
		for _, term := range splitTop(group, '|') {
			atom, err := parseAtom(strings.TrimSpace(term))
			if err != nil {
				return nil, err
			}
			disj = append(disj, atom)
		}
		expr = append(expr, disj)
	}
	return expr, nil
}

// splitTop splits s on sep at top level only (not inside parens/brackets).
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseAtom(s string) (Atom, error) {
	a := Atom{}

	// Architecture restriction: trailing "[arch1 !arch2 ...]".
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		end := strings.IndexByte(s[idx:], ']')
		if end < 0 {
			return Atom{}, errors.Errorf("unterminated architecture restriction in %q", s)
		}
		restrict := s[idx+1 : idx+end]
		a.ArchRestrict = strings.Fields(restrict)
		s = strings.TrimSpace(s[:idx])
	}

	// Version constraint: trailing "(OP version)".
	if idx := strings.IndexByte(s, '('); idx >= 0 {
		end := strings.IndexByte(s[idx:], ')')
		if end < 0 {
			return Atom{}, errors.Errorf("unterminated version constraint in %q", s)
		}
		body := strings.TrimSpace(s[idx+1 : idx+end])
		op, verStr, err := splitConstraint(body)
		if err != nil {
			return Atom{}, err
		}
		v, err := version.Parse(verStr)
		if err != nil {
			return Atom{}, errors.Wrapf(err, "parsing version constraint in %q", s)
		}
		a.Op = op
		a.Version = v
		s = strings.TrimSpace(s[:idx])
	}

	name := s
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		a.ArchQualifier = name[idx:]
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Atom{}, errors.Errorf("empty package name in dependency atom %q", s)
	}
	a.Name = strings.ToLower(name)
	return a, nil
}

func splitConstraint(body string) (Op, string, error) {
	ops := []struct {
		tok string
		op  Op
	}{
		{"<<", OpLT}, {"<=", OpLE}, {">=", OpGE}, {">>", OpGT}, {"=", OpEQ},
	}
	for _, o := range ops {
		if strings.HasPrefix(body, o.tok) {
			return o.op, strings.TrimSpace(body[len(o.tok):]), nil
		}
	}
	return 0, "", errors.Errorf("unrecognized version operator in %q", body)
}
