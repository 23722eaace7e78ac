// Package control streams RFC-822-style control stanzas (paragraphs of
// "Name: value" fields, continuation lines indented with whitespace,
// paragraphs separated by exactly one blank line) into ordered records.
//
// Field names are matched case-insensitively but stored with their original
// casing for round-trip formatting (spec §4.2, testable property 3).
package control

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-buffruneio"
	"github.com/pkg/errors"
)

// Field is a single "Name: value" pair as it appeared in a stanza, with
// continuation lines already joined by newlines and trailing per-line
// whitespace trimmed.
type Field struct {
	Name  string
	Value string
}

// Stanza is an ordered sequence of fields, preserving source order for
// round-trip formatting.
type Stanza struct {
	Fields []Field
	// Line is the 1-based source line on which the stanza began, used for
	// diagnostics.
	Line int
}

// Get returns the value of the named field (case-insensitive) and whether
// it was present.
func (s Stanza) Get(name string) (string, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// DuplicateFieldError reports a field name repeated within one stanza.
type DuplicateFieldError struct {
	Name string
	Line int
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("line %d: duplicate field %q in stanza", e.Line, e.Name)
}

// Reader streams stanzas out of r one paragraph at a time.
//
// Lines are read rune-by-rune through a buffruneio.Reader so that a
// continuation line (leading space or tab) can be distinguished from the
// start of a new field or the blank line that terminates a paragraph one
// rune of lookahead at a time, without re-reading bytes already consumed.
type Reader struct {
	rd      *buffruneio.Reader
	line    int
	pending *string // one line of lookahead, not yet handed to the caller
	err     error
}

// NewReader wraps r as a stanza Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{rd: buffruneio.NewReader(r), line: 1}
}

// Next reads and returns the next stanza, or io.EOF when the input is
// exhausted.
func (r *Reader) Next() (Stanza, error) {
	if r.err != nil {
		return Stanza{}, r.err
	}

	for {
		line, atEOF, err := r.takeLine()
		if err != nil {
			r.err = err
			return Stanza{}, err
		}
		if atEOF {
			r.err = io.EOF
			return Stanza{}, io.EOF
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		st, err := r.readStanza(line)
		if err != nil {
			r.err = err
		}
		return st, err
	}
}

// readStanza parses fields starting with firstLine (already known
// non-blank) until a blank line or EOF terminates the paragraph.
func (r *Reader) readStanza(firstLine string) (Stanza, error) {
	st := Stanza{Line: r.line - 1}
	seen := map[string]int{}

	pending := firstLine
	for {
		name, value, ok := splitField(pending)
		if !ok {
			return Stanza{}, errors.Errorf("line %d: malformed field %q", r.line-1, pending)
		}

		for {
			line, atEOF, err := r.peekLine()
			if err != nil {
				return Stanza{}, err
			}
			if atEOF || !isContinuation(line) {
				break
			}
			r.takeLine() // consume the line we just peeked
			value = value + "\n" + strings.TrimRight(line[1:], " \t")
		}

		lower := strings.ToLower(name)
		if ln, dup := seen[lower]; dup {
			return Stanza{}, &DuplicateFieldError{Name: name, Line: ln}
		}
		seen[lower] = r.line

		st.Fields = append(st.Fields, Field{Name: name, Value: value})

		line, atEOF, err := r.takeLine()
		if err != nil {
			return Stanza{}, err
		}
		if atEOF || strings.TrimSpace(line) == "" {
			return st, nil
		}
		pending = line
	}
}

func isContinuation(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func splitField(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	name = line[:idx]
	value = strings.TrimRight(strings.TrimPrefix(line[idx+1:], " "), " \t")
	return name, value, true
}

// takeLine returns the next line, consuming it (either from the one-line
// lookahead buffer or freshly from the underlying reader).
func (r *Reader) takeLine() (line string, atEOF bool, err error) {
	if r.pending != nil {
		l := *r.pending
		r.pending = nil
		return l, false, nil
	}
	return r.readRawLine()
}

// peekLine returns the next line without consuming it; a subsequent
// takeLine call returns the same line.
func (r *Reader) peekLine() (line string, atEOF bool, err error) {
	if r.pending != nil {
		return *r.pending, false, nil
	}
	l, eof, err := r.readRawLine()
	if err != nil || eof {
		return "", eof, err
	}
	r.pending = &l
	return l, false, nil
}

// readRawLine reads one newline-terminated (or EOF-terminated) line
// directly from the buffered rune reader.
func (r *Reader) readRawLine() (string, bool, error) {
	var b strings.Builder
	sawAny := false
	for {
		ru, _, rerr := r.rd.ReadRune()
		if rerr != nil && rerr != io.EOF {
			return "", false, rerr
		}
		if ru == buffruneio.EOF {
			if !sawAny {
				return "", true, nil
			}
			return b.String(), false, nil
		}
		sawAny = true
		if ru == '\n' {
			r.line++
			return b.String(), false, nil
		}
		b.WriteRune(ru)
	}
}

// Format writes stanzas back out in control-file form: fields in their
// original order, a single blank line between stanzas, and no trailing
// blank line after the last one.
func Format(w io.Writer, stanzas []Stanza) error {
	for i, st := range stanzas {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		for _, f := range st.Fields {
			lines := strings.Split(f.Value, "\n")
			if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, lines[0]); err != nil {
				return err
			}
			for _, cont := range lines[1:] {
				if _, err := fmt.Fprintf(w, " %s\n", cont); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
