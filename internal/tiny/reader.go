// Package tiny reads and writes the Tiny v2 mapping format: a tab separated,
// tab indented text format with one column per namespace.
package tiny

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/column"
	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

// ErrNotTiny is returned when the input does not start with a Tiny v2 header.
var ErrNotTiny = errors.New("tiny: not a tiny v2 file")

const (
	sep    = '\t'
	indent = '\t'
)

// Header holds the namespaces declared on the first line.
type Header struct {
	SrcNs string
	DstNs []string
}

// ReadHeader parses only the header line.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(column.NewReader(r, sep, indent))
}

func readHeader(cr *column.Reader) (Header, error) {
	var h Header
	for _, want := range []string{"tiny", "2"} {
		ok, err := cr.NextColExpect(want)
		if err != nil {
			return h, err
		}
		if !ok {
			return h, ErrNotTiny
		}
	}
	if _, err := cr.NextIntCol("minor version"); err != nil {
		return h, err
	}
	src, err := cr.RequireCol(false, "source namespace")
	if err != nil {
		return h, err
	}
	h.SrcNs = src
	for {
		ns, ok, err := cr.NextCol()
		if err != nil {
			return h, err
		}
		if !ok {
			return h, nil
		}
		h.DstNs = append(h.DstNs, ns)
	}
}

// Read feeds the mapping in r to v. Consumers advertising
// model.NeedsMultiplePasses get their extra passes by rewinding the input,
// which keeps everything after the header buffered until the last pass ends.
func Read(r io.Reader, v visitor.Visitor) error {
	cr := column.NewReader(r, sep, indent)
	h, err := readHeader(cr)
	if err != nil {
		return errors.Wrap(err, "tiny")
	}

	multi := v.Flags().Has(model.NeedsMultiplePasses)
	if multi {
		cr.Mark()
	}
	p := &parser{cr: cr, v: v, header: h, flags: v.Flags()}
	for {
		done, err := p.pass()
		if err != nil {
			return errors.Wrap(err, "tiny")
		}
		if done {
			return nil
		}
		if !multi {
			return errors.Wrap(visitor.ErrExtraPass, "tiny")
		}
		if err := cr.Reset(); err != nil {
			return errors.Wrap(err, "tiny")
		}
		v.Reset()
	}
}

type parser struct {
	cr      *column.Reader
	v       visitor.Visitor
	header  Header
	flags   model.Flags
	escaped bool
}

func (p *parser) pass() (bool, error) {
	p.escaped = false
	header, err := p.v.VisitHeader()
	if err != nil {
		return false, err
	}
	if header {
		if err := p.v.VisitNamespaces(p.header.SrcNs, p.header.DstNs); err != nil {
			return false, err
		}
	}

	var props []model.Property
	for {
		ok, err := p.cr.NextLine(1)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		key, err := p.cr.RequireCol(false, "property key")
		if err != nil {
			return false, err
		}
		value, _, err := p.cr.NextEscapedCol()
		if err != nil {
			return false, err
		}
		if key == model.EscapedNames.Name(model.FormatTiny) {
			p.escaped = true
		}
		props = append(props, model.Property{Key: key, Value: value})
	}
	if header {
		if p.flags.Has(model.NeedsUniqueMetadata) {
			props = latestPerKey(props)
		}
		for _, prop := range props {
			if err := p.v.VisitMetadata(prop.Key, prop.Value); err != nil {
				return false, err
			}
		}
	}

	content, err := p.v.VisitContent()
	if err != nil {
		return false, err
	}
	for {
		ok, err := p.cr.NextLine(0)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		blank, err := p.cr.IsAtEol()
		if err != nil {
			return false, err
		}
		if blank {
			return false, p.cr.Errorf("empty line")
		}
		if !content {
			if err := p.skip(0); err != nil {
				return false, err
			}
			continue
		}
		isClass, err := p.cr.NextColExpect("c")
		if err != nil {
			return false, err
		}
		if isClass {
			err = p.class()
		} else {
			err = p.skip(0)
		}
		if err != nil {
			return false, err
		}
	}
	// a top-level scan only stops early on a line indented deeper than its
	// parent allows, which is the line after the current one
	if err := p.cr.SkipLine(); err != nil {
		return false, err
	}
	eof, err := p.cr.IsAtEof()
	if err != nil {
		return false, err
	}
	if !eof {
		return false, &column.ParseError{Line: p.cr.LineNumber() + 1, Msg: "unexpected indentation"}
	}
	return p.v.VisitEnd()
}

func latestPerKey(props []model.Property) []model.Property {
	last := make(map[string]int, len(props))
	for i, prop := range props {
		last[prop.Key] = i
	}
	out := props[:0]
	for i, prop := range props {
		if last[prop.Key] == i {
			out = append(out, prop)
		}
	}
	return out
}

// skip discards the rest of the current line and every line nested below it.
func (p *parser) skip(depth int) error {
	if err := p.cr.SkipLine(); err != nil {
		return err
	}
	for {
		ok, err := p.cr.NextLine(depth + 1)
		if err != nil || !ok {
			return err
		}
		if err := p.skip(depth + 1); err != nil {
			return err
		}
	}
}

func (p *parser) name(what string, required bool) (string, error) {
	var col string
	var err error
	if required {
		col, err = p.cr.RequireCol(p.escaped, what)
	} else {
		col, _, err = p.readCol()
	}
	if err == nil && required && col == "" {
		err = p.cr.Errorf("empty %s", what)
	}
	return col, err
}

func (p *parser) readCol() (string, bool, error) {
	if p.escaped {
		return p.cr.NextEscapedCol()
	}
	return p.cr.NextCol()
}

func (p *parser) dstNames() ([]string, error) {
	names := make([]string, len(p.header.DstNs))
	for i := range names {
		col, ok, err := p.readCol()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.cr.Errorf("missing destination name column %d", i+1)
		}
		names[i] = col
	}
	return names, nil
}

func (p *parser) optInt(what string) (int, error) {
	col, ok, err := p.cr.NextCol()
	if err != nil || !ok || col == "" {
		return -1, err
	}
	n, err := strconv.Atoi(col)
	if err != nil {
		return 0, p.cr.Errorf("invalid %s %q", what, col)
	}
	return n, nil
}

// open emits an element's names and content gate once its introducing call
// was accepted, and skips its children otherwise.
func (p *parser) open(kind model.Kind, accepted bool, names []string, depth int) (bool, error) {
	if accepted {
		for ns, name := range names {
			if name == "" {
				continue
			}
			if err := p.v.VisitDstName(kind, ns, name); err != nil {
				return false, err
			}
		}
		var err error
		if accepted, err = p.v.VisitElementContent(kind); err != nil {
			return false, err
		}
	}
	if !accepted {
		return false, p.skipChildren(depth)
	}
	return true, nil
}

func (p *parser) skipChildren(depth int) error {
	for {
		ok, err := p.cr.NextLine(depth + 1)
		if err != nil || !ok {
			return err
		}
		if err := p.skip(depth + 1); err != nil {
			return err
		}
	}
}

// children walks the lines nested under an element. handle is called with
// the keyword column already consumed; comments are collected and emitted
// last.
func (p *parser) children(kind model.Kind, depth int, handle func(key string) (bool, error)) error {
	var comment string
	for {
		ok, err := p.cr.NextLine(depth + 1)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, err := p.cr.RequireCol(false, "entry kind")
		if err != nil {
			return err
		}
		if key == "c" {
			if comment, err = p.cr.RequireCol(true, "comment"); err != nil {
				return err
			}
			continue
		}
		handled := false
		if handle != nil {
			if handled, err = handle(key); err != nil {
				return err
			}
		}
		if !handled {
			if err := p.skip(depth + 1); err != nil {
				return err
			}
		}
	}
	if comment == "" {
		return nil
	}
	return p.v.VisitComment(kind, comment)
}

func (p *parser) class() error {
	name, err := p.name("class name", true)
	if err != nil {
		return err
	}
	names, err := p.dstNames()
	if err != nil {
		return err
	}
	accepted, err := p.v.VisitClass(name)
	if err != nil {
		return err
	}
	if ok, err := p.open(model.Class, accepted, names, 0); err != nil || !ok {
		return err
	}
	return p.children(model.Class, 0, func(key string) (bool, error) {
		switch key {
		case "f":
			return true, p.member(model.Field)
		case "m":
			return true, p.member(model.Method)
		}
		return false, nil
	})
}

func (p *parser) member(kind model.Kind) error {
	desc, err := p.name(string(kind)+" descriptor", true)
	if err != nil {
		return err
	}
	name, err := p.name(string(kind)+" name", true)
	if err != nil {
		return err
	}
	names, err := p.dstNames()
	if err != nil {
		return err
	}
	var accepted bool
	if kind == model.Field {
		accepted, err = p.v.VisitField(name, desc)
	} else {
		accepted, err = p.v.VisitMethod(name, desc)
	}
	if err != nil {
		return err
	}
	if ok, err := p.open(kind, accepted, names, 1); err != nil || !ok {
		return err
	}
	if kind == model.Field {
		return p.children(kind, 1, nil)
	}
	return p.children(kind, 1, func(key string) (bool, error) {
		switch key {
		case "p":
			return true, p.arg()
		case "v":
			return true, p.variable()
		}
		return false, nil
	})
}

func (p *parser) arg() error {
	lv, err := p.cr.NextIntCol("parameter variable index")
	if err != nil {
		return err
	}
	name, err := p.name("parameter name", false)
	if err != nil {
		return err
	}
	names, err := p.dstNames()
	if err != nil {
		return err
	}
	accepted, err := p.v.VisitMethodArg(-1, lv, name)
	if err != nil {
		return err
	}
	if ok, err := p.open(model.MethodArg, accepted, names, 2); err != nil || !ok {
		return err
	}
	return p.children(model.MethodArg, 2, nil)
}

func (p *parser) variable() error {
	lv, err := p.cr.NextIntCol("variable index")
	if err != nil {
		return err
	}
	start, err := p.cr.NextIntCol("variable start offset")
	if err != nil {
		return err
	}
	row, err := p.optInt("variable table index")
	if err != nil {
		return err
	}
	name, err := p.name("variable name", false)
	if err != nil {
		return err
	}
	names, err := p.dstNames()
	if err != nil {
		return err
	}
	accepted, err := p.v.VisitMethodVar(row, lv, start, -1, name)
	if err != nil {
		return err
	}
	if ok, err := p.open(model.MethodVar, accepted, names, 2); err != nil || !ok {
		return err
	}
	return p.children(model.MethodVar, 2, nil)
}
