// Package toon writes mappings as TOON (Token-Oriented Object Notation)
// tables. It consumes the flat visitor shape, so every row carries the full
// identity of its element.
package toon

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Writer buffers one pass and writes it as TOON tables at VisitEnd.
type Writer struct {
	out io.Writer

	srcNs    string
	dstNs    []string
	metadata [][]string
	classes  [][]string
	fields   [][]string
	methods  [][]string
	args     [][]string
	vars     [][]string
	comments [][]string
}

var _ visitor.FlatVisitor = (*Writer)(nil)

// NewWriter returns a Writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// NewVisitor wraps a new Writer for stateful producers.
func NewVisitor(out io.Writer) visitor.Visitor {
	return visitor.FlatAsRegular(NewWriter(out))
}

func (w *Writer) Flags() model.Flags {
	return model.NeedsHeaderMetadata |
		model.NeedsUniqueMetadata |
		model.NeedsElementUniqueness |
		model.NeedsSrcFieldDesc |
		model.NeedsSrcMethodDesc
}

func (w *Writer) Reset() {
	*w = Writer{out: w.out}
}

func (w *Writer) VisitHeader() (bool, error) { return true, nil }

func (w *Writer) VisitNamespaces(srcNs string, dstNs []string) error {
	w.srcNs = srcNs
	w.dstNs = append([]string(nil), dstNs...)
	return nil
}

func (w *Writer) VisitMetadata(key, value string) error {
	key = model.TranslateKey(model.FormatTiny, model.FormatToon, key)
	w.metadata = append(w.metadata, []string{key, value})
	return nil
}

func (w *Writer) VisitContent() (bool, error) { return true, nil }

// row appends the destination names to head, padded to the namespace count.
func (w *Writer) row(head []string, names []string) []string {
	out := make([]string, len(head), len(head)+len(w.dstNs))
	copy(out, head)
	for i := range w.dstNs {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out = append(out, name)
	}
	return out
}

// comment appends a comments row. owner is class, member and descriptor;
// sub carries the argument or variable identity and is blank otherwise.
func (w *Writer) comment(kind model.Kind, owner, sub []string, text string) {
	row := make([]string, 0, 11)
	row = append(row, string(kind))
	row = append(row, owner...)
	if sub == nil {
		sub = make([]string, 6)
	}
	row = append(row, sub...)
	w.comments = append(w.comments, append(row, text))
}

func (w *Writer) VisitClass(c visitor.ClassRef) (bool, error) {
	w.classes = append(w.classes, w.row([]string{c.SrcName}, c.DstNames))
	return true, nil
}

func (w *Writer) VisitClassComment(c visitor.ClassRef, comment string) error {
	w.comment(model.Class, []string{c.SrcName, "", ""}, nil, comment)
	return nil
}

func (w *Writer) VisitField(f visitor.MemberRef) (bool, error) {
	w.fields = append(w.fields, w.row([]string{f.Owner.SrcName, f.SrcName, f.SrcDesc}, f.DstNames))
	return true, nil
}

func (w *Writer) VisitFieldComment(f visitor.MemberRef, comment string) error {
	w.comment(model.Field, []string{f.Owner.SrcName, f.SrcName, f.SrcDesc}, nil, comment)
	return nil
}

func (w *Writer) VisitMethod(m visitor.MemberRef) (bool, error) {
	w.methods = append(w.methods, w.row([]string{m.Owner.SrcName, m.SrcName, m.SrcDesc}, m.DstNames))
	return true, nil
}

func (w *Writer) VisitMethodComment(m visitor.MemberRef, comment string) error {
	w.comment(model.Method, []string{m.Owner.SrcName, m.SrcName, m.SrcDesc}, nil, comment)
	return nil
}

func (w *Writer) VisitMethodArg(a visitor.ArgRef) (bool, error) {
	head := []string{
		a.Method.Owner.SrcName,
		a.Method.SrcName,
		a.Method.SrcDesc,
		strconv.Itoa(a.ArgPosition),
		strconv.Itoa(a.LvIndex),
		a.SrcName,
	}
	w.args = append(w.args, w.row(head, a.DstNames))
	return true, nil
}

func (w *Writer) VisitMethodArgComment(a visitor.ArgRef, comment string) error {
	w.comment(model.MethodArg,
		[]string{a.Method.Owner.SrcName, a.Method.SrcName, a.Method.SrcDesc},
		[]string{strconv.Itoa(a.ArgPosition), "", strconv.Itoa(a.LvIndex), "", "", a.SrcName},
		comment)
	return nil
}

func (w *Writer) VisitMethodVar(v visitor.VarRef) (bool, error) {
	head := []string{
		v.Method.Owner.SrcName,
		v.Method.SrcName,
		v.Method.SrcDesc,
		strconv.Itoa(v.LvtRowIndex),
		strconv.Itoa(v.LvIndex),
		strconv.Itoa(v.StartOpIdx),
		strconv.Itoa(v.EndOpIdx),
		v.SrcName,
	}
	w.vars = append(w.vars, w.row(head, v.DstNames))
	return true, nil
}

func (w *Writer) VisitMethodVarComment(v visitor.VarRef, comment string) error {
	w.comment(model.MethodVar,
		[]string{v.Method.Owner.SrcName, v.Method.SrcName, v.Method.SrcDesc},
		[]string{"", strconv.Itoa(v.LvtRowIndex), strconv.Itoa(v.LvIndex),
			strconv.Itoa(v.StartOpIdx), strconv.Itoa(v.EndOpIdx), v.SrcName},
		comment)
	return nil
}

func (w *Writer) VisitEnd() (bool, error) {
	_, err := io.WriteString(w.out, w.Encode()+"\n")
	return true, errors.Wrap(err, "toon")
}

// Encode renders everything collected so far.
func (w *Writer) Encode() string {
	var parts []string

	nsRows := [][]string{{"src", w.srcNs}}
	for _, ns := range w.dstNs {
		nsRows = append(nsRows, []string{"dst", ns})
	}
	parts = append(parts, formatTabular("namespaces", []string{"role", "name"}, nsRows))
	parts = append(parts, formatTabular("metadata", []string{"key", "value"}, w.metadata))

	cols := func(head ...string) []string {
		return append(head, w.dstNs...)
	}
	parts = append(parts, formatTabular("classes", cols(w.srcNs), w.classes))
	parts = append(parts, formatTabular("fields", cols("class", w.srcNs, "desc"), w.fields))
	parts = append(parts, formatTabular("methods", cols("class", w.srcNs, "desc"), w.methods))

	if len(w.args) > 0 {
		parts = append(parts, formatTabular("args",
			cols("class", "method", "desc", "position", "lv", w.srcNs), w.args))
	}
	if len(w.vars) > 0 {
		parts = append(parts, formatTabular("vars",
			cols("class", "method", "desc", "lvt", "lv", "start", "end", w.srcNs), w.vars))
	}
	if len(w.comments) > 0 {
		parts = append(parts, formatTabular("comments",
			[]string{"kind", "class", "member", "desc", "position", "lvt", "lv", "start", "end", "name", "comment"},
			w.comments))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = encodeValue(c)
	}
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(header, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
