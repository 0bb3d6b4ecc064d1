package tiny

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/column"
	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

// ErrNeedsEscape is returned when a name contains a tab, line break,
// backslash or NUL and the header did not declare escaped-names.
var ErrNeedsEscape = errors.New("tiny: name needs escaping but escaped-names is not set")

// ErrMissingDesc is returned for a field or method without a source descriptor.
var ErrMissingDesc = errors.New("tiny: member without a source descriptor")

// Writer serializes a visit as Tiny v2. Every call that introduces an element
// must be followed by its names and VisitElementContent.
type Writer struct {
	w       *bufio.Writer
	dstNs   int
	escaped bool

	line    []string
	depth   int
	names   []string
	pending bool
}

var _ visitor.Visitor = (*Writer)(nil)

// NewWriter returns a Writer writing to w. Output is flushed at VisitEnd.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Flags() model.Flags {
	return model.NeedsHeaderMetadata |
		model.NeedsUniqueMetadata |
		model.NeedsElementUniqueness |
		model.NeedsSrcFieldDesc |
		model.NeedsSrcMethodDesc
}

func (w *Writer) Reset() {
	w.escaped = false
	w.pending = false
}

func (w *Writer) VisitHeader() (bool, error) { return true, nil }

func (w *Writer) VisitNamespaces(srcNs string, dstNs []string) error {
	w.dstNs = len(dstNs)
	w.names = make([]string, len(dstNs))
	cols := append([]string{"tiny", "2", "0", srcNs}, dstNs...)
	for _, c := range cols {
		if column.NeedsEscape(c, sep) {
			return errors.Errorf("tiny: namespace %q cannot be written", c)
		}
	}
	return w.writeLine(0, cols)
}

func (w *Writer) VisitMetadata(key, value string) error {
	if column.NeedsEscape(key, sep) {
		return errors.Errorf("tiny: metadata key %q cannot be written", key)
	}
	if key == model.EscapedNames.Name(model.FormatTiny) {
		w.escaped = true
	}
	cols := []string{key}
	if value != "" {
		cols = append(cols, column.Escape(value, sep))
	}
	return w.writeLine(1, cols)
}

func (w *Writer) VisitContent() (bool, error) { return true, nil }

func (w *Writer) VisitClass(srcName string) (bool, error) {
	return w.begin(0, "c", srcName)
}

func (w *Writer) VisitField(srcName, srcDesc string) (bool, error) {
	return w.member("f", srcName, srcDesc)
}

func (w *Writer) VisitMethod(srcName, srcDesc string) (bool, error) {
	return w.member("m", srcName, srcDesc)
}

func (w *Writer) member(key, srcName, srcDesc string) (bool, error) {
	if srcDesc == "" {
		return false, errors.Wrapf(ErrMissingDesc, "%s", srcName)
	}
	desc, err := w.name(srcDesc)
	if err != nil {
		return false, err
	}
	return w.begin(1, key, desc, srcName)
}

func (w *Writer) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	return w.begin(2, "p", strconv.Itoa(lvIndex), srcName)
}

func (w *Writer) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	row := ""
	if lvtRowIndex >= 0 {
		row = strconv.Itoa(lvtRowIndex)
	}
	return w.begin(2, "v", strconv.Itoa(lvIndex), strconv.Itoa(startOpIdx), row, srcName)
}

// begin buffers an element line; the last column of cols is the source name
// and is escaped as one.
func (w *Writer) begin(depth int, cols ...string) (bool, error) {
	last := len(cols) - 1
	name, err := w.name(cols[last])
	if err != nil {
		return false, err
	}
	cols[last] = name
	w.line = append(w.line[:0], cols...)
	w.depth = depth
	clear(w.names)
	w.pending = true
	return true, nil
}

func (w *Writer) name(s string) (string, error) {
	if !column.NeedsEscape(s, sep) {
		return s, nil
	}
	if !w.escaped {
		return "", errors.Wrapf(ErrNeedsEscape, "%q", s)
	}
	return column.Escape(s, sep), nil
}

func (w *Writer) VisitDstName(kind model.Kind, namespace int, name string) error {
	if namespace < 0 || namespace >= w.dstNs {
		return errors.Errorf("tiny: destination namespace %d out of range", namespace)
	}
	escaped, err := w.name(name)
	if err != nil {
		return err
	}
	w.names[namespace] = escaped
	return nil
}

func (w *Writer) VisitDstDesc(model.Kind, int, string) error { return nil }

func (w *Writer) VisitElementContent(model.Kind) (bool, error) {
	if !w.pending {
		return true, nil
	}
	w.pending = false
	return true, w.writeLine(w.depth, append(w.line, w.names...))
}

func (w *Writer) VisitComment(kind model.Kind, comment string) error {
	return w.writeLine(depthOf(kind)+1, []string{"c", column.Escape(comment, sep)})
}

func (w *Writer) VisitEnd() (bool, error) {
	return true, errors.Wrap(w.w.Flush(), "tiny")
}

func depthOf(kind model.Kind) int {
	switch kind {
	case model.Class:
		return 0
	case model.Field, model.Method:
		return 1
	default:
		return 2
	}
}

func (w *Writer) writeLine(depth int, cols []string) error {
	w.w.WriteString(strings.Repeat(string(indent), depth))
	for i, c := range cols {
		if i > 0 {
			w.w.WriteByte(sep)
		}
		w.w.WriteString(c)
	}
	return w.w.WriteByte('\n')
}
