// Package column reads line-oriented text made of separator-delimited columns
// where nesting is expressed by repeating an indent character at line start.
//
// A Reader is not safe for concurrent use. It keeps a sliding buffer over the
// underlying io.Reader: consumed data is dropped unless a mark is live, in
// which case the buffer keeps everything from the oldest mark on and grows
// geometrically as needed.
package column

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const defaultBufferSize = 4096

// ErrNoMark is returned by Reset and ResetTo when the requested mark does not exist.
var ErrNoMark = errors.New("column: no such mark")

// ParseError reports malformed input at a 1-based line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type mark struct {
	pos      int
	line     int
	colStart bool
}

// Reader is a buffered column reader with checkpointing.
type Reader struct {
	src    io.Reader
	sep    byte
	indent byte

	buf   []byte
	pos   int
	limit int
	base  int64 // absolute offset of buf[0]
	eof   bool

	line     int
	colStart bool
	marks    []mark
}

// NewReader returns a Reader splitting columns at sep and measuring nesting
// depth in repetitions of indent.
func NewReader(src io.Reader, sep, indent byte) *Reader {
	return NewReaderSize(src, sep, indent, defaultBufferSize)
}

// NewReaderSize is like NewReader with an explicit initial buffer size.
func NewReaderSize(src io.Reader, sep, indent byte, size int) *Reader {
	if size < 16 {
		size = 16
	}
	return &Reader{
		src:      src,
		sep:      sep,
		indent:   indent,
		buf:      make([]byte, size),
		line:     1,
		colStart: true,
	}
}

// LineNumber returns the 1-based line of the current position.
func (r *Reader) LineNumber() int {
	return r.line
}

// Errorf builds a ParseError for the current line.
func (r *Reader) Errorf(format string, args ...any) error {
	return &ParseError{Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// fill reads more data, compacting or growing the buffer first.
// It reports whether new bytes became available.
func (r *Reader) fill() (bool, error) {
	if r.eof {
		return false, nil
	}

	keep := r.pos
	if len(r.marks) > 0 && r.marks[0].pos < keep {
		keep = r.marks[0].pos
	}
	if keep > 0 {
		copy(r.buf, r.buf[keep:r.limit])
		r.limit -= keep
		r.pos -= keep
		r.base += int64(keep)
		for i := range r.marks {
			r.marks[i].pos -= keep
		}
	}
	if r.limit == len(r.buf) {
		grown := make([]byte, len(r.buf)*2)
		copy(grown, r.buf[:r.limit])
		r.buf = grown
	}

	for {
		n, err := r.src.Read(r.buf[r.limit:])
		r.limit += n
		if err == io.EOF {
			r.eof = true
			return n > 0, nil
		}
		if err != nil {
			return n > 0, errors.Wrapf(err, "column: read near line %d", r.line)
		}
		if n > 0 {
			return true, nil
		}
	}
}

// peekAt returns the byte off bytes past the current position.
func (r *Reader) peekAt(off int) (byte, bool, error) {
	for r.pos+off >= r.limit {
		more, err := r.fill()
		if err != nil {
			return 0, false, err
		}
		if !more {
			return 0, false, nil
		}
	}
	return r.buf[r.pos+off], true, nil
}

func isEOL(c byte) bool {
	return c == '\n' || c == '\r'
}

// colBounds locates the next column without consuming it. The returned
// offsets are relative to r.pos and stay valid until the next fill. When
// escaped is set a backslash keeps the following byte inside the column, so
// an escaped separator does not end it.
func (r *Reader) colBounds(escaped bool) (start, end int, ok bool, err error) {
	c, ok, err := r.peekAt(0)
	if err != nil || !ok {
		return 0, 0, false, err
	}
	skip := 0
	if r.colStart {
		if isEOL(c) {
			return 0, 0, false, nil
		}
	} else {
		if c != r.sep {
			return 0, 0, false, nil
		}
		skip = 1
	}

	i := skip
	for {
		c, more, err := r.peekAt(i)
		if err != nil {
			return 0, 0, false, err
		}
		if !more || c == r.sep || isEOL(c) {
			return skip, i, true, nil
		}
		if escaped && c == '\\' {
			next, more, err := r.peekAt(i + 1)
			if err != nil {
				return 0, 0, false, err
			}
			if more && !isEOL(next) {
				i++
			}
		}
		i++
	}
}

func (r *Reader) readCol(unescape, consume bool) (string, bool, error) {
	start, end, ok, err := r.colBounds(unescape)
	if err != nil || !ok {
		return "", false, err
	}
	raw := r.buf[r.pos+start : r.pos+end]
	var text string
	if unescape {
		text, err = Unescape(string(raw), r.sep)
		if err != nil {
			return "", false, r.Errorf("%v", err)
		}
	} else {
		text = string(raw)
	}
	if consume {
		r.pos += end
		r.colStart = false
	}
	return text, true, nil
}

// NextCol consumes and returns the next column verbatim. ok is false at the
// end of the line.
func (r *Reader) NextCol() (col string, ok bool, err error) {
	return r.readCol(false, true)
}

// NextEscapedCol consumes the next column and decodes backslash escapes.
func (r *Reader) NextEscapedCol() (col string, ok bool, err error) {
	return r.readCol(true, true)
}

// PeekCol returns the next column without consuming it.
func (r *Reader) PeekCol(unescape bool) (col string, ok bool, err error) {
	return r.readCol(unescape, false)
}

// NextColExpect consumes the next column only if it equals expected.
// On mismatch the position is left unchanged and nothing is allocated.
func (r *Reader) NextColExpect(expected string) (bool, error) {
	start, end, ok, err := r.colBounds(false)
	if err != nil || !ok {
		return false, err
	}
	if string(r.buf[r.pos+start:r.pos+end]) != expected {
		return false, nil
	}
	r.pos += end
	r.colStart = false
	return true, nil
}

// RequireCol consumes the next column and fails with a ParseError naming
// what when the line has no further column.
func (r *Reader) RequireCol(unescape bool, what string) (string, error) {
	col, ok, err := r.readCol(unescape, true)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", r.Errorf("missing column: %s", what)
	}
	return col, nil
}

// NextIntCol consumes the next column as a decimal integer.
func (r *Reader) NextIntCol(what string) (int, error) {
	col, err := r.RequireCol(false, what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(col)
	if err != nil {
		return 0, r.Errorf("invalid %s %q", what, col)
	}
	return v, nil
}

// ReadRest consumes everything up to the end of the line, dropping a leading
// separator if the reader is positioned on one.
func (r *Reader) ReadRest(unescape bool) (string, error) {
	skip := 0
	if !r.colStart {
		c, ok, err := r.peekAt(0)
		if err != nil {
			return "", err
		}
		if ok && c == r.sep {
			skip = 1
		}
	}
	i := skip
	for {
		c, ok, err := r.peekAt(i)
		if err != nil {
			return "", err
		}
		if !ok || isEOL(c) {
			break
		}
		i++
	}
	text := string(r.buf[r.pos+skip : r.pos+i])
	r.pos += i
	r.colStart = false
	if unescape {
		var err error
		if text, err = Unescape(text, r.sep); err != nil {
			return "", r.Errorf("%v", err)
		}
	}
	return text, nil
}

// SkipLine discards the remainder of the current line without decoding it.
func (r *Reader) SkipLine() error {
	i := 0
	for {
		c, ok, err := r.peekAt(i)
		if err != nil {
			return err
		}
		if !ok || isEOL(c) {
			break
		}
		i++
	}
	r.pos += i
	r.colStart = false
	return nil
}

// NextLine moves to the start of the next line if that line is indented by
// exactly depth indent characters. Otherwise it returns false and the
// position is left unchanged, which signals the end of a nesting level.
// A trailing line break at the end of input is consumed so that IsAtEof
// reports true afterwards.
func (r *Reader) NextLine(depth int) (bool, error) {
	i := 0
	for {
		c, ok, err := r.peekAt(i)
		if err != nil || !ok {
			return false, err
		}
		if c == '\n' {
			break
		}
		i++
	}
	for d := 0; d < depth; d++ {
		c, ok, err := r.peekAt(i + 1 + d)
		if err != nil || !ok || c != r.indent {
			return false, err
		}
	}
	c, ok, err := r.peekAt(i + 1 + depth)
	if err != nil {
		return false, err
	}
	if !ok {
		if depth == 0 {
			r.pos += i + 1
		}
		return false, nil
	}
	if c == r.indent {
		// deeper line
		return false, nil
	}
	r.pos += i + 1 + depth
	r.line++
	r.colStart = true
	return true, nil
}

// IsAtBof reports whether nothing has been consumed yet.
func (r *Reader) IsAtBof() bool {
	return r.base+int64(r.pos) == 0
}

// IsAtEol reports whether the current line has no more data.
func (r *Reader) IsAtEol() (bool, error) {
	c, ok, err := r.peekAt(0)
	if err != nil {
		return false, err
	}
	return !ok || isEOL(c), nil
}

// IsAtEof reports whether the input is exhausted.
func (r *Reader) IsAtEof() (bool, error) {
	_, ok, err := r.peekAt(0)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Mark pushes the current position and returns its 1-based index.
func (r *Reader) Mark() int {
	r.marks = append(r.marks, mark{pos: r.pos, line: r.line, colStart: r.colStart})
	return len(r.marks)
}

// Reset rewinds to the most recent mark. The mark stays live, so Reset may
// be repeated.
func (r *Reader) Reset() error {
	return r.ResetTo(len(r.marks))
}

// ResetTo rewinds to the mark with the given index and discards every mark
// pushed after it.
func (r *Reader) ResetTo(index int) error {
	if index < 1 || index > len(r.marks) {
		return errors.Wrapf(ErrNoMark, "index %d of %d", index, len(r.marks))
	}
	m := r.marks[index-1]
	r.pos, r.line, r.colStart = m.pos, m.line, m.colStart
	r.marks = r.marks[:index]
	return nil
}

// Unmark drops the most recent mark without moving.
func (r *Reader) Unmark() {
	if len(r.marks) > 0 {
		r.marks = r.marks[:len(r.marks)-1]
	}
}

// Marks returns the number of live marks.
func (r *Reader) Marks() int {
	return len(r.marks)
}
