// Package format is the registry of mapping formats symmap can read and
// write, and the entry point that matches a producer's guarantees to a
// consumer's flags.
package format

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/tiny"
	"github.com/phobologic/symmap/internal/toon"
	"github.com/phobologic/symmap/internal/tree"
	"github.com/phobologic/symmap/internal/visitor"
)

var (
	// ErrUnknownFormat is returned for a name, extension or content that
	// matches no registered format.
	ErrUnknownFormat = errors.New("format: unknown format")
	// ErrNotReadable is returned when reading a write-only format.
	ErrNotReadable = errors.New("format: format cannot be read")
	// ErrNotWritable is returned when writing a read-only format.
	ErrNotWritable = errors.New("format: format cannot be written")
)

// Features is what a format can carry and what its reader guarantees.
type Features struct {
	Metadata    bool
	FieldDescs  bool
	MethodDescs bool
	Args        bool
	Vars        bool
	Comments    bool
	// UniqueElements means the reader never visits an element twice in a pass.
	UniqueElements bool
	// MultiplePasses means the reader can replay itself on request.
	MultiplePasses bool
}

// Format describes one registered mapping format.
type Format struct {
	Name       string
	Extensions []string
	Features   Features

	// Detect reports whether head, the start of a file, is in this format.
	Detect func(head []byte) bool
	Reader func(r io.Reader, v visitor.Visitor) error
	Writer func(w io.Writer) visitor.Visitor
}

func (f *Format) String() string { return f.Name }

// Readable reports whether f has a reader.
func (f *Format) Readable() bool { return f.Reader != nil }

// Writable reports whether f has a writer.
func (f *Format) Writable() bool { return f.Writer != nil }

// NewWriter returns a consumer writing f to w.
func (f *Format) NewWriter(w io.Writer) (visitor.Visitor, error) {
	if f.Writer == nil {
		return nil, errors.Wrap(ErrNotWritable, f.Name)
	}
	return f.Writer(w), nil
}

var (
	Tiny = &Format{
		Name:       "tiny",
		Extensions: []string{".tiny"},
		Features: Features{
			Metadata:       true,
			FieldDescs:     true,
			MethodDescs:    true,
			Args:           true,
			Vars:           true,
			Comments:       true,
			UniqueElements: true,
			MultiplePasses: true,
		},
		Detect: func(head []byte) bool { return bytes.HasPrefix(head, []byte("tiny\t2\t")) },
		Reader: tiny.Read,
		Writer: func(w io.Writer) visitor.Visitor { return tiny.NewWriter(w) },
	}
	Toon = &Format{
		Name:       "toon",
		Extensions: []string{".toon"},
		Features: Features{
			Metadata:    true,
			FieldDescs:  true,
			MethodDescs: true,
			Args:        true,
			Vars:        true,
			Comments:    true,
		},
		Writer: toon.NewVisitor,
	}
)

var registry = []*Format{Tiny, Toon}

// All returns the registered formats.
func All() []*Format {
	return append([]*Format(nil), registry...)
}

// Register adds f to the registry. Formats registered later lose ties in
// detection and extension lookup.
func Register(f *Format) {
	registry = append(registry, f)
}

// ByName looks a format up by name, case-insensitively.
func ByName(name string) (*Format, error) {
	for _, f := range registry {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "name %q", name)
}

// ByPath looks a format up by file extension.
func ByPath(path string) (*Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range registry {
		for _, e := range f.Extensions {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "extension of %s", path)
}

const detectSize = 64

// Detect inspects the start of r without consuming it. r should be the
// reader subsequently passed to Read.
func Detect(r *bufio.Reader) (*Format, error) {
	head, err := r.Peek(detectSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(err, "format: detect")
	}
	for _, f := range registry {
		if f.Detect != nil && f.Detect(head) {
			return f, nil
		}
	}
	return nil, ErrUnknownFormat
}

// Options tune Read.
type Options struct {
	Logger logrus.FieldLogger
}

// Read feeds r, encoded as f, to v. When v's flags ask for something the
// reader cannot guarantee, the input is first loaded into a tree and
// replayed from there.
func Read(r io.Reader, f *Format, v visitor.Visitor, opts Options) error {
	if f.Reader == nil {
		return errors.Wrap(ErrNotReadable, f.Name)
	}
	log := opts.Logger
	if log == nil {
		log = discard()
	}

	flags := v.Flags()
	var reasons []string
	if flags.Has(model.NeedsElementUniqueness) && !f.Features.UniqueElements {
		reasons = append(reasons, "element uniqueness")
	}
	if flags.Has(model.NeedsMultiplePasses) && !f.Features.MultiplePasses {
		reasons = append(reasons, "multiple passes")
	}
	if len(reasons) == 0 {
		return errors.Wrapf(f.Reader(r, v), "read %s", f.Name)
	}

	log.WithFields(logrus.Fields{
		"format": f.Name,
		"needs":  strings.Join(reasons, ","),
	}).Debug("buffering input in a tree")
	t := tree.New(tree.WithLogger(log))
	if err := f.Reader(r, t); err != nil {
		return errors.Wrapf(err, "read %s", f.Name)
	}
	return t.Accept(v)
}

// ReadFile reads the mapping at path into v. A nil f is detected from the
// file content, falling back to the extension.
func ReadFile(path string, f *Format, v visitor.Visitor, opts Options) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "format")
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if f == nil {
		if f, err = Detect(br); err != nil {
			if f, err = ByPath(path); err != nil {
				return err
			}
		}
	}
	return errors.Wrap(Read(br, f, v, opts), path)
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
