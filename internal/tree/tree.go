// Package tree holds mappings in memory. A Tree is a visitor.Visitor sink
// that merges whatever it is fed and a source that replays its content into
// any other visitor.
//
// A Tree is not safe for concurrent use.
package tree

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/model"
)

// Namespace IDs besides the destination indexes 0..n-1.
const (
	SrcNamespace  = -1
	NullNamespace = -2
)

var (
	ErrNoClass            = errors.New("tree: member visited without a class")
	ErrNoMethod           = errors.New("tree: argument or variable visited without a method")
	ErrUnknownNamespace   = errors.New("tree: unknown namespace")
	ErrDuplicateNamespace = errors.New("tree: duplicate namespace")
	ErrUnrelatedNamespace = errors.New("tree: source namespace unrelated to a non-empty tree")
	ErrSrcNameChange      = errors.New("tree: source name cannot change")
	ErrNoSrcName          = errors.New("tree: missing source name")
)

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tree) {
		t.log = l
	}
}

// WithDstIndex keeps a (namespace, destination name) to class index so
// ClassIn runs in constant time.
func WithDstIndex() Option {
	return func(t *Tree) {
		t.indexed = true
	}
}

// WithHierarchy enables method hierarchy propagation after every VisitEnd.
func WithHierarchy(p HierarchyProvider) Option {
	return func(t *Tree) {
		t.hierarchy = p
	}
}

// Tree is an in-memory mapping set.
type Tree struct {
	log       logrus.FieldLogger
	indexed   bool
	hierarchy HierarchyProvider

	srcNs    string
	dstNs    []string
	metadata []model.Property

	classes    map[string]*Class
	classOrder []*Class
	index      []map[string]*Class

	visit visitState
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New returns an empty Tree.
func New(opts ...Option) *Tree {
	t := &Tree{
		classes: make(map[string]*Class),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = discardLogger()
	}
	t.rebuildIndex()
	t.visit.reset()
	return t
}

// SrcNamespace returns the source namespace name, "" if unset.
func (t *Tree) SrcNamespace() string {
	return t.srcNs
}

// DstNamespaces returns a copy of the destination namespace names.
func (t *Tree) DstNamespaces() []string {
	return append([]string(nil), t.dstNs...)
}

// NamespaceID returns SrcNamespace, a destination index, or NullNamespace.
func (t *Tree) NamespaceID(name string) int {
	if name == "" {
		return NullNamespace
	}
	if name == t.srcNs {
		return SrcNamespace
	}
	for i, ns := range t.dstNs {
		if ns == name {
			return i
		}
	}
	return NullNamespace
}

// NamespaceName is the inverse of NamespaceID.
func (t *Tree) NamespaceName(id int) string {
	switch {
	case id == SrcNamespace:
		return t.srcNs
	case id >= 0 && id < len(t.dstNs):
		return t.dstNs[id]
	}
	return ""
}

func (t *Tree) checkNs(id int) error {
	if id < 0 || id >= len(t.dstNs) {
		return errors.Wrapf(ErrUnknownNamespace, "destination index %d", id)
	}
	return nil
}

// Metadata returns the header properties in visit order, duplicates included.
func (t *Tree) Metadata() []model.Property {
	return append([]model.Property(nil), t.metadata...)
}

// MetadataValue returns the latest value recorded for key.
func (t *Tree) MetadataValue(key string) (string, bool) {
	for i := len(t.metadata) - 1; i >= 0; i-- {
		if t.metadata[i].Key == key {
			return t.metadata[i].Value, true
		}
	}
	return "", false
}

// AddMetadata appends a property.
func (t *Tree) AddMetadata(key, value string) {
	t.metadata = append(t.metadata, model.Property{Key: key, Value: value})
}

// RemoveMetadata drops every property with key and reports whether any existed.
func (t *Tree) RemoveMetadata(key string) bool {
	kept := t.metadata[:0]
	for _, p := range t.metadata {
		if p.Key != key {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(t.metadata)
	t.metadata = kept
	return removed
}

// uniqueMetadata keeps the latest value per key, ordered by that occurrence.
func uniqueMetadata(props []model.Property) []model.Property {
	last := make(map[string]int, len(props))
	for i, p := range props {
		last[p.Key] = i
	}
	out := make([]model.Property, 0, len(last))
	for i, p := range props {
		if last[p.Key] == i {
			out = append(out, p)
		}
	}
	return out
}

// Classes returns the classes in insertion order.
func (t *Tree) Classes() []*Class {
	return append([]*Class(nil), t.classOrder...)
}

// Class returns the class with the given source name, or nil.
func (t *Tree) Class(srcName string) *Class {
	return t.classes[srcName]
}

// ClassIn returns the class named name in namespace ns, or nil.
func (t *Tree) ClassIn(name string, ns int) *Class {
	if ns == SrcNamespace {
		return t.classes[name]
	}
	if ns < 0 || ns >= len(t.dstNs) || name == "" {
		return nil
	}
	if t.index != nil {
		return t.index[ns][name]
	}
	for _, c := range t.classOrder {
		if c.dstNames[ns] == name {
			return c
		}
	}
	return nil
}

// AddClass returns the class with srcName, creating it when missing.
func (t *Tree) AddClass(srcName string) (*Class, error) {
	if srcName == "" {
		return nil, errors.Wrap(ErrNoSrcName, "class")
	}
	if c, ok := t.classes[srcName]; ok {
		return c, nil
	}
	c := newClass(t, srcName)
	t.classes[srcName] = c
	t.classOrder = append(t.classOrder, c)
	return c, nil
}

// RemoveClass deletes a class and everything it owns.
func (t *Tree) RemoveClass(srcName string) bool {
	c, ok := t.classes[srcName]
	if !ok {
		return false
	}
	delete(t.classes, srcName)
	for i, o := range t.classOrder {
		if o == c {
			t.classOrder = append(t.classOrder[:i], t.classOrder[i+1:]...)
			break
		}
	}
	for ns, name := range c.dstNames {
		t.unindex(ns, name, c)
	}
	return true
}

func (t *Tree) rebuildIndex() {
	if !t.indexed {
		t.index = nil
		return
	}
	t.index = make([]map[string]*Class, len(t.dstNs))
	for ns := range t.index {
		t.index[ns] = make(map[string]*Class)
	}
	for _, c := range t.classOrder {
		for ns, name := range c.dstNames {
			if name != "" {
				t.index[ns][name] = c
			}
		}
	}
}

func (t *Tree) unindex(ns int, name string, c *Class) {
	if t.index == nil || name == "" {
		return
	}
	if t.index[ns][name] == c {
		delete(t.index[ns], name)
	}
}

func (t *Tree) reindex(ns int, name string, c *Class) {
	if t.index == nil || name == "" {
		return
	}
	if prev, ok := t.index[ns][name]; ok && prev != c {
		t.log.WithFields(logrus.Fields{
			"namespace": t.dstNs[ns],
			"name":      name,
			"previous":  prev.srcName,
			"class":     c.srcName,
		}).Debug("destination class name reused")
	}
	t.index[ns][name] = c
}
