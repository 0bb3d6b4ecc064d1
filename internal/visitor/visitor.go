// Package visitor defines the push protocol every mapping producer and
// consumer speaks, in a stateful and a flat shape, plus adapters between
// them and a few forwarding transformers.
//
// A pass runs header, namespaces, metadata, content and end in that order.
// Every call that introduces an element returns whether the consumer wants
// it; on false the producer skips the element's names, children and comment.
// VisitElementContent fires once per element after its destination names and
// descriptors and gates descent into children. VisitEnd returning false asks
// the producer to restart the whole sequence, which only consumers advertising
// model.NeedsMultiplePasses may do.
//
// Empty strings stand for absent names, descriptors and comments; -1 stands
// for an unknown integer attribute.
package visitor

import (
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/model"
)

// ErrExtraPass is returned by producers when a consumer requests another pass
// it did not advertise or that the producer cannot replay.
var ErrExtraPass = errors.New("visitor: consumer requested an unsupported extra pass")

// Visitor is the stateful shape: calls implicitly target the most recently
// visited owner.
type Visitor interface {
	Flags() model.Flags
	// Reset is called before a producer restarts a pass.
	Reset()

	VisitHeader() (bool, error)
	VisitNamespaces(srcNs string, dstNs []string) error
	VisitMetadata(key, value string) error
	VisitContent() (bool, error)

	VisitClass(srcName string) (bool, error)
	VisitField(srcName, srcDesc string) (bool, error)
	VisitMethod(srcName, srcDesc string) (bool, error)
	VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error)
	VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error)

	VisitDstName(kind model.Kind, namespace int, name string) error
	VisitDstDesc(kind model.Kind, namespace int, desc string) error
	VisitElementContent(kind model.Kind) (bool, error)
	VisitComment(kind model.Kind, comment string) error

	VisitEnd() (bool, error)
}

// Forwarding passes every call to Next. Transformers embed it and override
// the calls they care about.
type Forwarding struct {
	Next Visitor
}

func (f *Forwarding) Flags() model.Flags { return f.Next.Flags() }

func (f *Forwarding) Reset() { f.Next.Reset() }

func (f *Forwarding) VisitHeader() (bool, error) { return f.Next.VisitHeader() }

func (f *Forwarding) VisitNamespaces(srcNs string, dstNs []string) error {
	return f.Next.VisitNamespaces(srcNs, dstNs)
}

func (f *Forwarding) VisitMetadata(key, value string) error { return f.Next.VisitMetadata(key, value) }

func (f *Forwarding) VisitContent() (bool, error) { return f.Next.VisitContent() }

func (f *Forwarding) VisitClass(srcName string) (bool, error) {
	return f.Next.VisitClass(srcName)
}

func (f *Forwarding) VisitField(srcName, srcDesc string) (bool, error) {
	return f.Next.VisitField(srcName, srcDesc)
}

func (f *Forwarding) VisitMethod(srcName, srcDesc string) (bool, error) {
	return f.Next.VisitMethod(srcName, srcDesc)
}

func (f *Forwarding) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	return f.Next.VisitMethodArg(argPosition, lvIndex, srcName)
}

func (f *Forwarding) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	return f.Next.VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx, srcName)
}

func (f *Forwarding) VisitDstName(kind model.Kind, namespace int, name string) error {
	return f.Next.VisitDstName(kind, namespace, name)
}

func (f *Forwarding) VisitDstDesc(kind model.Kind, namespace int, desc string) error {
	return f.Next.VisitDstDesc(kind, namespace, desc)
}

func (f *Forwarding) VisitElementContent(kind model.Kind) (bool, error) {
	return f.Next.VisitElementContent(kind)
}

func (f *Forwarding) VisitComment(kind model.Kind, comment string) error {
	return f.Next.VisitComment(kind, comment)
}

func (f *Forwarding) VisitEnd() (bool, error) { return f.Next.VisitEnd() }

// Nop accepts everything and keeps nothing. It is useful as the tail of a
// chain in tests and as a counting base.
type Nop struct {
	flags model.Flags
}

// NewNop returns a Nop advertising flags.
func NewNop(flags model.Flags) *Nop { return &Nop{flags: flags} }

func (n *Nop) Flags() model.Flags { return n.flags }

func (n *Nop) Reset() {}

func (n *Nop) VisitHeader() (bool, error) { return true, nil }

func (n *Nop) VisitNamespaces(string, []string) error { return nil }

func (n *Nop) VisitMetadata(string, string) error { return nil }

func (n *Nop) VisitContent() (bool, error) { return true, nil }

func (n *Nop) VisitClass(string) (bool, error) { return true, nil }

func (n *Nop) VisitField(string, string) (bool, error) { return true, nil }

func (n *Nop) VisitMethod(string, string) (bool, error) { return true, nil }

func (n *Nop) VisitMethodArg(int, int, string) (bool, error) { return true, nil }

func (n *Nop) VisitMethodVar(int, int, int, int, string) (bool, error) {
	return true, nil
}

func (n *Nop) VisitDstName(model.Kind, int, string) error { return nil }

func (n *Nop) VisitDstDesc(model.Kind, int, string) error { return nil }

func (n *Nop) VisitElementContent(model.Kind) (bool, error) { return true, nil }

func (n *Nop) VisitComment(model.Kind, string) error { return nil }

func (n *Nop) VisitEnd() (bool, error) { return true, nil }
