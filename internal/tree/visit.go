package tree

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

var _ visitor.Visitor = (*Tree)(nil)

// visitState is the element a producer is currently pointing at.
type visitState struct {
	// srcNs is SrcNamespace, or the destination index the producer's source
	// namespace matches, in which case elements are resolved by that name.
	srcNs int
	// nsMap maps the producer's destination indexes to ours.
	nsMap []int

	class  *Class
	field  *Field
	method *Method
	arg    *MethodArg
	lv     *MethodVar
}

func (s *visitState) reset() {
	*s = visitState{srcNs: SrcNamespace, nsMap: s.nsMap}
}

// Flags reports that a Tree accepts any producer.
func (t *Tree) Flags() model.Flags { return model.NoFlags }

// Reset drops the current visit position.
func (t *Tree) Reset() { t.visit.reset() }

func (t *Tree) VisitHeader() (bool, error) { return true, nil }

// VisitNamespaces merges the producer's namespaces into the tree. A producer
// source namespace matching one of our destination namespaces makes the
// following elements resolve by that destination name; unknown elements are
// then skipped. Producer destination namespaces we lack are appended.
func (t *Tree) VisitNamespaces(srcNs string, dstNs []string) error {
	t.visit.reset()
	switch id := t.NamespaceID(srcNs); {
	case t.srcNs == "" || id == SrcNamespace:
		t.srcNs = srcNs
		t.visit.srcNs = SrcNamespace
	case id >= 0:
		t.visit.srcNs = id
	case len(t.classOrder) == 0:
		t.log.WithFields(logrus.Fields{
			"old": t.srcNs,
			"new": srcNs,
		}).Debug("replacing source namespace of empty tree")
		if _, err := t.SetSrcNamespace(srcNs); err != nil {
			return err
		}
		t.visit.srcNs = SrcNamespace
	default:
		return errors.Wrapf(ErrUnrelatedNamespace, "%q with tree source %q", srcNs, t.srcNs)
	}

	t.visit.nsMap = make([]int, len(dstNs))
	for i, ns := range dstNs {
		id, err := t.AddDstNamespace(ns)
		if err != nil {
			return err
		}
		t.visit.nsMap[i] = id
	}
	return nil
}

func (t *Tree) VisitMetadata(key, value string) error {
	t.AddMetadata(key, value)
	return nil
}

func (t *Tree) VisitContent() (bool, error) { return true, nil }

func (t *Tree) VisitClass(srcName string) (bool, error) {
	s := &t.visit
	s.class, s.field, s.method, s.arg, s.lv = nil, nil, nil, nil, nil
	if s.srcNs != SrcNamespace {
		s.class = t.ClassIn(srcName, s.srcNs)
		if s.class == nil {
			t.log.WithField("class", srcName).Debug("skipping class unknown in merge namespace")
			return false, nil
		}
		return true, nil
	}
	c, err := t.AddClass(srcName)
	if err != nil {
		return false, err
	}
	s.class = c
	return true, nil
}

func (t *Tree) VisitField(srcName, srcDesc string) (bool, error) {
	s := &t.visit
	s.field, s.method, s.arg, s.lv = nil, nil, nil, nil
	if s.class == nil {
		return false, errors.Wrapf(ErrNoClass, "field %s", srcName)
	}
	if s.srcNs != SrcNamespace {
		s.field = s.class.FieldIn(srcName, srcDesc, s.srcNs)
		return s.field != nil, nil
	}
	f, err := s.class.AddField(srcName, srcDesc)
	if err != nil {
		return false, err
	}
	s.field = f
	return true, nil
}

func (t *Tree) VisitMethod(srcName, srcDesc string) (bool, error) {
	s := &t.visit
	s.field, s.method, s.arg, s.lv = nil, nil, nil, nil
	if s.class == nil {
		return false, errors.Wrapf(ErrNoClass, "method %s", srcName)
	}
	if s.srcNs != SrcNamespace {
		s.method = s.class.MethodIn(srcName, srcDesc, s.srcNs)
		return s.method != nil, nil
	}
	m, err := s.class.AddMethod(srcName, srcDesc)
	if err != nil {
		return false, err
	}
	s.method = m
	return true, nil
}

func (t *Tree) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	s := &t.visit
	s.arg, s.lv = nil, nil
	if s.method == nil {
		return false, errors.Wrapf(ErrNoMethod, "argument %d", argPosition)
	}
	if s.srcNs != SrcNamespace {
		s.arg = s.method.ArgIn(argPosition, lvIndex, srcName, s.srcNs)
		return s.arg != nil, nil
	}
	arg, err := s.method.addArg(argPosition, lvIndex, srcName)
	if err != nil {
		return false, err
	}
	s.arg = arg
	return true, nil
}

func (t *Tree) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	s := &t.visit
	s.arg, s.lv = nil, nil
	if s.method == nil {
		return false, errors.Wrapf(ErrNoMethod, "variable %d", lvIndex)
	}
	if s.srcNs != SrcNamespace {
		s.lv = s.method.VarIn(lvtRowIndex, lvIndex, startOpIdx, endOpIdx, srcName, s.srcNs)
		return s.lv != nil, nil
	}
	lv, err := s.method.addVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx, srcName)
	if err != nil {
		return false, err
	}
	s.lv = lv
	return true, nil
}

// current returns the element of kind the producer points at.
func (t *Tree) current(kind model.Kind) (*element, error) {
	s := &t.visit
	switch kind {
	case model.Class:
		if s.class != nil {
			return &s.class.element, nil
		}
	case model.Field:
		if s.field != nil {
			return &s.field.element, nil
		}
	case model.Method:
		if s.method != nil {
			return &s.method.element, nil
		}
	case model.MethodArg:
		if s.arg != nil {
			return &s.arg.element, nil
		}
	case model.MethodVar:
		if s.lv != nil {
			return &s.lv.element, nil
		}
	default:
		return nil, errors.Errorf("tree: unknown element kind %q", kind)
	}
	return nil, errors.Wrapf(visitor.ErrOutOfOrder, "no current %s", kind)
}

func (t *Tree) mapNs(namespace int) (int, error) {
	if namespace < 0 || namespace >= len(t.visit.nsMap) {
		return NullNamespace, errors.Wrapf(ErrUnknownNamespace, "destination index %d", namespace)
	}
	return t.visit.nsMap[namespace], nil
}

// VisitDstName records name unless the slot already holds one.
func (t *Tree) VisitDstName(kind model.Kind, namespace int, name string) error {
	ns, err := t.mapNs(namespace)
	if err != nil {
		return err
	}
	e, err := t.current(kind)
	if err != nil {
		return err
	}
	if ns == SrcNamespace {
		if e.srcName == "" {
			e.srcName = name
		}
		return nil
	}
	if kind == model.Class {
		t.visit.class.mergeDstName(ns, name)
		return nil
	}
	e.mergeDstName(ns, name)
	return nil
}

// VisitDstDesc uses a destination descriptor to complete a member whose
// source descriptor is missing or partial. Destination descriptors are
// otherwise derived from the class table and not stored.
func (t *Tree) VisitDstDesc(kind model.Kind, namespace int, desc string) error {
	ns, err := t.mapNs(namespace)
	if err != nil {
		return err
	}
	if _, err := t.current(kind); err != nil {
		return err
	}
	if t.visit.srcNs != SrcNamespace || desc == "" {
		return nil
	}
	src := desc
	if ns != SrcNamespace {
		src = t.MapDesc(desc, ns, SrcNamespace)
	}
	switch kind {
	case model.Field:
		f := t.visit.field
		if f.DescState() == model.DescFull || !model.DescCompatible(kind, f.srcDesc, src) {
			return nil
		}
		t.visit.field = f.owner.fields.resolve(f, src)
	case model.Method:
		m := t.visit.method
		if m.DescState() == model.DescFull || !model.DescCompatible(kind, m.srcDesc, src) {
			return nil
		}
		t.visit.method = m.owner.methods.resolve(m, src)
	}
	return nil
}

func (t *Tree) VisitElementContent(kind model.Kind) (bool, error) {
	if _, err := t.current(kind); err != nil {
		return false, err
	}
	return true, nil
}

// VisitComment keeps an existing comment; SetComment overwrites.
func (t *Tree) VisitComment(kind model.Kind, comment string) error {
	e, err := t.current(kind)
	if err != nil {
		return err
	}
	e.mergeComment(comment)
	return nil
}

// VisitEnd finishes a pass and, with a hierarchy provider, propagates names
// across method hierarchies.
func (t *Tree) VisitEnd() (bool, error) {
	t.visit.reset()
	if t.hierarchy != nil {
		n, err := t.PropagateHierarchy()
		if err != nil {
			return true, err
		}
		t.log.WithField("names", n).Debug("propagated hierarchy names")
	}
	return true, nil
}
