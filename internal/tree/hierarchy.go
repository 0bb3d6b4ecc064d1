package tree

import (
	"github.com/pkg/errors"
)

// MethodSig names a method by owner, name and descriptor in one namespace.
type MethodSig struct {
	Owner string
	Name  string
	Desc  string
}

// HierarchyProvider resolves virtual dispatch relations. MethodHierarchy
// returns every method connected to sig by overriding, sig included, or nil
// when it knows nothing about sig.
type HierarchyProvider interface {
	Namespace() string
	MethodHierarchy(sig MethodSig) []MethodSig
}

// PropagateHierarchy copies, per destination namespace, the first name found
// in each method hierarchy onto every member of that hierarchy lacking one.
// It returns the number of names written. Hierarchies with fewer than two
// methods known to the tree are skipped.
func (t *Tree) PropagateHierarchy() (int, error) {
	if t.hierarchy == nil {
		return 0, nil
	}
	ns := t.NamespaceID(t.hierarchy.Namespace())
	if ns == NullNamespace {
		return 0, errors.Wrapf(ErrUnknownNamespace, "hierarchy namespace %q", t.hierarchy.Namespace())
	}

	done := make(map[*Method]bool)
	written := 0
	for _, c := range t.classOrder {
		for _, m := range c.methods.order {
			if done[m] {
				continue
			}
			done[m] = true
			sig := MethodSig{Owner: c.Name(ns), Name: m.Name(ns), Desc: m.Desc(ns)}
			if sig.Owner == "" || sig.Name == "" {
				continue
			}
			group := t.hierarchyMethods(m, t.hierarchy.MethodHierarchy(sig), ns)
			if len(group) < 2 {
				continue
			}
			for _, o := range group {
				done[o] = true
			}
			written += fillHierarchy(group, len(t.dstNs))
		}
	}
	return written, nil
}

func (t *Tree) hierarchyMethods(start *Method, sigs []MethodSig, ns int) []*Method {
	group := []*Method{start}
	for _, s := range sigs {
		c := t.ClassIn(s.Owner, ns)
		if c == nil {
			continue
		}
		m := c.MethodIn(s.Name, s.Desc, ns)
		if m == nil || m == start {
			continue
		}
		group = append(group, m)
	}
	return group
}

func fillHierarchy(group []*Method, dstCount int) int {
	written := 0
	for ns := 0; ns < dstCount; ns++ {
		name := ""
		for _, m := range group {
			if name = m.dstNames[ns]; name != "" {
				break
			}
		}
		if name == "" {
			continue
		}
		for _, m := range group {
			if m.dstNames[ns] == "" {
				m.dstNames[ns] = name
				written++
			}
		}
	}
	return written
}

// SetHierarchy replaces the provider; nil disables propagation.
func (t *Tree) SetHierarchy(p HierarchyProvider) {
	t.hierarchy = p
}
