package tree

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SetSrcNamespace renames the source namespace and returns the old name.
func (t *Tree) SetSrcNamespace(name string) (string, error) {
	for _, ns := range t.dstNs {
		if ns == name {
			return t.srcNs, errors.Wrapf(ErrDuplicateNamespace, "%q is a destination namespace", name)
		}
	}
	old := t.srcNs
	t.srcNs = name
	return old, nil
}

// SetDstNamespaces replaces the destination namespace list. Names present in
// both the old and the new list keep their data at their new index; added
// namespaces start empty and removed ones are dropped from every element.
func (t *Tree) SetDstNamespaces(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, ns := range names {
		if ns == "" || ns == t.srcNs || seen[ns] {
			return errors.Wrapf(ErrDuplicateNamespace, "%q", ns)
		}
		seen[ns] = true
	}

	// from[i] is the old index of new namespace i, or -1
	from := make([]int, len(names))
	identity := len(names) == len(t.dstNs)
	for i, ns := range names {
		from[i] = -1
		for j, old := range t.dstNs {
			if old == ns {
				from[i] = j
				break
			}
		}
		if from[i] != i {
			identity = false
		}
	}
	if identity {
		return nil
	}

	t.log.WithFields(logrus.Fields{
		"old": t.dstNs,
		"new": names,
	}).Debug("remapping destination namespaces")

	t.forEachElement(func(e *element) {
		e.dstNames = remapNames(e.dstNames, from)
	})
	t.dstNs = append([]string(nil), names...)
	t.rebuildIndex()
	return nil
}

// AddDstNamespace returns the ID of name, appending it as a new destination
// namespace if the tree does not know it yet.
func (t *Tree) AddDstNamespace(name string) (int, error) {
	if id := t.NamespaceID(name); id != NullNamespace {
		return id, nil
	}
	if name == "" {
		return NullNamespace, errors.Wrap(ErrUnknownNamespace, "empty namespace name")
	}
	if err := t.SetDstNamespaces(append(t.DstNamespaces(), name)); err != nil {
		return NullNamespace, err
	}
	return len(t.dstNs) - 1, nil
}

func remapNames(old []string, from []int) []string {
	out := make([]string, len(from))
	for i, j := range from {
		if j >= 0 && j < len(old) {
			out[i] = old[j]
		}
	}
	return out
}

func (t *Tree) forEachElement(fn func(e *element)) {
	for _, c := range t.classOrder {
		fn(&c.element)
		for _, f := range c.fields.order {
			fn(&f.element)
		}
		for _, m := range c.methods.order {
			fn(&m.element)
			for _, a := range m.args {
				fn(&a.element)
			}
			for _, v := range m.vars {
				fn(&v.element)
			}
		}
	}
}
