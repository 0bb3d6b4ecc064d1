package tree

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/model"
)

// ErrInvalid is wrapped by every problem Validate reports.
var ErrInvalid = errors.New("tree: invalid")

// Validate checks the structural invariants of t and reports every
// violation it finds.
func (t *Tree) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, errors.Wrapf(ErrInvalid, format, args...))
	}

	if t.srcNs == "" && len(t.classOrder) > 0 {
		fail("classes without a source namespace")
	}
	seen := map[string]bool{t.srcNs: true}
	for _, ns := range t.dstNs {
		if seen[ns] {
			fail("namespace %q used twice", ns)
		}
		seen[ns] = true
	}

	n := len(t.dstNs)
	t.forEachElement(func(e *element) {
		if len(e.dstNames) != n {
			fail("element %q has %d destination names for %d namespaces", e.srcName, len(e.dstNames), n)
		}
	})

	dstOwners := make([]map[string]string, n)
	for i := range dstOwners {
		dstOwners[i] = make(map[string]string)
	}
	for _, c := range t.classOrder {
		if t.classes[c.srcName] != c {
			fail("class %q missing from the class table", c.srcName)
		}
		for ns, name := range c.dstNames {
			if name == "" || ns >= n {
				continue
			}
			if other, dup := dstOwners[ns][name]; dup {
				fail("classes %q and %q share %s name %q", other, c.srcName, t.dstNs[ns], name)
			}
			dstOwners[ns][name] = c.srcName
			if t.index != nil && t.index[ns][name] != c {
				fail("reverse index out of date for %s name %q", t.dstNs[ns], name)
			}
		}
		validateMembers(&c.fields, c, fail)
		validateMembers(&c.methods, c, fail)
		for _, m := range c.methods.order {
			for _, a := range m.args {
				if a.owner != m {
					fail("argument %d of %s.%s has the wrong owner", a.argPos, c.srcName, m.srcName)
				}
			}
			for _, v := range m.vars {
				if v.owner != m {
					fail("variable %d of %s.%s has the wrong owner", v.lvIndex, c.srcName, m.srcName)
				}
			}
		}
	}
	if len(t.classes) != len(t.classOrder) {
		fail("class table holds %d classes, order %d", len(t.classes), len(t.classOrder))
	}
	return result.ErrorOrNil()
}

func validateMembers[M memberEntry[M]](tab *memberTable[M], c *Class, fail func(string, ...any)) {
	var flags uint8
	for _, m := range tab.order {
		b := m.base()
		if b.owner != c {
			fail("%s %s has the wrong owner", tab.kind, b.srcName)
		}
		if cur, ok := tab.byKey[memberKey{b.srcName, b.srcDesc}]; !ok || cur != m {
			fail("%s %s%s is not keyed by its descriptor", tab.kind, b.srcName, b.srcDesc)
		}
		flags |= tab.flagFor(b.srcDesc)
	}
	if len(tab.byKey) != len(tab.order) {
		fail("%s table of %s holds %d keys for %d entries", tab.kind, c.srcName, len(tab.byKey), len(tab.order))
	}
	if flags&^tab.flags != 0 {
		fail("%s table of %s has stale lookup flags", tab.kind, c.srcName)
	}
	if tab.kind != model.Field && tab.kind != model.Method {
		fail("member table of %s has kind %s", c.srcName, tab.kind)
	}
}
