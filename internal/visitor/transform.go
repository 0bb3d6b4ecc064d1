package visitor

import (
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/model"
)

// ErrBadNamespaces is returned by transformers configured with namespace
// names that do not fit the namespaces a producer announces.
var ErrBadNamespaces = errors.New("visitor: invalid namespace configuration")

// NsRenamer renames namespaces on the way through. Names missing from the
// map are kept.
type NsRenamer struct {
	Forwarding
	renames map[string]string
}

// NewNsRenamer returns a renamer in front of next.
func NewNsRenamer(next Visitor, renames map[string]string) *NsRenamer {
	return &NsRenamer{Forwarding: Forwarding{Next: next}, renames: renames}
}

func (r *NsRenamer) rename(ns string) string {
	if to, ok := r.renames[ns]; ok {
		return to
	}
	return ns
}

func (r *NsRenamer) VisitNamespaces(srcNs string, dstNs []string) error {
	renamed := make([]string, len(dstNs))
	for i, ns := range dstNs {
		renamed[i] = r.rename(ns)
	}
	return r.Next.VisitNamespaces(r.rename(srcNs), renamed)
}

// DstNsReorder rearranges destination namespaces into a fixed order.
// Namespaces the producer does not know stay empty; namespaces missing from
// the order are dropped.
type DstNsReorder struct {
	Forwarding
	order []string
	remap []int
}

// NewDstNsReorder returns a reorderer in front of next.
func NewDstNsReorder(next Visitor, order []string) *DstNsReorder {
	return &DstNsReorder{Forwarding: Forwarding{Next: next}, order: order}
}

func (d *DstNsReorder) VisitNamespaces(srcNs string, dstNs []string) error {
	pos := make(map[string]int, len(d.order))
	for i, ns := range d.order {
		if _, dup := pos[ns]; dup || ns == srcNs {
			return errors.Wrapf(ErrBadNamespaces, "reorder target %q", ns)
		}
		pos[ns] = i
	}
	d.remap = make([]int, len(dstNs))
	for i, ns := range dstNs {
		if to, ok := pos[ns]; ok {
			d.remap[i] = to
		} else {
			d.remap[i] = -1
		}
	}
	return d.Next.VisitNamespaces(srcNs, d.order)
}

func (d *DstNsReorder) target(ns int) (int, error) {
	if ns < 0 || ns >= len(d.remap) {
		return 0, errors.Errorf("visitor: destination namespace %d out of range", ns)
	}
	return d.remap[ns], nil
}

func (d *DstNsReorder) VisitDstName(kind model.Kind, namespace int, name string) error {
	to, err := d.target(namespace)
	if err != nil || to < 0 {
		return err
	}
	return d.Next.VisitDstName(kind, to, name)
}

func (d *DstNsReorder) VisitDstDesc(kind model.Kind, namespace int, desc string) error {
	to, err := d.target(namespace)
	if err != nil || to < 0 {
		return err
	}
	return d.Next.VisitDstDesc(kind, to, desc)
}

const (
	fromSrc = -1
	noAlt   = -2
)

// NsCompleter fills destination names an element lacks from an alternative
// namespace, e.g. "named" falling back to "intermediary" and that falling
// back to the source name. Names are held back until the element's content
// gate so that every alternative is known.
type NsCompleter struct {
	Forwarding
	alternatives map[string]string

	alt   []int
	src   string
	names []string
}

// NewNsCompleter returns a completer in front of next. alternatives maps a
// destination namespace to the namespace its missing names are copied from.
func NewNsCompleter(next Visitor, alternatives map[string]string) *NsCompleter {
	return &NsCompleter{Forwarding: Forwarding{Next: next}, alternatives: alternatives}
}

func (c *NsCompleter) VisitNamespaces(srcNs string, dstNs []string) error {
	index := make(map[string]int, len(dstNs))
	for i, ns := range dstNs {
		index[ns] = i
	}
	c.alt = make([]int, len(dstNs))
	for i, ns := range dstNs {
		from, ok := c.alternatives[ns]
		switch {
		case !ok:
			c.alt[i] = noAlt
		case from == srcNs:
			c.alt[i] = fromSrc
		default:
			j, known := index[from]
			if !known || j == i {
				return errors.Wrapf(ErrBadNamespaces, "alternative %q for %q", from, ns)
			}
			c.alt[i] = j
		}
	}
	c.names = make([]string, len(dstNs))
	return c.Next.VisitNamespaces(srcNs, dstNs)
}

func (c *NsCompleter) begin(srcName string) {
	c.src = srcName
	for i := range c.names {
		c.names[i] = ""
	}
}

func (c *NsCompleter) VisitClass(srcName string) (bool, error) {
	c.begin(srcName)
	return c.Next.VisitClass(srcName)
}

func (c *NsCompleter) VisitField(srcName, srcDesc string) (bool, error) {
	c.begin(srcName)
	return c.Next.VisitField(srcName, srcDesc)
}

func (c *NsCompleter) VisitMethod(srcName, srcDesc string) (bool, error) {
	c.begin(srcName)
	return c.Next.VisitMethod(srcName, srcDesc)
}

func (c *NsCompleter) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	c.begin(srcName)
	return c.Next.VisitMethodArg(argPosition, lvIndex, srcName)
}

func (c *NsCompleter) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	c.begin(srcName)
	return c.Next.VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx, srcName)
}

func (c *NsCompleter) VisitDstName(kind model.Kind, namespace int, name string) error {
	if namespace < 0 || namespace >= len(c.names) {
		return c.Next.VisitDstName(kind, namespace, name)
	}
	c.names[namespace] = name
	return nil
}

// complete resolves chains of alternatives; each round fills at least one
// more slot or stops.
func (c *NsCompleter) complete() {
	for round := 0; round < len(c.names); round++ {
		changed := false
		for i, from := range c.alt {
			if c.names[i] != "" || from == noAlt {
				continue
			}
			v := c.src
			if from != fromSrc {
				v = c.names[from]
			}
			if v != "" {
				c.names[i] = v
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (c *NsCompleter) VisitElementContent(kind model.Kind) (bool, error) {
	c.complete()
	for ns, name := range c.names {
		if name == "" {
			continue
		}
		if err := c.Next.VisitDstName(kind, ns, name); err != nil {
			return false, err
		}
	}
	c.begin("")
	return c.Next.VisitElementContent(kind)
}
