package tree

import (
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/model"
)

type memberKey struct {
	name string
	desc string
}

// memberEntry is *Field or *Method.
type memberEntry[M any] interface {
	comparable
	base() *member
	absorb(M)
}

const (
	hasFullDesc uint8 = 1 << iota
	hasProvisional
)

// memberTable stores the fields or the methods of one class. Entries are
// keyed by (name, descriptor); entries with an absent or partial descriptor
// are provisional and set hasProvisional, full ones set hasFullDesc, which
// lets lookups skip scans that cannot match.
type memberTable[M memberEntry[M]] struct {
	kind  model.Kind
	byKey map[memberKey]M
	order []M
	flags uint8
}

func (t *memberTable[M]) init(kind model.Kind) {
	t.kind = kind
	t.byKey = make(map[memberKey]M)
}

func (t *memberTable[M]) flagFor(desc string) uint8 {
	if model.ClassifyDesc(t.kind, desc) == model.DescFull {
		return hasFullDesc
	}
	return hasProvisional
}

func (t *memberTable[M]) insert(m M) {
	b := m.base()
	t.byKey[memberKey{b.srcName, b.srcDesc}] = m
	t.order = append(t.order, m)
	t.flags |= t.flagFor(b.srcDesc)
}

func (t *memberTable[M]) remove(m M) bool {
	b := m.base()
	key := memberKey{b.srcName, b.srcDesc}
	if cur, ok := t.byKey[key]; !ok || cur != m {
		return false
	}
	delete(t.byKey, key)
	for i, o := range t.order {
		if o == m {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.recomputeFlags()
	return true
}

func (t *memberTable[M]) recomputeFlags() {
	t.flags = 0
	for _, m := range t.order {
		t.flags |= t.flagFor(m.base().srcDesc)
	}
}

// find runs the prioritized lookup: the exact key, then a compatible entry
// that is less specific than desc, then one that is more specific. A tier
// with several compatible candidates is ambiguous and matches nothing.
func (t *memberTable[M]) find(name, desc string) (M, bool) {
	if m, ok := t.byKey[memberKey{name, desc}]; ok {
		return m, true
	}
	var tiers []model.DescState
	switch model.ClassifyDesc(t.kind, desc) {
	case model.DescFull:
		if t.flags&hasProvisional != 0 {
			tiers = []model.DescState{model.DescPartial, model.DescAbsent}
		}
	case model.DescPartial:
		if t.flags&hasProvisional != 0 {
			tiers = append(tiers, model.DescAbsent)
		}
		if t.flags&hasFullDesc != 0 {
			tiers = append(tiers, model.DescFull)
		}
	case model.DescAbsent:
		if t.flags&hasProvisional != 0 {
			tiers = append(tiers, model.DescPartial)
		}
		if t.flags&hasFullDesc != 0 {
			tiers = append(tiers, model.DescFull)
		}
	}
	for _, state := range tiers {
		if m, ok := t.scan(name, desc, state); ok {
			return m, true
		}
	}
	var none M
	return none, false
}

func (t *memberTable[M]) scan(name, desc string, state model.DescState) (M, bool) {
	var found M
	n := 0
	for _, m := range t.order {
		b := m.base()
		if b.srcName != name || model.ClassifyDesc(t.kind, b.srcDesc) != state {
			continue
		}
		if model.DescCompatible(t.kind, b.srcDesc, desc) {
			found = m
			n++
		}
	}
	return found, n == 1
}

// findIn looks an entry up by name and descriptor in destination namespace ns.
func (t *memberTable[M]) findIn(name, desc string, ns int) M {
	var none M
	for _, m := range t.order {
		b := m.base()
		if b.DstName(ns) != name {
			continue
		}
		if desc == "" || model.DescCompatible(t.kind, b.Desc(ns), desc) {
			return m
		}
	}
	return none
}

// resolve makes m's key more specific if desc is. When another entry already
// holds the new key, m folds into it and the survivor is returned.
func (t *memberTable[M]) resolve(m M, desc string) M {
	b := m.base()
	if model.ClassifyDesc(t.kind, desc) <= model.ClassifyDesc(t.kind, b.srcDesc) {
		return m
	}
	oldKey := memberKey{b.srcName, b.srcDesc}
	newKey := memberKey{b.srcName, desc}
	if other, ok := t.byKey[newKey]; ok && other != m {
		b.tree.log.WithFields(logrus.Fields{
			"class":  b.owner.srcName,
			"member": b.srcName,
			"from":   b.srcDesc,
			"into":   desc,
		}).Debug("folding provisional member")
		other.absorb(m)
		t.remove(m)
		return other
	}
	delete(t.byKey, oldKey)
	b.srcDesc = desc
	t.byKey[newKey] = m
	t.recomputeFlags()
	return m
}
