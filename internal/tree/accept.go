package tree

import (
	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

// Accept replays the tree into v in insertion order, repeating the whole
// sequence for as long as v asks for another pass.
func (t *Tree) Accept(v visitor.Visitor) error {
	return t.AcceptOrdered(v, InsertionOrder())
}

// AcceptOrdered is Accept with an explicit element order.
func (t *Tree) AcceptOrdered(v visitor.Visitor, order VisitOrder) error {
	for pass := 1; ; pass++ {
		done, err := t.acceptPass(v, order)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		t.log.WithField("pass", pass+1).Debug("consumer requested another pass")
		v.Reset()
	}
}

func (t *Tree) acceptPass(v visitor.Visitor, order VisitOrder) (bool, error) {
	flags := v.Flags()

	ok, err := v.VisitHeader()
	if err != nil {
		return false, err
	}
	if ok {
		if err := v.VisitNamespaces(t.srcNs, t.DstNamespaces()); err != nil {
			return false, err
		}
		props := t.metadata
		if flags.Has(model.NeedsUniqueMetadata) {
			props = uniqueMetadata(props)
		}
		for _, p := range props {
			if err := v.VisitMetadata(p.Key, p.Value); err != nil {
				return false, err
			}
		}
	}

	ok, err = v.VisitContent()
	if err != nil {
		return false, err
	}
	if ok {
		for _, c := range sorted(t.classOrder, order.Classes) {
			if err := t.acceptClass(v, c, flags, order); err != nil {
				return false, err
			}
		}
	}
	return v.VisitEnd()
}

func acceptNames(v visitor.Visitor, kind model.Kind, e *element) error {
	for ns, name := range e.dstNames {
		if name == "" {
			continue
		}
		if err := v.VisitDstName(kind, ns, name); err != nil {
			return err
		}
	}
	return nil
}

func acceptComment(v visitor.Visitor, kind model.Kind, e *element) error {
	if e.comment == "" {
		return nil
	}
	return v.VisitComment(kind, e.comment)
}

func (t *Tree) acceptClass(v visitor.Visitor, c *Class, flags model.Flags, order VisitOrder) error {
	ok, err := v.VisitClass(c.srcName)
	if err != nil || !ok {
		return err
	}
	if err := acceptNames(v, model.Class, &c.element); err != nil {
		return err
	}
	if ok, err = v.VisitElementContent(model.Class); err != nil || !ok {
		return err
	}

	fields := func() error {
		for _, f := range sorted(c.fields.order, order.Fields) {
			if err := t.acceptMember(v, &f.member, flags, nil); err != nil {
				return err
			}
		}
		return nil
	}
	methods := func() error {
		for _, m := range sorted(c.methods.order, order.Methods) {
			if err := t.acceptMember(v, &m.member, flags, func() error {
				return acceptMethodContent(v, m, order)
			}); err != nil {
				return err
			}
		}
		return nil
	}
	first, second := fields, methods
	if order.MethodsFirst {
		first, second = methods, fields
	}
	if err := first(); err != nil {
		return err
	}
	if err := second(); err != nil {
		return err
	}
	return acceptComment(v, model.Class, &c.element)
}

func (t *Tree) acceptMember(v visitor.Visitor, m *member, flags model.Flags, children func() error) error {
	var ok bool
	var err error
	dstDesc := flags.Has(model.NeedsDstFieldDesc)
	if m.kind == model.Method {
		dstDesc = flags.Has(model.NeedsDstMethodDesc)
		ok, err = v.VisitMethod(m.srcName, m.srcDesc)
	} else {
		ok, err = v.VisitField(m.srcName, m.srcDesc)
	}
	if err != nil || !ok {
		return err
	}
	if err := acceptNames(v, m.kind, &m.element); err != nil {
		return err
	}
	if dstDesc && m.DescState() == model.DescFull {
		for ns := range t.dstNs {
			if err := v.VisitDstDesc(m.kind, ns, t.MapDesc(m.srcDesc, SrcNamespace, ns)); err != nil {
				return err
			}
		}
	}
	if ok, err = v.VisitElementContent(m.kind); err != nil || !ok {
		return err
	}
	if children != nil {
		if err := children(); err != nil {
			return err
		}
	}
	return acceptComment(v, m.kind, &m.element)
}

func acceptMethodContent(v visitor.Visitor, m *Method, order VisitOrder) error {
	args := func() error {
		for _, a := range sorted(m.args, order.Args) {
			ok, err := v.VisitMethodArg(a.argPos, a.lvIndex, a.srcName)
			if err != nil {
				return err
			}
			if ok {
				if err := acceptSub(v, model.MethodArg, &a.element); err != nil {
					return err
				}
			}
		}
		return nil
	}
	vars := func() error {
		for _, lv := range sorted(m.vars, order.Vars) {
			ok, err := v.VisitMethodVar(lv.lvtRow, lv.lvIndex, lv.startOp, lv.endOp, lv.srcName)
			if err != nil {
				return err
			}
			if ok {
				if err := acceptSub(v, model.MethodVar, &lv.element); err != nil {
					return err
				}
			}
		}
		return nil
	}
	first, second := args, vars
	if order.VarsFirst {
		first, second = vars, args
	}
	if err := first(); err != nil {
		return err
	}
	return second()
}

func acceptSub(v visitor.Visitor, kind model.Kind, e *element) error {
	if err := acceptNames(v, kind, e); err != nil {
		return err
	}
	ok, err := v.VisitElementContent(kind)
	if err != nil || !ok {
		return err
	}
	return acceptComment(v, kind, e)
}
