package tree

import (
	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

// View is the read-only side of a Tree.
type View interface {
	SrcNamespace() string
	DstNamespaces() []string
	NamespaceID(name string) int
	NamespaceName(id int) string

	Metadata() []model.Property
	MetadataValue(key string) (string, bool)

	Classes() []ClassView
	Class(srcName string) (ClassView, bool)
	ClassIn(name string, ns int) (ClassView, bool)

	MapClassName(name string, from, to int) string
	MapDesc(desc string, from, to int) string

	AcceptOrdered(v visitor.Visitor, order VisitOrder) error
}

// Mutable is everything that changes a Tree.
type Mutable interface {
	View() View

	SetSrcNamespace(name string) (string, error)
	SetDstNamespaces(names []string) error
	AddDstNamespace(name string) (int, error)

	AddMetadata(key, value string)
	RemoveMetadata(key string) bool

	Class(srcName string) *Class
	AddClass(srcName string) (*Class, error)
	RemoveClass(srcName string) bool

	SetHierarchy(p HierarchyProvider)
	PropagateHierarchy() (int, error)
}

var _ Mutable = (*Tree)(nil)

// View returns a read-only view backed by t.
func (t *Tree) View() View {
	return treeView{t: t}
}

type treeView struct {
	t *Tree
}

func (v treeView) SrcNamespace() string { return v.t.SrcNamespace() }
func (v treeView) DstNamespaces() []string { return v.t.DstNamespaces() }
func (v treeView) NamespaceID(name string) int { return v.t.NamespaceID(name) }
func (v treeView) NamespaceName(id int) string { return v.t.NamespaceName(id) }
func (v treeView) Metadata() []model.Property { return v.t.Metadata() }
func (v treeView) MetadataValue(k string) (string, bool) { return v.t.MetadataValue(k) }

func (v treeView) Classes() []ClassView {
	out := make([]ClassView, len(v.t.classOrder))
	for i, c := range v.t.classOrder {
		out[i] = ClassView{c: c}
	}
	return out
}

func (v treeView) Class(srcName string) (ClassView, bool) {
	c := v.t.Class(srcName)
	return ClassView{c: c}, c != nil
}

func (v treeView) ClassIn(name string, ns int) (ClassView, bool) {
	c := v.t.ClassIn(name, ns)
	return ClassView{c: c}, c != nil
}

func (v treeView) MapClassName(name string, from, to int) string {
	return v.t.MapClassName(name, from, to)
}

func (v treeView) MapDesc(desc string, from, to int) string {
	return v.t.MapDesc(desc, from, to)
}

func (v treeView) AcceptOrdered(vis visitor.Visitor, order VisitOrder) error {
	return v.t.AcceptOrdered(vis, order)
}

// ClassView is a read-only class handle.
type ClassView struct{ c *Class }

func (v ClassView) SrcName() string { return v.c.srcName }
func (v ClassView) Name(ns int) string { return v.c.Name(ns) }
func (v ClassView) Comment() string { return v.c.comment }

func (v ClassView) Fields() []FieldView {
	out := make([]FieldView, len(v.c.fields.order))
	for i, f := range v.c.fields.order {
		out[i] = FieldView{f: f}
	}
	return out
}

func (v ClassView) Field(name, desc string) (FieldView, bool) {
	f := v.c.Field(name, desc)
	return FieldView{f: f}, f != nil
}

func (v ClassView) FieldIn(name, desc string, ns int) (FieldView, bool) {
	f := v.c.FieldIn(name, desc, ns)
	return FieldView{f: f}, f != nil
}

func (v ClassView) Methods() []MethodView {
	out := make([]MethodView, len(v.c.methods.order))
	for i, m := range v.c.methods.order {
		out[i] = MethodView{m: m}
	}
	return out
}

func (v ClassView) Method(name, desc string) (MethodView, bool) {
	m := v.c.Method(name, desc)
	return MethodView{m: m}, m != nil
}

func (v ClassView) MethodIn(name, desc string, ns int) (MethodView, bool) {
	m := v.c.MethodIn(name, desc, ns)
	return MethodView{m: m}, m != nil
}

// FieldView is a read-only field handle.
type FieldView struct{ f *Field }

func (v FieldView) Owner() ClassView { return ClassView{c: v.f.owner} }
func (v FieldView) SrcName() string { return v.f.srcName }
func (v FieldView) SrcDesc() string { return v.f.srcDesc }
func (v FieldView) Name(ns int) string { return v.f.Name(ns) }
func (v FieldView) Desc(ns int) string { return v.f.Desc(ns) }
func (v FieldView) Comment() string { return v.f.comment }

// MethodView is a read-only method handle.
type MethodView struct{ m *Method }

func (v MethodView) Owner() ClassView { return ClassView{c: v.m.owner} }
func (v MethodView) SrcName() string { return v.m.srcName }
func (v MethodView) SrcDesc() string { return v.m.srcDesc }
func (v MethodView) Name(ns int) string { return v.m.Name(ns) }
func (v MethodView) Desc(ns int) string { return v.m.Desc(ns) }
func (v MethodView) Comment() string { return v.m.comment }

func (v MethodView) Args() []ArgView {
	out := make([]ArgView, len(v.m.args))
	for i, a := range v.m.args {
		out[i] = ArgView{a: a}
	}
	return out
}

func (v MethodView) Arg(argPos, lvIndex int, name string, ns int) (ArgView, bool) {
	a := v.m.ArgIn(argPos, lvIndex, name, ns)
	return ArgView{a: a}, a != nil
}

func (v MethodView) Vars() []VarView {
	out := make([]VarView, len(v.m.vars))
	for i, lv := range v.m.vars {
		out[i] = VarView{v: lv}
	}
	return out
}

func (v MethodView) Var(lvtRow, lvIndex, startOp, endOp int, name string, ns int) (VarView, bool) {
	lv := v.m.VarIn(lvtRow, lvIndex, startOp, endOp, name, ns)
	return VarView{v: lv}, lv != nil
}

// ArgView is a read-only argument handle.
type ArgView struct{ a *MethodArg }

func (v ArgView) SrcName() string { return v.a.srcName }
func (v ArgView) Name(ns int) string { return v.a.Name(ns) }
func (v ArgView) ArgPosition() int { return v.a.argPos }
func (v ArgView) LvIndex() int { return v.a.lvIndex }
func (v ArgView) Comment() string { return v.a.comment }

// VarView is a read-only variable handle.
type VarView struct{ v *MethodVar }

func (v VarView) SrcName() string { return v.v.srcName }
func (v VarView) Name(ns int) string { return v.v.Name(ns) }
func (v VarView) LvtRowIndex() int { return v.v.lvtRow }
func (v VarView) LvIndex() int { return v.v.lvIndex }
func (v VarView) StartOpIdx() int { return v.v.startOp }
func (v VarView) EndOpIdx() int { return v.v.endOp }
func (v VarView) Comment() string { return v.v.comment }
