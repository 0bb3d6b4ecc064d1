package tree

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/model"
)

// ErrIncompatibleDesc is returned when a member descriptor would change to
// one that cannot describe the same member.
var ErrIncompatibleDesc = errors.New("tree: incompatible descriptor")

type element struct {
	tree     *Tree
	srcName  string
	dstNames []string
	comment  string
}

func newElement(t *Tree, srcName string) element {
	return element{tree: t, srcName: srcName, dstNames: make([]string, len(t.dstNs))}
}

// SrcName returns the source name, "" if unknown.
func (e *element) SrcName() string {
	return e.srcName
}

// Name returns the name in namespace ns, which may be SrcNamespace.
func (e *element) Name(ns int) string {
	if ns == SrcNamespace {
		return e.srcName
	}
	return e.DstName(ns)
}

// DstName returns the destination name at index ns, "" if unknown.
func (e *element) DstName(ns int) string {
	if ns < 0 || ns >= len(e.dstNames) {
		return ""
	}
	return e.dstNames[ns]
}

// SetDstName overwrites the destination name at index ns.
func (e *element) SetDstName(ns int, name string) error {
	if err := e.tree.checkNs(ns); err != nil {
		return err
	}
	e.dstNames[ns] = name
	return nil
}

func (e *element) Comment() string {
	return e.comment
}

// SetComment replaces the comment; last write wins.
func (e *element) SetComment(comment string) {
	e.comment = comment
}

// mergeDstName sets name unless the slot is already taken.
func (e *element) mergeDstName(ns int, name string) {
	if name != "" && e.dstNames[ns] == "" {
		e.dstNames[ns] = name
	}
}

func (e *element) mergeComment(comment string) {
	if e.comment == "" {
		e.comment = comment
	}
}

// absorb copies every slot of o that e lacks.
func (e *element) absorb(o *element) {
	if e.srcName == "" {
		e.srcName = o.srcName
	}
	for ns, name := range o.dstNames {
		e.mergeDstName(ns, name)
	}
	e.mergeComment(o.comment)
}

func (e *element) setSrcName(name string) error {
	if name == "" || name == e.srcName {
		return nil
	}
	if e.srcName != "" {
		return errors.Wrapf(ErrSrcNameChange, "%q to %q", e.srcName, name)
	}
	e.srcName = name
	return nil
}

// Class is a mapped class. It owns its fields and methods.
type Class struct {
	element
	fields  memberTable[*Field]
	methods memberTable[*Method]
}

func newClass(t *Tree, srcName string) *Class {
	c := &Class{element: newElement(t, srcName)}
	c.fields.init(model.Field)
	c.methods.init(model.Method)
	return c
}

// SetDstName overwrites the destination name and keeps the reverse index current.
func (c *Class) SetDstName(ns int, name string) error {
	if err := c.tree.checkNs(ns); err != nil {
		return err
	}
	old := c.dstNames[ns]
	c.dstNames[ns] = name
	c.tree.unindex(ns, old, c)
	c.tree.reindex(ns, name, c)
	return nil
}

func (c *Class) mergeDstName(ns int, name string) {
	if name != "" && c.dstNames[ns] == "" {
		_ = c.SetDstName(ns, name)
	}
}

// Fields returns the fields in insertion order.
func (c *Class) Fields() []*Field {
	return append([]*Field(nil), c.fields.order...)
}

// Field looks a field up by source name and a possibly partial descriptor.
func (c *Class) Field(name, desc string) *Field {
	f, _ := c.fields.find(name, desc)
	return f
}

// FieldIn looks a field up by its name and descriptor in namespace ns.
// An empty desc matches any descriptor.
func (c *Class) FieldIn(name, desc string, ns int) *Field {
	if ns == SrcNamespace {
		return c.Field(name, desc)
	}
	return c.fields.findIn(name, desc, ns)
}

// AddField returns the matching field, creating it when missing. A more
// specific desc resolves a provisional entry.
func (c *Class) AddField(name, desc string) (*Field, error) {
	if name == "" {
		return nil, errors.Wrap(ErrNoSrcName, "field")
	}
	if f, ok := c.fields.find(name, desc); ok {
		return c.fields.resolve(f, desc), nil
	}
	f := &Field{member: newMember(c, model.Field, name, desc)}
	c.fields.insert(f)
	return f, nil
}

// RemoveField deletes f from the class.
func (c *Class) RemoveField(f *Field) bool {
	return c.fields.remove(f)
}

// Methods returns the methods in insertion order.
func (c *Class) Methods() []*Method {
	return append([]*Method(nil), c.methods.order...)
}

// Method looks a method up by source name and a possibly partial descriptor.
func (c *Class) Method(name, desc string) *Method {
	m, _ := c.methods.find(name, desc)
	return m
}

// MethodIn looks a method up by its name and descriptor in namespace ns.
func (c *Class) MethodIn(name, desc string, ns int) *Method {
	if ns == SrcNamespace {
		return c.Method(name, desc)
	}
	return c.methods.findIn(name, desc, ns)
}

// AddMethod returns the matching method, creating it when missing.
func (c *Class) AddMethod(name, desc string) (*Method, error) {
	if name == "" {
		return nil, errors.Wrap(ErrNoSrcName, "method")
	}
	if m, ok := c.methods.find(name, desc); ok {
		return c.methods.resolve(m, desc), nil
	}
	m := &Method{member: newMember(c, model.Method, name, desc)}
	c.methods.insert(m)
	return m, nil
}

// RemoveMethod deletes m and its arguments and variables.
func (c *Class) RemoveMethod(m *Method) bool {
	return c.methods.remove(m)
}

type member struct {
	element
	owner   *Class
	kind    model.Kind
	srcDesc string
}

func newMember(owner *Class, kind model.Kind, name, desc string) member {
	return member{element: newElement(owner.tree, name), owner: owner, kind: kind, srcDesc: desc}
}

func (m *member) base() *member { return m }

// Owner returns the declaring class.
func (m *member) Owner() *Class {
	return m.owner
}

// SrcDesc returns the source descriptor, "" if unknown.
func (m *member) SrcDesc() string {
	return m.srcDesc
}

// DescState classifies the source descriptor.
func (m *member) DescState() model.DescState {
	return model.ClassifyDesc(m.kind, m.srcDesc)
}

// Desc returns the descriptor in namespace ns, remapped through the class table.
func (m *member) Desc(ns int) string {
	if ns == SrcNamespace {
		return m.srcDesc
	}
	if m.DescState() != model.DescFull {
		return ""
	}
	return m.tree.MapDesc(m.srcDesc, SrcNamespace, ns)
}

// Field is a mapped field.
type Field struct {
	member
}

func (f *Field) absorb(o *Field) {
	f.element.absorb(&o.element)
}

// SetSrcDesc makes the descriptor more specific. The returned field is the
// surviving entry, which differs from f when another entry already used desc.
func (f *Field) SetSrcDesc(desc string) (*Field, error) {
	if !model.DescCompatible(model.Field, f.srcDesc, desc) {
		return f, errors.Wrapf(ErrIncompatibleDesc, "field %s %q to %q", f.srcName, f.srcDesc, desc)
	}
	return f.owner.fields.resolve(f, desc), nil
}

// Method is a mapped method. It owns its arguments and local variables.
type Method struct {
	member
	args []*MethodArg
	vars []*MethodVar
}

// SetSrcDesc makes the descriptor more specific, see Field.SetSrcDesc.
func (m *Method) SetSrcDesc(desc string) (*Method, error) {
	if !model.DescCompatible(model.Method, m.srcDesc, desc) {
		return m, errors.Wrapf(ErrIncompatibleDesc, "method %s %q to %q", m.srcName, m.srcDesc, desc)
	}
	return m.owner.methods.resolve(m, desc), nil
}

func (m *Method) absorb(o *Method) {
	m.element.absorb(&o.element)
	for _, a := range o.args {
		into := m.AddArg(a.argPos, a.lvIndex, a.srcName)
		into.element.absorb(&a.element)
	}
	for _, v := range o.vars {
		into := m.AddVar(v.lvtRow, v.lvIndex, v.startOp, v.endOp, v.srcName)
		into.element.absorb(&v.element)
	}
}

// Args returns the arguments in insertion order.
func (m *Method) Args() []*MethodArg {
	return append([]*MethodArg(nil), m.args...)
}

// Arg finds an argument by position, then by local variable index, then,
// when neither is known, by source name.
func (m *Method) Arg(argPos, lvIndex int, srcName string) *MethodArg {
	return m.argIn(argPos, lvIndex, srcName, SrcNamespace)
}

// ArgIn is Arg with the name compared in namespace ns.
func (m *Method) ArgIn(argPos, lvIndex int, name string, ns int) *MethodArg {
	return m.argIn(argPos, lvIndex, name, ns)
}

func (m *Method) argIn(argPos, lvIndex int, name string, ns int) *MethodArg {
	if argPos >= 0 {
		for _, a := range m.args {
			if a.argPos == argPos {
				return a
			}
		}
	}
	if lvIndex >= 0 {
		for _, a := range m.args {
			if a.lvIndex == lvIndex && (argPos < 0 || a.argPos < 0) {
				return a
			}
		}
	}
	if argPos < 0 && lvIndex < 0 && name != "" {
		for _, a := range m.args {
			if a.Name(ns) == name {
				return a
			}
		}
	}
	return nil
}

// AddArg returns the matching argument, creating it when missing. Unknown
// attributes of an existing argument are filled in; a conflicting source
// name keeps the existing one.
func (m *Method) AddArg(argPos, lvIndex int, srcName string) *MethodArg {
	a, err := m.addArg(argPos, lvIndex, srcName)
	if err != nil {
		m.tree.log.WithFields(logrus.Fields{
			"method": m.srcName,
			"arg":    a.srcName,
			"name":   srcName,
		}).Debug("keeping existing argument source name")
	}
	return a
}

// addArg is AddArg returning ErrSrcNameChange along with the argument when
// srcName conflicts with the existing one.
func (m *Method) addArg(argPos, lvIndex int, srcName string) (*MethodArg, error) {
	a := m.Arg(argPos, lvIndex, srcName)
	if a == nil {
		a = &MethodArg{element: newElement(m.tree, srcName), owner: m, argPos: argPos, lvIndex: lvIndex}
		m.args = append(m.args, a)
		return a, nil
	}
	if a.argPos < 0 {
		a.argPos = argPos
	}
	if a.lvIndex < 0 {
		a.lvIndex = lvIndex
	}
	if err := a.setSrcName(srcName); err != nil {
		return a, errors.Wrapf(err, "argument of %s", m.srcName)
	}
	return a, nil
}

// RemoveArg deletes a.
func (m *Method) RemoveArg(a *MethodArg) bool {
	for i, o := range m.args {
		if o == a {
			m.args = append(m.args[:i], m.args[i+1:]...)
			return true
		}
	}
	return false
}

// Vars returns the local variables in insertion order.
func (m *Method) Vars() []*MethodVar {
	return append([]*MethodVar(nil), m.vars...)
}

// Var finds a variable by local variable table row, then by slot with an
// overlapping live range, then, when neither is known, by source name.
func (m *Method) Var(lvtRow, lvIndex, startOp, endOp int, srcName string) *MethodVar {
	return m.varIn(lvtRow, lvIndex, startOp, endOp, srcName, SrcNamespace)
}

// VarIn is Var with the name compared in namespace ns.
func (m *Method) VarIn(lvtRow, lvIndex, startOp, endOp int, name string, ns int) *MethodVar {
	return m.varIn(lvtRow, lvIndex, startOp, endOp, name, ns)
}

func (m *Method) varIn(lvtRow, lvIndex, startOp, endOp int, name string, ns int) *MethodVar {
	if lvtRow >= 0 {
		for _, v := range m.vars {
			if v.lvtRow == lvtRow {
				return v
			}
		}
	}
	if lvIndex >= 0 {
		for _, v := range m.vars {
			if v.lvIndex == lvIndex && (lvtRow < 0 || v.lvtRow < 0) && overlaps(v.startOp, v.endOp, startOp, endOp) {
				return v
			}
		}
	}
	if lvtRow < 0 && lvIndex < 0 && name != "" {
		for _, v := range m.vars {
			if v.Name(ns) == name {
				return v
			}
		}
	}
	return nil
}

// overlaps treats an unknown start as covering everything and an unknown
// end as open.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	if aStart < 0 || bStart < 0 {
		return true
	}
	if aEnd >= 0 && bStart >= aEnd {
		return false
	}
	if bEnd >= 0 && aStart >= bEnd {
		return false
	}
	return true
}

// AddVar returns the matching variable, creating it when missing. A
// conflicting source name keeps the existing one.
func (m *Method) AddVar(lvtRow, lvIndex, startOp, endOp int, srcName string) *MethodVar {
	v, err := m.addVar(lvtRow, lvIndex, startOp, endOp, srcName)
	if err != nil {
		m.tree.log.WithFields(logrus.Fields{
			"method": m.srcName,
			"var":    v.srcName,
			"name":   srcName,
		}).Debug("keeping existing variable source name")
	}
	return v
}

func (m *Method) addVar(lvtRow, lvIndex, startOp, endOp int, srcName string) (*MethodVar, error) {
	v := m.Var(lvtRow, lvIndex, startOp, endOp, srcName)
	if v == nil {
		v = &MethodVar{
			element: newElement(m.tree, srcName),
			owner:   m,
			lvtRow:  lvtRow,
			lvIndex: lvIndex,
			startOp: startOp,
			endOp:   endOp,
		}
		m.vars = append(m.vars, v)
		return v, nil
	}
	if v.lvtRow < 0 {
		v.lvtRow = lvtRow
	}
	if v.lvIndex < 0 {
		v.lvIndex = lvIndex
	}
	if v.startOp < 0 {
		v.startOp = startOp
	}
	if v.endOp < 0 {
		v.endOp = endOp
	}
	if err := v.setSrcName(srcName); err != nil {
		return v, errors.Wrapf(err, "variable of %s", m.srcName)
	}
	return v, nil
}

// RemoveVar deletes v.
func (m *Method) RemoveVar(v *MethodVar) bool {
	for i, o := range m.vars {
		if o == v {
			m.vars = append(m.vars[:i], m.vars[i+1:]...)
			return true
		}
	}
	return false
}

// MethodArg is a mapped method parameter.
type MethodArg struct {
	element
	owner   *Method
	argPos  int
	lvIndex int
}

func (a *MethodArg) Owner() *Method { return a.owner }

// ArgPosition returns the 0-based parameter position, -1 if unknown.
func (a *MethodArg) ArgPosition() int { return a.argPos }

// LvIndex returns the local variable slot, -1 if unknown.
func (a *MethodArg) LvIndex() int { return a.lvIndex }

// SetSrcName names an anonymous argument. Renaming a named one fails with
// ErrSrcNameChange.
func (a *MethodArg) SetSrcName(name string) error {
	return a.setSrcName(name)
}

// MethodVar is a mapped local variable.
type MethodVar struct {
	element
	owner   *Method
	lvtRow  int
	lvIndex int
	startOp int
	endOp   int
}

func (v *MethodVar) Owner() *Method { return v.owner }

// LvtRowIndex returns the local variable table row, -1 if unknown.
func (v *MethodVar) LvtRowIndex() int { return v.lvtRow }

// LvIndex returns the local variable slot, -1 if unknown.
func (v *MethodVar) LvIndex() int { return v.lvIndex }

// StartOpIdx returns the first bytecode offset of the live range, -1 if unknown.
func (v *MethodVar) StartOpIdx() int { return v.startOp }

// EndOpIdx returns the exclusive end of the live range, -1 if unknown.
func (v *MethodVar) EndOpIdx() int { return v.endOp }

// SetSrcName names an anonymous variable, see MethodArg.SetSrcName.
func (v *MethodVar) SetSrcName(name string) error {
	return v.setSrcName(name)
}
