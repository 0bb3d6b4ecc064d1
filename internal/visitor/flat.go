package visitor

import (
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/model"
)

// ErrOutOfOrder is returned when a stateful call has no owner to attach to,
// e.g. a field visited before any class.
var ErrOutOfOrder = errors.New("visitor: element visited outside of its owner")

// ClassRef fully identifies a class in the flat shape.
type ClassRef struct {
	SrcName  string
	DstNames []string
}

// MemberRef fully identifies a field or method in the flat shape.
type MemberRef struct {
	Owner    ClassRef
	SrcName  string
	SrcDesc  string
	DstNames []string
	DstDescs []string
}

// ArgRef fully identifies a method argument in the flat shape.
type ArgRef struct {
	Method      MemberRef
	ArgPosition int
	LvIndex     int
	SrcName     string
	DstNames    []string
}

// VarRef fully identifies a method local variable in the flat shape.
type VarRef struct {
	Method      MemberRef
	LvtRowIndex int
	LvIndex     int
	StartOpIdx  int
	EndOpIdx    int
	SrcName     string
	DstNames    []string
}

// FlatVisitor is the flat shape of the protocol: every call repeats the full
// owning identity and the destination names known so far, so implementations
// need no positional memory.
type FlatVisitor interface {
	Flags() model.Flags
	Reset()

	VisitHeader() (bool, error)
	VisitNamespaces(srcNs string, dstNs []string) error
	VisitMetadata(key, value string) error
	VisitContent() (bool, error)

	VisitClass(c ClassRef) (bool, error)
	VisitClassComment(c ClassRef, comment string) error
	VisitField(f MemberRef) (bool, error)
	VisitFieldComment(f MemberRef, comment string) error
	VisitMethod(m MemberRef) (bool, error)
	VisitMethodComment(m MemberRef, comment string) error
	VisitMethodArg(a ArgRef) (bool, error)
	VisitMethodArgComment(a ArgRef, comment string) error
	VisitMethodVar(v VarRef) (bool, error)
	VisitMethodVarComment(v VarRef, comment string) error

	VisitEnd() (bool, error)
}

type position int

const (
	idle position = iota
	inClass
	inMember
	inSub
)

// flatAsRegular collects stateful calls until an element's content gate and
// then emits one flat call carrying the full identity.
type flatAsRegular struct {
	next  FlatVisitor
	dstNs int

	pos        position
	cls        ClassRef
	member     MemberRef
	memberKind model.Kind
	arg        ArgRef
	lv         VarRef
	subKind    model.Kind
}

// FlatAsRegular exposes a FlatVisitor through the stateful Visitor interface.
func FlatAsRegular(next FlatVisitor) Visitor {
	return &flatAsRegular{next: next}
}

func (a *flatAsRegular) Flags() model.Flags { return a.next.Flags() }

func (a *flatAsRegular) Reset() {
	a.pos = idle
	a.next.Reset()
}

func (a *flatAsRegular) VisitHeader() (bool, error) { return a.next.VisitHeader() }

func (a *flatAsRegular) VisitNamespaces(srcNs string, dstNs []string) error {
	a.dstNs = len(dstNs)
	return a.next.VisitNamespaces(srcNs, dstNs)
}

func (a *flatAsRegular) VisitMetadata(key, value string) error {
	return a.next.VisitMetadata(key, value)
}

func (a *flatAsRegular) VisitContent() (bool, error) {
	a.pos = idle
	return a.next.VisitContent()
}

func (a *flatAsRegular) VisitClass(srcName string) (bool, error) {
	a.cls = ClassRef{SrcName: srcName, DstNames: make([]string, a.dstNs)}
	a.pos = inClass
	return true, nil
}

func (a *flatAsRegular) visitMember(kind model.Kind, srcName, srcDesc string) (bool, error) {
	if a.pos < inClass {
		return false, errors.Wrapf(ErrOutOfOrder, "%s %s", kind, srcName)
	}
	a.member = MemberRef{
		Owner:    a.cls,
		SrcName:  srcName,
		SrcDesc:  srcDesc,
		DstNames: make([]string, a.dstNs),
		DstDescs: make([]string, a.dstNs),
	}
	a.memberKind = kind
	a.pos = inMember
	return true, nil
}

func (a *flatAsRegular) VisitField(srcName, srcDesc string) (bool, error) {
	return a.visitMember(model.Field, srcName, srcDesc)
}

func (a *flatAsRegular) VisitMethod(srcName, srcDesc string) (bool, error) {
	return a.visitMember(model.Method, srcName, srcDesc)
}

func (a *flatAsRegular) checkSub(kind model.Kind, srcName string) error {
	if a.pos < inMember || a.memberKind != model.Method {
		return errors.Wrapf(ErrOutOfOrder, "%s %s", kind, srcName)
	}
	return nil
}

func (a *flatAsRegular) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	if err := a.checkSub(model.MethodArg, srcName); err != nil {
		return false, err
	}
	a.arg = ArgRef{
		Method:      a.member,
		ArgPosition: argPosition,
		LvIndex:     lvIndex,
		SrcName:     srcName,
		DstNames:    make([]string, a.dstNs),
	}
	a.subKind = model.MethodArg
	a.pos = inSub
	return true, nil
}

func (a *flatAsRegular) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	if err := a.checkSub(model.MethodVar, srcName); err != nil {
		return false, err
	}
	a.lv = VarRef{
		Method:      a.member,
		LvtRowIndex: lvtRowIndex,
		LvIndex:     lvIndex,
		StartOpIdx:  startOpIdx,
		EndOpIdx:    endOpIdx,
		SrcName:     srcName,
		DstNames:    make([]string, a.dstNs),
	}
	a.subKind = model.MethodVar
	a.pos = inSub
	return true, nil
}

func (a *flatAsRegular) names(kind model.Kind) ([]string, error) {
	switch {
	case kind == model.Class && a.pos >= inClass:
		return a.cls.DstNames, nil
	case kind == a.memberKind && kind.IsMember() && a.pos >= inMember:
		return a.member.DstNames, nil
	case kind == model.MethodArg && a.subKind == kind && a.pos == inSub:
		return a.arg.DstNames, nil
	case kind == model.MethodVar && a.subKind == kind && a.pos == inSub:
		return a.lv.DstNames, nil
	}
	return nil, errors.Wrapf(ErrOutOfOrder, "no current %s", kind)
}

func (a *flatAsRegular) VisitDstName(kind model.Kind, namespace int, name string) error {
	names, err := a.names(kind)
	if err != nil {
		return err
	}
	if namespace < 0 || namespace >= len(names) {
		return errors.Errorf("visitor: destination namespace %d out of range", namespace)
	}
	names[namespace] = name
	return nil
}

func (a *flatAsRegular) VisitDstDesc(kind model.Kind, namespace int, desc string) error {
	if !kind.IsMember() || a.pos < inMember || kind != a.memberKind {
		return errors.Wrapf(ErrOutOfOrder, "no current %s", kind)
	}
	if namespace < 0 || namespace >= len(a.member.DstDescs) {
		return errors.Errorf("visitor: destination namespace %d out of range", namespace)
	}
	a.member.DstDescs[namespace] = desc
	return nil
}

func (a *flatAsRegular) VisitElementContent(kind model.Kind) (bool, error) {
	switch kind {
	case model.Class:
		return a.next.VisitClass(a.cls)
	case model.Field:
		return a.next.VisitField(a.member)
	case model.Method:
		return a.next.VisitMethod(a.member)
	case model.MethodArg:
		return a.next.VisitMethodArg(a.arg)
	case model.MethodVar:
		return a.next.VisitMethodVar(a.lv)
	}
	return false, errors.Errorf("visitor: unknown element kind %q", kind)
}

func (a *flatAsRegular) VisitComment(kind model.Kind, comment string) error {
	switch kind {
	case model.Class:
		return a.next.VisitClassComment(a.cls, comment)
	case model.Field:
		return a.next.VisitFieldComment(a.member, comment)
	case model.Method:
		return a.next.VisitMethodComment(a.member, comment)
	case model.MethodArg:
		return a.next.VisitMethodArgComment(a.arg, comment)
	case model.MethodVar:
		return a.next.VisitMethodVarComment(a.lv, comment)
	}
	return errors.Errorf("visitor: unknown element kind %q", kind)
}

func (a *flatAsRegular) VisitEnd() (bool, error) {
	a.pos = idle
	return a.next.VisitEnd()
}

type memberKey struct {
	kind       model.Kind
	name, desc string
}

type subKey struct {
	kind                     model.Kind
	pos, lv, row, start, end int
	name                     string
}

// regularAsFlat drives a stateful Visitor from flat calls. It only remembers
// the last class, member and sub element it opened, so repeated flat calls
// for the same owner collapse into one stateful visit.
type regularAsFlat struct {
	next Visitor

	hasClass bool
	cls      string
	clsOK    bool

	hasMember bool
	member    memberKey
	memberOK  bool

	hasSub bool
	sub    subKey
	subOK  bool
}

// RegularAsFlat exposes a stateful Visitor through the FlatVisitor interface.
func RegularAsFlat(next Visitor) FlatVisitor {
	return &regularAsFlat{next: next}
}

func (r *regularAsFlat) forget() {
	r.hasClass, r.hasMember, r.hasSub = false, false, false
}

func (r *regularAsFlat) Flags() model.Flags { return r.next.Flags() }

func (r *regularAsFlat) Reset() {
	r.forget()
	r.next.Reset()
}

func (r *regularAsFlat) VisitHeader() (bool, error) { return r.next.VisitHeader() }

func (r *regularAsFlat) VisitNamespaces(srcNs string, dstNs []string) error {
	return r.next.VisitNamespaces(srcNs, dstNs)
}

func (r *regularAsFlat) VisitMetadata(key, value string) error {
	return r.next.VisitMetadata(key, value)
}

func (r *regularAsFlat) VisitContent() (bool, error) {
	r.forget()
	return r.next.VisitContent()
}

func (r *regularAsFlat) dstNames(kind model.Kind, names []string) error {
	for ns, name := range names {
		if name == "" {
			continue
		}
		if err := r.next.VisitDstName(kind, ns, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *regularAsFlat) enterClass(c ClassRef) (bool, error) {
	if r.hasClass && r.cls == c.SrcName {
		return r.clsOK, nil
	}
	r.hasClass, r.cls, r.clsOK = true, c.SrcName, false
	r.hasMember, r.hasSub = false, false

	ok, err := r.next.VisitClass(c.SrcName)
	if err != nil || !ok {
		return false, err
	}
	if err := r.dstNames(model.Class, c.DstNames); err != nil {
		return false, err
	}
	ok, err = r.next.VisitElementContent(model.Class)
	r.clsOK = ok && err == nil
	return r.clsOK, err
}

func (r *regularAsFlat) enterMember(kind model.Kind, m MemberRef) (bool, error) {
	if ok, err := r.enterClass(m.Owner); err != nil || !ok {
		return false, err
	}
	key := memberKey{kind: kind, name: m.SrcName, desc: m.SrcDesc}
	if r.hasMember && r.member == key {
		return r.memberOK, nil
	}
	r.hasMember, r.member, r.memberOK = true, key, false
	r.hasSub = false

	var ok bool
	var err error
	if kind == model.Field {
		ok, err = r.next.VisitField(m.SrcName, m.SrcDesc)
	} else {
		ok, err = r.next.VisitMethod(m.SrcName, m.SrcDesc)
	}
	if err != nil || !ok {
		return false, err
	}
	if err := r.dstNames(kind, m.DstNames); err != nil {
		return false, err
	}
	for ns, desc := range m.DstDescs {
		if desc == "" {
			continue
		}
		if err := r.next.VisitDstDesc(kind, ns, desc); err != nil {
			return false, err
		}
	}
	ok, err = r.next.VisitElementContent(kind)
	r.memberOK = ok && err == nil
	return r.memberOK, err
}

func (r *regularAsFlat) enterSub(key subKey, method MemberRef, names []string) (bool, error) {
	if ok, err := r.enterMember(model.Method, method); err != nil || !ok {
		return false, err
	}
	if r.hasSub && r.sub == key {
		return r.subOK, nil
	}
	r.hasSub, r.sub, r.subOK = true, key, false

	var ok bool
	var err error
	if key.kind == model.MethodArg {
		ok, err = r.next.VisitMethodArg(key.pos, key.lv, key.name)
	} else {
		ok, err = r.next.VisitMethodVar(key.row, key.lv, key.start, key.end, key.name)
	}
	if err != nil || !ok {
		return false, err
	}
	if err := r.dstNames(key.kind, names); err != nil {
		return false, err
	}
	ok, err = r.next.VisitElementContent(key.kind)
	r.subOK = ok && err == nil
	return r.subOK, err
}

func argKey(a ArgRef) subKey {
	return subKey{kind: model.MethodArg, pos: a.ArgPosition, lv: a.LvIndex, row: -1, start: -1, end: -1, name: a.SrcName}
}

func varKey(v VarRef) subKey {
	return subKey{kind: model.MethodVar, pos: -1, lv: v.LvIndex, row: v.LvtRowIndex, start: v.StartOpIdx, end: v.EndOpIdx, name: v.SrcName}
}

func (r *regularAsFlat) VisitClass(c ClassRef) (bool, error) {
	return r.enterClass(c)
}

func (r *regularAsFlat) VisitClassComment(c ClassRef, comment string) error {
	if ok, err := r.enterClass(c); err != nil || !ok {
		return err
	}
	return r.next.VisitComment(model.Class, comment)
}

func (r *regularAsFlat) VisitField(f MemberRef) (bool, error) {
	return r.enterMember(model.Field, f)
}

func (r *regularAsFlat) VisitFieldComment(f MemberRef, comment string) error {
	if ok, err := r.enterMember(model.Field, f); err != nil || !ok {
		return err
	}
	return r.next.VisitComment(model.Field, comment)
}

func (r *regularAsFlat) VisitMethod(m MemberRef) (bool, error) {
	return r.enterMember(model.Method, m)
}

func (r *regularAsFlat) VisitMethodComment(m MemberRef, comment string) error {
	if ok, err := r.enterMember(model.Method, m); err != nil || !ok {
		return err
	}
	return r.next.VisitComment(model.Method, comment)
}

func (r *regularAsFlat) VisitMethodArg(a ArgRef) (bool, error) {
	return r.enterSub(argKey(a), a.Method, a.DstNames)
}

func (r *regularAsFlat) VisitMethodArgComment(a ArgRef, comment string) error {
	if ok, err := r.enterSub(argKey(a), a.Method, a.DstNames); err != nil || !ok {
		return err
	}
	return r.next.VisitComment(model.MethodArg, comment)
}

func (r *regularAsFlat) VisitMethodVar(v VarRef) (bool, error) {
	return r.enterSub(varKey(v), v.Method, v.DstNames)
}

func (r *regularAsFlat) VisitMethodVarComment(v VarRef, comment string) error {
	if ok, err := r.enterSub(varKey(v), v.Method, v.DstNames); err != nil || !ok {
		return err
	}
	return r.next.VisitComment(model.MethodVar, comment)
}

func (r *regularAsFlat) VisitEnd() (bool, error) {
	r.forget()
	return r.next.VisitEnd()
}
