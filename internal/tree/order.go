package tree

import (
	"cmp"
	"slices"
)

// VisitOrder controls how Accept sequences elements. Nil comparators keep
// insertion order for that element type.
type VisitOrder struct {
	Classes func(a, b *Class) int
	Fields  func(a, b *Field) int
	Methods func(a, b *Method) int
	Args    func(a, b *MethodArg) int
	Vars    func(a, b *MethodVar) int

	// MethodsFirst emits a class's methods before its fields.
	MethodsFirst bool
	// VarsFirst emits a method's variables before its arguments.
	VarsFirst bool
}

// InsertionOrder replays everything the way it was first visited.
func InsertionOrder() VisitOrder {
	return VisitOrder{}
}

// SortedByName orders classes and members by their name in namespace ns,
// falling back to source name and descriptor, and arguments and variables
// by position.
func SortedByName(ns int) VisitOrder {
	return VisitOrder{
		Classes: func(a, b *Class) int {
			return cmp.Or(compareClassNames(a.Name(ns), b.Name(ns)), compareClassNames(a.srcName, b.srcName))
		},
		Fields: func(a, b *Field) int {
			return compareMembers(&a.member, &b.member, ns)
		},
		Methods: func(a, b *Method) int {
			return compareMembers(&a.member, &b.member, ns)
		},
		Args: func(a, b *MethodArg) int {
			return cmp.Or(
				cmp.Compare(a.argPos, b.argPos),
				cmp.Compare(a.lvIndex, b.lvIndex),
				cmp.Compare(a.srcName, b.srcName),
			)
		},
		Vars: func(a, b *MethodVar) int {
			return cmp.Or(
				cmp.Compare(a.lvIndex, b.lvIndex),
				cmp.Compare(a.startOp, b.startOp),
				cmp.Compare(a.lvtRow, b.lvtRow),
				cmp.Compare(a.srcName, b.srcName),
			)
		},
	}
}

// compareClassNames sorts outer classes before their nested classes, so
// "a/B" < "a/B$C" < "a/BC".
func compareClassNames(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		if a[i] == '$' {
			return -1
		}
		if b[i] == '$' {
			return 1
		}
		return cmp.Compare(a[i], b[i])
	}
	return cmp.Compare(len(a), len(b))
}

func compareMembers(a, b *member, ns int) int {
	return cmp.Or(
		cmp.Compare(a.Name(ns), b.Name(ns)),
		cmp.Compare(a.srcName, b.srcName),
		cmp.Compare(a.srcDesc, b.srcDesc),
	)
}

func sorted[E any](in []E, compare func(a, b E) int) []E {
	if compare == nil {
		return in
	}
	out := slices.Clone(in)
	slices.SortStableFunc(out, compare)
	return out
}
