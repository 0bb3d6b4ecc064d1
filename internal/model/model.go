// Package model defines core data structures shared by the symmap packages.
package model

import "strings"

// Kind identifies the kind of a mappable element.
type Kind string

const (
	Class     Kind = "class"
	Field     Kind = "field"
	Method    Kind = "method"
	MethodArg Kind = "arg"
	MethodVar Kind = "var"
)

// IsMember reports whether k is a class member (field or method).
func (k Kind) IsMember() bool {
	return k == Field || k == Method
}

// Flags is the capability set a consumer advertises before production begins.
type Flags uint16

const (
	// NeedsMultiplePasses means the consumer may return false from VisitEnd
	// and expects the producer to restart from the header.
	NeedsMultiplePasses Flags = 1 << iota
	// NeedsHeaderMetadata means all metadata must be visited in the header phase.
	NeedsHeaderMetadata
	// NeedsUniqueMetadata means no metadata key may be visited twice.
	NeedsUniqueMetadata
	// NeedsElementUniqueness means no element may be visited more than once per pass.
	NeedsElementUniqueness
	NeedsSrcFieldDesc
	NeedsSrcMethodDesc
	NeedsDstFieldDesc
	NeedsDstMethodDesc

	NoFlags Flags = 0
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{NeedsMultiplePasses, "multiple-passes"},
	{NeedsHeaderMetadata, "header-metadata"},
	{NeedsUniqueMetadata, "unique-metadata"},
	{NeedsElementUniqueness, "element-uniqueness"},
	{NeedsSrcFieldDesc, "src-field-desc"},
	{NeedsSrcMethodDesc, "src-method-desc"},
	{NeedsDstFieldDesc, "dst-field-desc"},
	{NeedsDstMethodDesc, "dst-method-desc"},
}

func (fl Flags) String() string {
	if fl == NoFlags {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if fl&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// DescState classifies how much of a member descriptor is known.
type DescState int

const (
	DescAbsent DescState = iota
	// DescPartial is a method descriptor carrying parameter types only, e.g. "(IJ)".
	DescPartial
	DescFull
)

func (s DescState) String() string {
	switch s {
	case DescPartial:
		return "partial"
	case DescFull:
		return "full"
	default:
		return "absent"
	}
}

// ClassifyDesc returns the descriptor state of desc for a member of kind k.
func ClassifyDesc(k Kind, desc string) DescState {
	if desc == "" {
		return DescAbsent
	}
	if k != Method {
		return DescFull
	}
	end := strings.IndexByte(desc, ')')
	if desc[0] != '(' || end < 0 {
		// not a method descriptor at all; keep it as an opaque full key
		return DescFull
	}
	if end == len(desc)-1 {
		return DescPartial
	}
	return DescFull
}

// DescCompatible reports whether two descriptors of the same member kind may
// describe the same member. Absent matches everything, a partial method
// descriptor matches every full descriptor with the same parameter list.
func DescCompatible(k Kind, a, b string) bool {
	sa, sb := ClassifyDesc(k, a), ClassifyDesc(k, b)
	switch {
	case sa == DescAbsent || sb == DescAbsent:
		return true
	case sa == sb:
		return a == b
	case sa == DescPartial:
		return strings.HasPrefix(b, a)
	default:
		return strings.HasPrefix(a, b)
	}
}

// Property is one metadata entry of a mapping header.
type Property struct {
	Key   string
	Value string
}

// TypeDecl is a class or interface declared in a parsed source file.
// Names use the JVM internal form ("pkg/Outer$Inner").
type TypeDecl struct {
	Name       string
	Super      string
	Interfaces []string
	Interface  bool
	Methods    []MethodDecl
	File       string
	Line       int
}

// MethodDecl is a method declared by a TypeDecl.
type MethodDecl struct {
	Name    string
	Desc    string
	Static  bool
	Private bool
	Line    int
}

// FileInfo holds the declarations extracted from a single source file.
type FileInfo struct {
	Path     string
	Language string
	Package  string
	Types    []TypeDecl
}
