package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symmap/internal/lang"
)

// scope resolves type names as seen from inside one declaration.
type scope struct {
	file  *file
	owner string
	// vars maps type variables in scope to their first bound, nil for none.
	vars map[string]*sitter.Node
}

// desc returns the erased JVM descriptor of a type node.
func (s *scope) desc(n *sitter.Node) string {
	if n == nil {
		return "L" + objectName + ";"
	}
	switch n.Type() {
	case "void_type":
		return "V"
	case "integral_type", "floating_point_type", "boolean_type":
		if d, ok := s.file.lang.Primitives[lang.NodeText(n, s.file.source)]; ok {
			return d
		}
	case "array_type":
		return strings.Repeat("[", dims(n.ChildByFieldName("dimensions"), s.file.source)) +
			s.desc(n.ChildByFieldName("element"))
	case "annotated_type":
		if c := lastNamed(n); c != nil {
			return s.desc(c)
		}
	}
	return "L" + s.className(n) + ";"
}

// className returns the erased internal name of a class type node.
func (s *scope) className(n *sitter.Node) string {
	switch n.Type() {
	case "generic_type":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "type_identifier" || c.Type() == "scoped_type_identifier" {
				return s.className(c)
			}
		}
	case "type_identifier":
		name := lang.NodeText(n, s.file.source)
		if bound, ok := s.vars[name]; ok {
			if bound == nil {
				return objectName
			}
			return s.className(bound)
		}
		return s.resolve(name)
	case "scoped_type_identifier":
		text := stripTypeArgs(lang.CollapseWhitespace(lang.NodeText(n, s.file.source)))
		return s.resolveQualified(strings.Split(text, "."))
	case "annotated_type":
		if c := lastNamed(n); c != nil {
			return s.className(c)
		}
	}
	return objectName
}

// resolve looks a simple name up the way javac does for a single file:
// member types of the enclosing classes, top-level types of the file,
// single-type imports, implicit imports, then the current package.
func (s *scope) resolve(name string) string {
	for owner := s.owner; owner != ""; owner = outerOf(owner) {
		if cand := owner + "$" + name; s.file.declared[cand] {
			return cand
		}
	}
	top := s.inPackage(name)
	if s.file.declared[top] {
		return top
	}
	if imp, ok := s.file.imports[name]; ok {
		return imp
	}
	if imp, ok := s.file.lang.ImplicitImports[name]; ok {
		return imp
	}
	return top
}

func (s *scope) resolveQualified(parts []string) string {
	first := parts[0]
	_, imported := s.file.imports[first]
	_, implicit := s.file.lang.ImplicitImports[first]
	capitalized := first != "" && first[0] >= 'A' && first[0] <= 'Z'
	if imported || implicit || capitalized || s.file.declared[s.resolve(first)] {
		return s.resolve(first) + "$" + strings.Join(parts[1:], "$")
	}
	return qualifiedToInternal(parts)
}

func (s *scope) inPackage(name string) string {
	if s.file.pkg == "" {
		return name
	}
	return s.file.pkg + "/" + name
}

// outerOf strips the innermost $Member from an internal name.
func outerOf(name string) string {
	slash := strings.LastIndexByte(name, '/')
	dollar := strings.LastIndexByte(name, '$')
	if dollar <= slash {
		return ""
	}
	return name[:dollar]
}

func stripTypeArgs(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if c := int(n.NamedChildCount()); c > 0 {
		return n.NamedChild(c - 1)
	}
	return nil
}
