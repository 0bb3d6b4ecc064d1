// Package parse extracts Java type declarations from source files using
// tree-sitter. Names come out in JVM internal form and method descriptors
// are erased the way javac erases them.
package parse

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symmap/internal/lang"
	"github.com/phobologic/symmap/internal/model"
)

const objectName = "java/lang/Object"

// ExtractTypes parses a source file and returns the types it declares.
// The parser must be created for l. filePath is used only for the
// returned records and should be relative to the scanned root.
func ExtractTypes(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) (model.FileInfo, error) {
	fi := model.FileInfo{Path: filePath, Language: l.Name}
	if len(source) == 0 {
		return fi, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return fi, errors.Wrapf(err, "parsing %s", filePath)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	f := &file{lang: l, source: source, declared: make(map[string]bool), imports: make(map[string]string)}
	var decls []*sitter.Node

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		for _, c := range match.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "package":
				if name := qualifiedChild(c.Node, source); name != "" {
					fi.Package = strings.ReplaceAll(name, ".", "/")
				}
			case "import":
				f.addImport(c.Node)
			case "definition.class", "definition.interface", "definition.enum":
				decls = append(decls, c.Node)
			}
		}
	}
	f.pkg = fi.Package

	// names first, so that every declaration can see its siblings
	type named struct {
		node *sitter.Node
		name string
	}
	var types []named
	for _, n := range decls {
		name, ok := f.internalName(n)
		if !ok {
			continue
		}
		f.declared[name] = true
		types = append(types, named{n, name})
	}
	for _, t := range types {
		fi.Types = append(fi.Types, f.typeDecl(t.node, t.name, filePath))
	}
	return fi, nil
}

type file struct {
	lang     *lang.Language
	source   []byte
	pkg      string
	declared map[string]bool
	// imports maps simple names to internal names for single-type imports.
	imports map[string]string
}

// qualifiedChild returns the dotted name held by a package or import node.
func qualifiedChild(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "scoped_identifier", "identifier":
			return lang.CollapseWhitespace(lang.NodeText(c, source))
		}
	}
	return ""
}

func (f *file) addImport(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "static", "asterisk":
			return
		}
	}
	name := qualifiedChild(n, f.source)
	if name == "" {
		return
	}
	internal := qualifiedToInternal(strings.Split(name, "."))
	simple := name[strings.LastIndexByte(name, '.')+1:]
	f.imports[simple] = internal
}

// qualifiedToInternal turns dotted segments into an internal name, treating
// the first capitalized segment as the outermost class.
func qualifiedToInternal(parts []string) string {
	for i, p := range parts {
		if p != "" && p[0] >= 'A' && p[0] <= 'Z' {
			return strings.Join(parts[:i], "/") + pkgSep(i) + strings.Join(parts[i:], "$")
		}
	}
	return strings.Join(parts, "/")
}

func pkgSep(i int) string {
	if i == 0 {
		return ""
	}
	return "/"
}

var typeDeclNodes = map[string]bool{
	"class_declaration":     true,
	"interface_declaration": true,
	"enum_declaration":      true,
	"record_declaration":    true,
}

var bodyNodes = map[string]bool{
	"class_body":             true,
	"interface_body":         true,
	"enum_body":              true,
	"enum_body_declarations": true,
}

// internalName builds Outer$Inner names from the declaration's ancestors.
// Local and anonymous classes have no stable name and are skipped.
func (f *file) internalName(n *sitter.Node) (string, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return "", false
	}
	parts := []string{lang.NodeText(nameNode, f.source)}
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch {
		case p.Type() == "program":
			name := strings.Join(parts, "$")
			if f.pkg != "" {
				name = f.pkg + "/" + name
			}
			return name, true
		case bodyNodes[p.Type()]:
			// a class body directly under an expression is anonymous
			if parent := p.Parent(); parent == nil || (!typeDeclNodes[parent.Type()] && !bodyNodes[parent.Type()]) {
				return "", false
			}
		case typeDeclNodes[p.Type()]:
			outer := p.ChildByFieldName("name")
			if outer == nil {
				return "", false
			}
			parts = append([]string{lang.NodeText(outer, f.source)}, parts...)
		default:
			return "", false
		}
	}
	return "", false
}

func (f *file) typeDecl(n *sitter.Node, name, path string) model.TypeDecl {
	td := model.TypeDecl{
		Name:      name,
		Super:     objectName,
		Interface: n.Type() == "interface_declaration",
		File:      path,
		Line:      int(n.StartPoint().Row) + 1,
	}
	if name == objectName {
		td.Super = ""
	}
	s := &scope{file: f, owner: name, vars: f.classTypeParams(n)}

	switch n.Type() {
	case "enum_declaration":
		td.Super = "java/lang/Enum"
	case "record_declaration":
		td.Super = "java/lang/Record"
	}
	if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
		td.Super = s.className(sc.NamedChild(0))
	}
	if ifs := n.ChildByFieldName("interfaces"); ifs != nil {
		td.Interfaces = s.typeList(ifs)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "extends_interfaces" {
			td.Interfaces = s.typeList(c)
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return td
	}
	var members []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() == "enum_body_declarations" {
			for j := 0; j < int(c.NamedChildCount()); j++ {
				members = append(members, c.NamedChild(j))
			}
			continue
		}
		members = append(members, c)
	}
	for _, m := range members {
		if m.Type() != "method_declaration" {
			continue
		}
		td.Methods = append(td.Methods, s.method(m))
	}
	return td
}

// typeList resolves every type below a super_interfaces or
// extends_interfaces node.
func (s *scope) typeList(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_list" {
			for j := 0; j < int(c.NamedChildCount()); j++ {
				out = append(out, s.className(c.NamedChild(j)))
			}
		}
	}
	return out
}

func (s *scope) method(n *sitter.Node) model.MethodDecl {
	md := model.MethodDecl{Line: int(n.StartPoint().Row) + 1}
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		md.Name = lang.NodeText(nameNode, s.file.source)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			switch c.Child(j).Type() {
			case "static":
				md.Static = true
			case "private":
				md.Private = true
			}
		}
	}

	ms := &scope{file: s.file, owner: s.owner, vars: s.file.typeParams(n, s.vars)}
	var b strings.Builder
	b.WriteByte('(')
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "formal_parameter":
				b.WriteString(strings.Repeat("[", dims(p.ChildByFieldName("dimensions"), s.file.source)))
				b.WriteString(ms.desc(p.ChildByFieldName("type")))
			case "spread_parameter":
				b.WriteByte('[')
				b.WriteString(ms.desc(spreadType(p)))
			}
		}
	}
	b.WriteByte(')')
	b.WriteString(strings.Repeat("[", dims(n.ChildByFieldName("dimensions"), s.file.source)))
	b.WriteString(ms.desc(n.ChildByFieldName("type")))
	md.Desc = b.String()
	return md
}

func spreadType(p *sitter.Node) *sitter.Node {
	for i := 0; i < int(p.NamedChildCount()); i++ {
		c := p.NamedChild(i)
		if c.Type() != "modifiers" && c.Type() != "variable_declarator" {
			return c
		}
	}
	return nil
}

func dims(n *sitter.Node, source []byte) int {
	if n == nil {
		return 0
	}
	return strings.Count(lang.NodeText(n, source), "[")
}

// classTypeParams collects the type parameters of n and of every type
// enclosing it.
func (f *file) classTypeParams(n *sitter.Node) map[string]*sitter.Node {
	var chain []*sitter.Node
	for p := n; p != nil; p = p.Parent() {
		if typeDeclNodes[p.Type()] {
			chain = append(chain, p)
		}
	}
	var vars map[string]*sitter.Node
	for i := len(chain) - 1; i >= 0; i-- {
		vars = f.typeParams(chain[i], vars)
	}
	return vars
}

// typeParams adds the erasure bound of every type parameter n declares to
// outer. A nil bound erases to Object.
func (f *file) typeParams(n *sitter.Node, outer map[string]*sitter.Node) map[string]*sitter.Node {
	var tps *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "type_parameters" {
			tps = c
			break
		}
	}
	if tps == nil {
		return outer
	}
	vars := make(map[string]*sitter.Node, len(outer)+int(tps.NamedChildCount()))
	for k, v := range outer {
		vars[k] = v
	}
	for i := 0; i < int(tps.NamedChildCount()); i++ {
		tp := tps.NamedChild(i)
		if tp.Type() != "type_parameter" {
			continue
		}
		var name string
		var bound *sitter.Node
		for j := 0; j < int(tp.NamedChildCount()); j++ {
			c := tp.NamedChild(j)
			switch c.Type() {
			case "type_identifier", "identifier":
				if name == "" {
					name = lang.NodeText(c, f.source)
				}
			case "type_bound":
				if c.NamedChildCount() > 0 {
					bound = c.NamedChild(0)
				}
			}
		}
		if name != "" {
			vars[name] = bound
		}
	}
	return vars
}
