// Package graph builds a class hierarchy from parsed source files and groups
// the methods connected by overriding.
package graph

import (
	"sort"
	"strings"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/tree"
)

// methodKey identifies a declared method. args is the descriptor's parameter
// part, so covariant overrides land on the same key.
type methodKey struct {
	owner string
	name  string
	args  string
}

type declared struct {
	desc string
}

// Hierarchy answers override queries for one namespace. It implements
// tree.HierarchyProvider.
type Hierarchy struct {
	ns      string
	types   map[string]*model.TypeDecl
	methods map[methodKey]declared
	parent  map[methodKey]methodKey
	groups  map[methodKey][]tree.MethodSig
}

// Build indexes every type in fileInfos as living in namespace ns. When a
// name is declared twice the first declaration wins.
func Build(ns string, fileInfos []model.FileInfo) *Hierarchy {
	h := &Hierarchy{
		ns:      ns,
		types:   make(map[string]*model.TypeDecl),
		methods: make(map[methodKey]declared),
		parent:  make(map[methodKey]methodKey),
	}
	for i := range fileInfos {
		fi := &fileInfos[i]
		for j := range fi.Types {
			td := &fi.Types[j]
			if _, dup := h.types[td.Name]; dup {
				continue
			}
			h.types[td.Name] = td
			for _, m := range td.Methods {
				if m.Static || m.Private {
					continue
				}
				k := methodKey{owner: td.Name, name: m.Name, args: argsOf(m.Desc)}
				if _, dup := h.methods[k]; dup {
					continue
				}
				h.methods[k] = declared{desc: m.Desc}
			}
		}
	}

	// Every type sees the methods of all its ancestors. Methods sharing a
	// name and parameter list there are one virtual method, which also
	// links an inherited implementation to an interface it satisfies.
	for _, name := range sortedKeys(h.types) {
		visible := make(map[string]methodKey)
		for _, owner := range append([]string{name}, h.Ancestors(name)...) {
			for _, m := range h.types[owner].Methods {
				k := methodKey{owner: owner, name: m.Name, args: argsOf(m.Desc)}
				if _, ok := h.methods[k]; !ok {
					continue
				}
				sig := m.Name + argsOf(m.Desc)
				if first, ok := visible[sig]; ok {
					h.union(first, k)
				} else {
					visible[sig] = k
				}
			}
		}
	}

	h.groups = make(map[methodKey][]tree.MethodSig)
	for _, k := range sortedMethodKeys(h.methods) {
		root := h.find(k)
		d := h.methods[k]
		h.groups[root] = append(h.groups[root], tree.MethodSig{Owner: k.owner, Name: k.name, Desc: d.desc})
	}
	return h
}

// Namespace returns the namespace the indexed names belong to.
func (h *Hierarchy) Namespace() string {
	return h.ns
}

// MethodHierarchy returns every method overriding or overridden by sig,
// sig's own declaration included, sorted by owner. It returns nil when sig's
// owner does not declare a matching virtual method.
func (h *Hierarchy) MethodHierarchy(sig tree.MethodSig) []tree.MethodSig {
	k := methodKey{owner: sig.Owner, name: sig.Name, args: argsOf(sig.Desc)}
	if _, ok := h.methods[k]; !ok {
		return nil
	}
	group := h.groups[h.find(k)]
	out := make([]tree.MethodSig, len(group))
	copy(out, group)
	return out
}

// Ancestors returns the known supertypes of name, nearest first. Supertypes
// missing from the index end their branch of the walk.
func (h *Hierarchy) Ancestors(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		td := h.types[queue[0]]
		queue = queue[1:]
		if td == nil {
			continue
		}
		supers := append([]string{td.Super}, td.Interfaces...)
		for _, s := range supers {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			if _, ok := h.types[s]; !ok {
				continue
			}
			out = append(out, s)
			queue = append(queue, s)
		}
	}
	return out
}

// Types returns the number of indexed types.
func (h *Hierarchy) Types() int {
	return len(h.types)
}

// Groups returns the number of override groups with more than one member.
func (h *Hierarchy) Groups() int {
	n := 0
	for _, g := range h.groups {
		if len(g) > 1 {
			n++
		}
	}
	return n
}

func (h *Hierarchy) find(k methodKey) methodKey {
	for {
		p, ok := h.parent[k]
		if !ok || p == k {
			return k
		}
		if gp, ok := h.parent[p]; ok {
			h.parent[k] = gp
		}
		k = p
	}
}

func (h *Hierarchy) union(a, b methodKey) {
	ra, rb := h.find(a), h.find(b)
	if ra == rb {
		return
	}
	// keep the smaller key as root so groups come out the same every run
	if lessKey(rb, ra) {
		ra, rb = rb, ra
	}
	h.parent[rb] = ra
}

func argsOf(desc string) string {
	if i := strings.IndexByte(desc, ')'); i >= 0 {
		return desc[:i+1]
	}
	return desc
}

func lessKey(a, b methodKey) bool {
	if a.owner != b.owner {
		return a.owner < b.owner
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.args < b.args
}

func sortedKeys(m map[string]*model.TypeDecl) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMethodKeys(m map[methodKey]declared) []methodKey {
	keys := make([]methodKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
	return keys
}
