package tree

import "strings"

// MapClassName translates a class name between namespaces. Unknown classes
// and classes without a name in the target namespace come back unchanged.
func (t *Tree) MapClassName(name string, from, to int) string {
	if from == to {
		return name
	}
	c := t.ClassIn(name, from)
	if c == nil {
		return name
	}
	if mapped := c.Name(to); mapped != "" {
		return mapped
	}
	return name
}

// MapDesc rewrites every "L<class>;" reference in a field or method
// descriptor from namespace from to namespace to. It does not allocate when
// no reference changes.
func (t *Tree) MapDesc(desc string, from, to int) string {
	if from == to {
		return desc
	}
	var b *strings.Builder
	copied := 0
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i+1:], ';')
		if end < 0 {
			break
		}
		end += i + 1
		name := desc[i+1 : end]
		if mapped := t.MapClassName(name, from, to); mapped != name {
			if b == nil {
				b = &strings.Builder{}
				b.Grow(len(desc) + 16)
			}
			b.WriteString(desc[copied : i+1])
			b.WriteString(mapped)
			copied = end
		}
		i = end
	}
	if b == nil {
		return desc
	}
	b.WriteString(desc[copied:])
	return b.String()
}
