package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/tree"
)

func method(name, desc string) model.MethodDecl {
	return model.MethodDecl{Name: name, Desc: desc}
}

// sample models:
//
//	interface Fruit { void eat(Fruit); }
//	class Base { void eat(Fruit); Base copy(); static void util(); private void hide(); }
//	class Apple extends Base implements Fruit { Apple copy(); void hide(); }
//	class Pear implements Fruit { void eat(Fruit); }
func sample() []model.FileInfo {
	return []model.FileInfo{
		{Path: "Fruit.java", Types: []model.TypeDecl{{
			Name: "a/Fruit", Super: "java/lang/Object", Interface: true,
			Methods: []model.MethodDecl{method("eat", "(La/Fruit;)V")},
		}}},
		{Path: "Base.java", Types: []model.TypeDecl{{
			Name: "a/Base", Super: "java/lang/Object",
			Methods: []model.MethodDecl{
				method("eat", "(La/Fruit;)V"),
				method("copy", "()La/Base;"),
				{Name: "util", Desc: "()V", Static: true},
				{Name: "hide", Desc: "()V", Private: true},
			},
		}}},
		{Path: "Apple.java", Types: []model.TypeDecl{{
			Name: "a/Apple", Super: "a/Base", Interfaces: []string{"a/Fruit"},
			Methods: []model.MethodDecl{
				method("copy", "()La/Apple;"),
				method("hide", "()V"),
			},
		}}},
		{Path: "Pear.java", Types: []model.TypeDecl{{
			Name: "a/Pear", Super: "java/lang/Object", Interfaces: []string{"a/Fruit"},
			Methods: []model.MethodDecl{method("eat", "(La/Fruit;)V")},
		}}},
	}
}

func TestMethodHierarchy(t *testing.T) {
	t.Parallel()

	h := Build("official", sample())
	assert.Equal(t, "official", h.Namespace())
	assert.Equal(t, 4, h.Types())

	eat := []tree.MethodSig{
		{Owner: "a/Base", Name: "eat", Desc: "(La/Fruit;)V"},
		{Owner: "a/Fruit", Name: "eat", Desc: "(La/Fruit;)V"},
		{Owner: "a/Pear", Name: "eat", Desc: "(La/Fruit;)V"},
	}
	for _, sig := range eat {
		assert.Equal(t, eat, h.MethodHierarchy(sig), "from %s", sig.Owner)
	}

	copies := h.MethodHierarchy(tree.MethodSig{Owner: "a/Apple", Name: "copy", Desc: "()La/Apple;"})
	assert.Equal(t, []tree.MethodSig{
		{Owner: "a/Apple", Name: "copy", Desc: "()La/Apple;"},
		{Owner: "a/Base", Name: "copy", Desc: "()La/Base;"},
	}, copies, "covariant returns override")

	assert.Equal(t, 2, h.Groups())
}

func TestMethodHierarchyIgnoresStaticAndPrivate(t *testing.T) {
	t.Parallel()

	h := Build("official", sample())
	assert.Nil(t, h.MethodHierarchy(tree.MethodSig{Owner: "a/Base", Name: "util", Desc: "()V"}))
	assert.Nil(t, h.MethodHierarchy(tree.MethodSig{Owner: "a/Base", Name: "hide", Desc: "()V"}))
	assert.Equal(t,
		[]tree.MethodSig{{Owner: "a/Apple", Name: "hide", Desc: "()V"}},
		h.MethodHierarchy(tree.MethodSig{Owner: "a/Apple", Name: "hide", Desc: "()V"}),
		"a private method is not overridden")
	assert.Nil(t, h.MethodHierarchy(tree.MethodSig{Owner: "a/Apple", Name: "eat", Desc: "(La/Fruit;)V"}),
		"inherited methods are not declarations")
	assert.Nil(t, h.MethodHierarchy(tree.MethodSig{Owner: "x/Unknown", Name: "eat", Desc: "()V"}))
}

func TestAncestors(t *testing.T) {
	t.Parallel()

	h := Build("official", sample())
	assert.Equal(t, []string{"a/Base", "a/Fruit"}, h.Ancestors("a/Apple"))
	assert.Empty(t, h.Ancestors("a/Base"), "java/lang/Object is not indexed")
	assert.Empty(t, h.Ancestors("x/Unknown"))
}

func TestAncestorsCycle(t *testing.T) {
	t.Parallel()

	h := Build("official", []model.FileInfo{{Types: []model.TypeDecl{
		{Name: "A", Super: "B"},
		{Name: "B", Super: "A"},
	}}})
	assert.Equal(t, []string{"B"}, h.Ancestors("A"))
}

func TestFirstDeclarationWins(t *testing.T) {
	t.Parallel()

	h := Build("official", []model.FileInfo{
		{Types: []model.TypeDecl{{Name: "A", Methods: []model.MethodDecl{method("m", "()V")}}}},
		{Types: []model.TypeDecl{{Name: "A", Methods: []model.MethodDecl{method("n", "()V")}}}},
	})
	assert.Equal(t, 1, h.Types())
	assert.NotNil(t, h.MethodHierarchy(tree.MethodSig{Owner: "A", Name: "m", Desc: "()V"}))
	assert.Nil(t, h.MethodHierarchy(tree.MethodSig{Owner: "A", Name: "n", Desc: "()V"}))
}

func TestPropagatesThroughTree(t *testing.T) {
	t.Parallel()

	tr := tree.New(tree.WithHierarchy(Build("official", sample())))
	require.NoError(t, tr.VisitNamespaces("official", []string{"named"}))
	for _, owner := range []string{"a/Fruit", "a/Base", "a/Pear"} {
		c, err := tr.AddClass(owner)
		require.NoError(t, err)
		m, err := c.AddMethod("eat", "(La/Fruit;)V")
		require.NoError(t, err)
		if owner == "a/Fruit" {
			require.NoError(t, m.SetDstName(0, "consume"))
		}
	}

	n, err := tr.PropagateHierarchy()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "consume", tr.Class("a/Pear").Method("eat", "(La/Fruit;)V").DstName(0))
	assert.Equal(t, "consume", tr.Class("a/Base").Method("eat", "(La/Fruit;)V").DstName(0))
}
