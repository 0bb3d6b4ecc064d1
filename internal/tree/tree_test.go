package tree

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/visitor"
)

func TestWorkedExample(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.VisitNamespaces("official", []string{"intermediary", "named"}))
	ok, err := tr.VisitClass("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.VisitDstName(model.Class, 0, "net/x/A"))
	ok, err = tr.VisitElementContent(model.Class)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tr.VisitField("f", "I")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.VisitDstName(model.Field, 0, "g"))
	ok, err = tr.VisitElementContent(model.Field)
	require.NoError(t, err)
	require.True(t, ok)
	done, err := tr.VisitEnd()
	require.NoError(t, err)
	assert.True(t, done)

	c := tr.Class("a")
	require.NotNil(t, c)
	assert.Equal(t, "net/x/A", c.DstName(0))
	f := c.Field("f", "I")
	require.NotNil(t, f)
	assert.Equal(t, "g", f.DstName(0))
	assert.Equal(t, "", f.DstName(1))
	assert.Equal(t, "f", f.Name(SrcNamespace))
}

func visitMember(t *testing.T, tr *Tree, kind model.Kind, name, desc, dst string) {
	t.Helper()
	_, err := tr.VisitClass("a")
	require.NoError(t, err)
	_, err = tr.VisitElementContent(model.Class)
	require.NoError(t, err)
	if kind == model.Field {
		_, err = tr.VisitField(name, desc)
	} else {
		_, err = tr.VisitMethod(name, desc)
	}
	require.NoError(t, err)
	if dst != "" {
		require.NoError(t, tr.VisitDstName(kind, 0, dst))
	}
	_, err = tr.VisitElementContent(kind)
	require.NoError(t, err)
	_, err = tr.VisitEnd()
	require.NoError(t, err)
}

func TestMergeIsNonDestructive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		kind   model.Kind
		first  [2]string // desc, dst
		second [2]string
		desc   string
	}{
		{"field desc then name", model.Field, [2]string{"I", ""}, [2]string{"", "g"}, "I"},
		{"field name then desc", model.Field, [2]string{"", "g"}, [2]string{"I", ""}, "I"},
		{"method desc then name", model.Method, [2]string{"(I)V", ""}, [2]string{"", "run"}, "(I)V"},
		{"method name then desc", model.Method, [2]string{"", "run"}, [2]string{"(I)V", ""}, "(I)V"},
		{"method partial then full", model.Method, [2]string{"(I)", "run"}, [2]string{"(I)V", ""}, "(I)V"},
		{"method full then partial", model.Method, [2]string{"(I)V", ""}, [2]string{"(I)", "run"}, "(I)V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := New()
			require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
			visitMember(t, tr, tt.kind, "x", tt.first[0], tt.first[1])
			visitMember(t, tr, tt.kind, "x", tt.second[0], tt.second[1])

			c := tr.Class("a")
			if tt.kind == model.Field {
				require.Len(t, c.Fields(), 1)
				f := c.Fields()[0]
				assert.Equal(t, tt.desc, f.SrcDesc())
				assert.NotEmpty(t, f.DstName(0))
			} else {
				require.Len(t, c.Methods(), 1)
				m := c.Methods()[0]
				assert.Equal(t, tt.desc, m.SrcDesc())
				assert.Equal(t, "run", m.DstName(0))
			}
			assert.NoError(t, tr.Validate())
		})
	}
}

func TestFirstWriteWins(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
	for _, name := range []string{"first", "second"} {
		_, err := tr.VisitClass("a")
		require.NoError(t, err)
		require.NoError(t, tr.VisitDstName(model.Class, 0, name))
		_, err = tr.VisitElementContent(model.Class)
		require.NoError(t, err)
		require.NoError(t, tr.VisitComment(model.Class, name+" comment"))
	}
	c := tr.Class("a")
	assert.Equal(t, "first", c.DstName(0))
	assert.Equal(t, "first comment", c.Comment())

	c.SetComment("explicit")
	assert.Equal(t, "explicit", c.Comment())
}

func TestOverloadsStayDistinct(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
	c, err := tr.AddClass("a")
	require.NoError(t, err)
	mi, err := c.AddMethod("m", "(I)V")
	require.NoError(t, err)
	mj, err := c.AddMethod("m", "(J)V")
	require.NoError(t, err)
	require.NotSame(t, mi, mj)

	assert.Same(t, mi, c.Method("m", "(I)"), "partial descriptor picks its overload")
	assert.Nil(t, c.Method("m", ""), "absent descriptor is ambiguous between two overloads")

	provisional, err := c.AddMethod("m", "")
	require.NoError(t, err)
	assert.Len(t, c.Methods(), 3)
	require.NoError(t, provisional.SetDstName(0, "run"))

	survivor, err := provisional.SetSrcDesc("(I)V")
	require.NoError(t, err)
	assert.Same(t, mi, survivor)
	assert.Equal(t, "run", mi.DstName(0))
	assert.Len(t, c.Methods(), 2)

	_, err = mj.SetSrcDesc("(I)V")
	assert.ErrorIs(t, err, ErrIncompatibleDesc)
	assert.NoError(t, tr.Validate())
}

func TestDstDescResolvesSrcDesc(t *testing.T) {
	t.Parallel()

	tr := newSample(t)
	require.NoError(t, tr.VisitNamespaces("official", []string{"intermediary"}))
	_, err := tr.VisitClass("a")
	require.NoError(t, err)
	_, err = tr.VisitMethod("n", "")
	require.NoError(t, err)
	require.NoError(t, tr.VisitDstDesc(model.Method, 0, "(Lnet/x/A;)I"))

	m := tr.Class("a").Method("n", "")
	require.NotNil(t, m)
	assert.Equal(t, "(La;)I", m.SrcDesc())
	assert.Equal(t, "(Lnet/x/Apple;)I", m.Desc(1))
}

func TestMapDesc(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.SetDstNamespaces([]string{"dst"}))
	a, err := tr.AddClass("a")
	require.NoError(t, err)
	require.NoError(t, a.SetDstName(0, "A"))

	assert.Equal(t, "LA;", tr.MapDesc("La;", SrcNamespace, 0))
	assert.Equal(t, "Lunknown;", tr.MapDesc("Lunknown;", SrcNamespace, 0))
	assert.Equal(t, "(ILA;[LA;)LA;", tr.MapDesc("(ILa;[La;)La;", SrcNamespace, 0))
	assert.Equal(t, "(La;)V", tr.MapDesc("(LA;)V", 0, SrcNamespace))
	assert.Equal(t, "(Lb;", tr.MapDesc("(Lb;", SrcNamespace, 0))
	assert.Equal(t, "La", tr.MapDesc("La", SrcNamespace, 0), "unterminated reference")
}

func TestMapDescDoesNotAllocateWithoutSubstitution(t *testing.T) {
	tr := New(WithDstIndex())
	require.NoError(t, tr.SetDstNamespaces([]string{"dst"}))
	_, err := tr.AddClass("a")
	require.NoError(t, err)

	desc := "(Ljava/lang/String;IJLa;)[Ljava/lang/Object;"
	allocs := testing.AllocsPerRun(100, func() {
		_ = tr.MapDesc(desc, SrcNamespace, 0)
	})
	assert.Zero(t, allocs)
}

// passConsumer asks for want passes and collects each pass in a fresh tree.
type passConsumer struct {
	visitor.Forwarding
	want   int
	ends   int
	passes []*Tree
}

func newPassConsumer(want int) *passConsumer {
	first := New()
	return &passConsumer{Forwarding: visitor.Forwarding{Next: first}, want: want, passes: []*Tree{first}}
}

func (p *passConsumer) Flags() model.Flags { return model.NeedsMultiplePasses }

func (p *passConsumer) Reset() {
	next := New()
	p.Next = next
	p.passes = append(p.passes, next)
}

func (p *passConsumer) VisitEnd() (bool, error) {
	if _, err := p.Next.VisitEnd(); err != nil {
		return false, err
	}
	p.ends++
	return p.ends >= p.want, nil
}

func TestMultiplePasses(t *testing.T) {
	t.Parallel()

	src := newSample(t)
	c := newPassConsumer(3)
	require.NoError(t, src.Accept(c))

	assert.Equal(t, 3, c.ends)
	require.Len(t, c.passes, 3)
	want := dump(t, src)
	for i, pass := range c.passes {
		assert.Equal(t, want, dump(t, pass), "pass %d", i+1)
	}
}

func TestAcceptOrderAndFlags(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
	tr.AddMetadata("k", "1")
	tr.AddMetadata("j", "2")
	tr.AddMetadata("k", "3")
	for _, name := range []string{"b", "a$1", "a"} {
		_, err := tr.AddClass(name)
		require.NoError(t, err)
	}
	b := tr.Class("b")
	require.NoError(t, b.SetDstName(0, "B"))
	_, err := b.AddField("z", "Lb;")
	require.NoError(t, err)
	m, err := b.AddMethod("y", "()Lb;")
	require.NoError(t, err)
	m.AddVar(-1, 1, -1, -1, "v")
	m.AddArg(0, -1, "p")

	order := SortedByName(SrcNamespace)
	order.MethodsFirst = true
	order.VarsFirst = true
	r := &recorder{flags: model.NeedsUniqueMetadata | model.NeedsDstMethodDesc}
	require.NoError(t, tr.AcceptOrdered(r, order))

	assert.Equal(t, []string{
		"namespaces src [dst]",
		"meta j=2",
		"meta k=3",
		"class a",
		"class a$1",
		"class b",
		"dst class 0 B",
		"method y ()Lb;",
		"dstdesc method 0 ()LB;",
		"var -1 1 -1 -1 v",
		"arg 0 -1 p",
		"field z Lb;",
	}, r.calls)
}

func TestMergeThroughDstNamespace(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tr := newSample(t, WithLogger(logger))

	require.NoError(t, tr.VisitNamespaces("intermediary", []string{"official", "extra"}))
	assert.Equal(t, []string{"intermediary", "named", "extra"}, tr.DstNamespaces())

	ok, err := tr.VisitClass("net/x/A")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.VisitDstName(model.Class, 1, "ExtraA"))
	require.NoError(t, tr.VisitDstName(model.Class, 0, "ignored"))
	ok, err = tr.VisitField("field_1", "I")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.VisitDstName(model.Field, 1, "size"))
	ok, err = tr.VisitMethod("method_1", "(Lnet/x/A;)V")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tr.VisitMethodArg(0, -1, "")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.VisitDstName(model.MethodArg, 1, "that"))

	ok, err = tr.VisitClass("net/x/Missing")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "skipping class unknown in merge namespace", hook.LastEntry().Message)

	a := tr.Class("a")
	assert.Equal(t, "ExtraA", a.DstName(2))
	assert.Equal(t, "a", a.SrcName())
	assert.Equal(t, "size", a.Field("f", "I").DstName(2))
	assert.Equal(t, "that", a.Method("m", "(La;)V").Arg(0, -1, "").DstName(2))
	assert.Nil(t, tr.Class("net/x/Missing"))
	assert.NoError(t, tr.Validate())
}

func TestSetDstNamespacesRemaps(t *testing.T) {
	t.Parallel()

	tr := newSample(t, WithDstIndex())
	require.NoError(t, tr.SetDstNamespaces([]string{"named", "extra"}))

	a := tr.Class("a")
	assert.Equal(t, []string{"net/x/Apple", ""}, []string{a.DstName(0), a.DstName(1)})
	assert.Equal(t, "", a.Field("f", "I").DstName(0))
	assert.Equal(t, "eat", a.Method("m", "(La;)V").DstName(0))
	assert.Same(t, a, tr.ClassIn("net/x/Apple", 0))
	assert.Nil(t, tr.ClassIn("net/x/A", 0))

	err := tr.SetDstNamespaces([]string{"named", "named"})
	assert.ErrorIs(t, err, ErrDuplicateNamespace)
	err = tr.SetDstNamespaces([]string{"official"})
	assert.ErrorIs(t, err, ErrDuplicateNamespace)
	assert.NoError(t, tr.Validate())
}

func TestReverseIndexFollowsRenames(t *testing.T) {
	t.Parallel()

	for _, indexed := range []bool{false, true} {
		var opts []Option
		if indexed {
			opts = append(opts, WithDstIndex())
		}
		tr := newSample(t, opts...)
		a := tr.Class("a")
		assert.Same(t, a, tr.ClassIn("net/x/A", 0))

		require.NoError(t, a.SetDstName(0, "net/x/Renamed"))
		assert.Nil(t, tr.ClassIn("net/x/A", 0))
		assert.Same(t, a, tr.ClassIn("net/x/Renamed", 0))

		assert.True(t, tr.RemoveClass("a"))
		assert.Nil(t, tr.ClassIn("net/x/Renamed", 0))
		assert.False(t, tr.RemoveClass("a"))
	}
}

func TestContractViolations(t *testing.T) {
	t.Parallel()

	tr := New()
	require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
	_, err := tr.VisitField("f", "I")
	assert.ErrorIs(t, err, ErrNoClass)

	_, err = tr.VisitClass("a")
	require.NoError(t, err)
	_, err = tr.VisitMethodArg(0, -1, "x")
	assert.ErrorIs(t, err, ErrNoMethod)
	assert.ErrorIs(t, tr.VisitDstName(model.Class, 5, "A"), ErrUnknownNamespace)
	assert.ErrorIs(t, tr.VisitDstName(model.Field, 0, "g"), visitor.ErrOutOfOrder)

	_, err = tr.AddClass("")
	assert.ErrorIs(t, err, ErrNoSrcName)

	err = tr.VisitNamespaces("other", nil)
	assert.ErrorIs(t, err, ErrUnrelatedNamespace)

	m, err := tr.Class("a").AddMethod("m", "()V")
	require.NoError(t, err)
	arg := m.AddArg(0, -1, "x")
	assert.ErrorIs(t, arg.SetSrcName("y"), ErrSrcNameChange)
	assert.NoError(t, arg.SetSrcName("x"))
	m.AddVar(-1, 1, -1, -1, "v")

	require.NoError(t, tr.VisitNamespaces("src", []string{"dst"}))
	_, err = tr.VisitClass("a")
	require.NoError(t, err)
	_, err = tr.VisitMethod("m", "()V")
	require.NoError(t, err)
	_, err = tr.VisitMethodArg(0, -1, "z")
	assert.ErrorIs(t, err, ErrSrcNameChange)
	_, err = tr.VisitMethodVar(-1, 1, -1, -1, "w")
	assert.ErrorIs(t, err, ErrSrcNameChange)
	_, err = tr.VisitMethodArg(0, -1, "x")
	assert.NoError(t, err, "the same name is not a change")
	_, err = tr.VisitMethodVar(-1, 1, -1, -1, "")
	assert.NoError(t, err, "an absent name is not a change")
	assert.Equal(t, "x", m.Arg(0, -1, "").SrcName())
	assert.Equal(t, "v", m.Var(-1, 1, -1, -1, "").SrcName())
}

func TestArgAndVarIdentity(t *testing.T) {
	t.Parallel()

	tr := newSample(t)
	m := tr.Class("a").Method("m", "(La;)V")
	require.NotNil(t, m)

	a := m.AddArg(-1, 1, "x")
	assert.Len(t, m.Args(), 1, "slot 1 is the existing argument")
	assert.Equal(t, 0, a.ArgPosition())
	assert.Equal(t, "x", a.SrcName())
	m.AddArg(1, -1, "y")
	assert.Len(t, m.Args(), 2)
	assert.Same(t, a, m.Arg(-1, -1, "x"))

	v := m.AddVar(-1, 2, 6, -1, "i")
	assert.Len(t, m.Vars(), 1, "overlapping range on slot 2")
	assert.Equal(t, 12, v.EndOpIdx())
	m.AddVar(-1, 2, 12, 20, "j")
	assert.Len(t, m.Vars(), 2, "disjoint range is a new variable")
	m.AddVar(3, 5, -1, -1, "k")
	assert.Len(t, m.Vars(), 3)
	assert.Equal(t, "k", m.Var(3, -1, -1, -1, "").SrcName())

	assert.True(t, m.RemoveVar(v))
	assert.False(t, m.RemoveVar(v))
	assert.True(t, m.RemoveArg(a))
}

// staticHierarchy treats every listed group as one override hierarchy.
type staticHierarchy struct {
	ns     string
	groups [][]MethodSig
}

func (h staticHierarchy) Namespace() string { return h.ns }

func (h staticHierarchy) MethodHierarchy(sig MethodSig) []MethodSig {
	for _, g := range h.groups {
		for _, s := range g {
			if s == sig {
				return g
			}
		}
	}
	return nil
}

func TestPropagateHierarchy(t *testing.T) {
	t.Parallel()

	h := staticHierarchy{ns: "official", groups: [][]MethodSig{{
		{Owner: "a", Name: "m", Desc: "(La;)V"},
		{Owner: "b", Name: "m", Desc: "(La;)V"},
		{Owner: "c", Name: "m", Desc: "(La;)V"},
	}}}
	tr := newSample(t, WithHierarchy(h))
	b, err := tr.AddClass("b")
	require.NoError(t, err)
	bm, err := b.AddMethod("m", "(La;)V")
	require.NoError(t, err)
	require.NoError(t, bm.SetDstName(1, "consume"))
	lone, err := b.AddMethod("solo", "()V")
	require.NoError(t, err)

	n, err := tr.PropagateHierarchy()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "method_1", bm.DstName(0))
	assert.Equal(t, "consume", bm.DstName(1), "existing names are kept")
	assert.Equal(t, "", lone.DstName(0))

	tr.SetHierarchy(staticHierarchy{ns: "nowhere"})
	_, err = tr.PropagateHierarchy()
	assert.ErrorIs(t, err, ErrUnknownNamespace)
}

func TestHierarchyRunsAtVisitEnd(t *testing.T) {
	t.Parallel()

	h := staticHierarchy{ns: "official", groups: [][]MethodSig{{
		{Owner: "a", Name: "m", Desc: "(La;)V"},
		{Owner: "b", Name: "m", Desc: "(La;)V"},
	}}}
	tr := newSample(t, WithHierarchy(h))
	require.NoError(t, tr.VisitNamespaces("official", []string{"intermediary", "named"}))
	_, err := tr.VisitClass("b")
	require.NoError(t, err)
	_, err = tr.VisitMethod("m", "(La;)V")
	require.NoError(t, err)
	_, err = tr.VisitEnd()
	require.NoError(t, err)

	assert.Equal(t, "eat", tr.Class("b").Method("m", "(La;)V").DstName(1))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tr := newSample(t, WithDstIndex())
	require.NoError(t, tr.Validate())

	b, err := tr.AddClass("b")
	require.NoError(t, err)
	require.NoError(t, b.SetDstName(0, "net/x/A"))
	tr.Class("a").Field("f", "I").dstNames = nil

	err = tr.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.GreaterOrEqual(t, len(merr.Errors), 2)
	assert.ErrorIs(t, merr.Errors[0], ErrInvalid)
	assert.Contains(t, err.Error(), `share intermediary name "net/x/A"`)
}

func TestView(t *testing.T) {
	t.Parallel()

	tr := newSample(t)
	var v View = tr.View()

	assert.Equal(t, "official", v.SrcNamespace())
	assert.Equal(t, 1, v.NamespaceID("named"))
	assert.Equal(t, NullNamespace, v.NamespaceID("nope"))
	assert.Equal(t, "named", v.NamespaceName(1))

	cv, ok := v.ClassIn("net/x/Apple", 1)
	require.True(t, ok)
	assert.Equal(t, "a", cv.SrcName())
	assert.Equal(t, "the apple", cv.Comment())

	mv, ok := cv.MethodIn("eat", "", 1)
	require.True(t, ok)
	assert.Equal(t, "(Lnet/x/Apple;)V", mv.Desc(1))
	args := mv.Args()
	require.Len(t, args, 1)
	assert.Equal(t, "other", args[0].Name(1))
	av, ok := mv.Arg(-1, -1, "other", 1)
	require.True(t, ok)
	assert.Equal(t, 1, av.LvIndex())
	vars := mv.Vars()
	require.Len(t, vars, 1)
	assert.Equal(t, 4, vars[0].StartOpIdx())

	fv, ok := cv.FieldIn("field_1", "I", 0)
	require.True(t, ok)
	assert.Equal(t, "f", fv.SrcName())
	assert.Equal(t, "a", fv.Owner().SrcName())

	_, ok = v.Class("zzz")
	assert.False(t, ok)
	assert.Len(t, v.Classes(), 1)

	value, ok := v.MetadataValue("escaped-names")
	assert.True(t, ok)
	assert.Equal(t, "", value)
}

func TestRemoveMetadata(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.AddMetadata("a", "1")
	tr.AddMetadata("b", "2")
	tr.AddMetadata("a", "3")
	v, ok := tr.MetadataValue("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	assert.True(t, tr.RemoveMetadata("a"))
	assert.False(t, tr.RemoveMetadata("a"))
	assert.Equal(t, []model.Property{{Key: "b", Value: "2"}}, tr.Metadata())
}

func TestTreeToTreeCopy(t *testing.T) {
	t.Parallel()

	src := newSample(t)
	dst := New()
	require.NoError(t, src.Accept(dst))
	assert.Equal(t, dump(t, src), dump(t, dst))
	assert.NoError(t, dst.Validate())
}
