package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phobologic/symmap/internal/model"
)

// recorder logs every call it receives as one line of text.
type recorder struct {
	flags model.Flags
	calls []string
}

func (r *recorder) log(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Flags() model.Flags { return r.flags }

func (r *recorder) Reset() { r.calls = nil }

func (r *recorder) VisitHeader() (bool, error) { return true, nil }

func (r *recorder) VisitNamespaces(srcNs string, dstNs []string) error {
	r.log("namespaces %s %v", srcNs, dstNs)
	return nil
}

func (r *recorder) VisitMetadata(key, value string) error {
	r.log("meta %s=%s", key, value)
	return nil
}

func (r *recorder) VisitContent() (bool, error) { return true, nil }

func (r *recorder) VisitClass(srcName string) (bool, error) {
	r.log("class %s", srcName)
	return true, nil
}

func (r *recorder) VisitField(srcName, srcDesc string) (bool, error) {
	r.log("field %s %s", srcName, srcDesc)
	return true, nil
}

func (r *recorder) VisitMethod(srcName, srcDesc string) (bool, error) {
	r.log("method %s %s", srcName, srcDesc)
	return true, nil
}

func (r *recorder) VisitMethodArg(argPosition, lvIndex int, srcName string) (bool, error) {
	r.log("arg %d %d %s", argPosition, lvIndex, srcName)
	return true, nil
}

func (r *recorder) VisitMethodVar(lvtRowIndex, lvIndex, startOpIdx, endOpIdx int, srcName string) (bool, error) {
	r.log("var %d %d %d %d %s", lvtRowIndex, lvIndex, startOpIdx, endOpIdx, srcName)
	return true, nil
}

func (r *recorder) VisitDstName(kind model.Kind, namespace int, name string) error {
	r.log("dst %s %d %s", kind, namespace, name)
	return nil
}

func (r *recorder) VisitDstDesc(kind model.Kind, namespace int, desc string) error {
	r.log("dstdesc %s %d %s", kind, namespace, desc)
	return nil
}

func (r *recorder) VisitElementContent(model.Kind) (bool, error) { return true, nil }

func (r *recorder) VisitComment(kind model.Kind, comment string) error {
	r.log("comment %s %s", kind, comment)
	return nil
}

func (r *recorder) VisitEnd() (bool, error) { return true, nil }

func dump(t *testing.T, tr *Tree) []string {
	t.Helper()
	r := &recorder{}
	require.NoError(t, tr.Accept(r))
	return r.calls
}

// newSample builds official -> [intermediary, named] with one class, one
// field and one method carrying an argument and a variable.
func newSample(t *testing.T, opts ...Option) *Tree {
	t.Helper()
	tr := New(opts...)
	require.NoError(t, tr.VisitNamespaces("official", []string{"intermediary", "named"}))
	tr.AddMetadata("escaped-names", "")

	a, err := tr.AddClass("a")
	require.NoError(t, err)
	require.NoError(t, a.SetDstName(0, "net/x/A"))
	require.NoError(t, a.SetDstName(1, "net/x/Apple"))
	a.SetComment("the apple")

	f, err := a.AddField("f", "I")
	require.NoError(t, err)
	require.NoError(t, f.SetDstName(0, "field_1"))

	m, err := a.AddMethod("m", "(La;)V")
	require.NoError(t, err)
	require.NoError(t, m.SetDstName(0, "method_1"))
	require.NoError(t, m.SetDstName(1, "eat"))
	arg := m.AddArg(0, 1, "")
	require.NoError(t, arg.SetDstName(1, "other"))
	m.AddVar(-1, 2, 4, 12, "")
	return tr
}
