package format

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/tree"
	"github.com/phobologic/symmap/internal/visitor"
)

const sample = "tiny\t2\t0\tofficial\tnamed\n" +
	"c\ta\tApple\n" +
	"\tf\tI\tf\tweight\n"

func TestByName(t *testing.T) {
	t.Parallel()

	f, err := ByName("TINY")
	require.NoError(t, err)
	assert.Same(t, Tiny, f)

	_, err = ByName("srg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestByPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want *Format
	}{
		{"mappings/yarn.tiny", Tiny},
		{"OUT.TOON", Toon},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			f, err := ByPath(tt.path)
			require.NoError(t, err)
			assert.Same(t, tt.want, f)
		})
	}

	_, err := ByPath("mappings.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	br := bufio.NewReader(strings.NewReader(sample))
	f, err := Detect(br)
	require.NoError(t, err)
	assert.Same(t, Tiny, f)

	// detection must not consume input
	tr := tree.New()
	require.NoError(t, Read(br, f, tr, Options{}))
	assert.NotNil(t, tr.Class("a"))

	_, err = Detect(bufio.NewReader(strings.NewReader("short")))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteOnlyFormat(t *testing.T) {
	t.Parallel()

	assert.False(t, Toon.Readable())
	assert.True(t, Toon.Writable())
	err := Read(strings.NewReader(""), Toon, tree.New(), Options{})
	assert.ErrorIs(t, err, ErrNotReadable)
}

// repeating emits class "a" twice, as formats without grouped output do.
var repeating = &Format{
	Name: "repeating",
	Reader: func(_ io.Reader, v visitor.Visitor) error {
		if _, err := v.VisitHeader(); err != nil {
			return err
		}
		if err := v.VisitNamespaces("src", []string{"dst"}); err != nil {
			return err
		}
		if _, err := v.VisitContent(); err != nil {
			return err
		}
		for _, dst := range []string{"A", ""} {
			ok, err := v.VisitClass("a")
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if dst != "" {
				if err := v.VisitDstName(model.Class, 0, dst); err != nil {
					return err
				}
			}
			if _, err := v.VisitElementContent(model.Class); err != nil {
				return err
			}
		}
		done, err := v.VisitEnd()
		if err == nil && !done {
			err = visitor.ErrExtraPass
		}
		return err
	},
}

type classCounter struct {
	*visitor.Nop
	classes int
	passes  int
	want    int
}

func (c *classCounter) VisitClass(string) (bool, error) {
	c.classes++
	return true, nil
}

func (c *classCounter) VisitEnd() (bool, error) {
	c.passes++
	return c.passes >= c.want, nil
}

func TestReadBuffersForUniqueness(t *testing.T) {
	t.Parallel()

	plain := &classCounter{Nop: visitor.NewNop(model.NoFlags), want: 1}
	require.NoError(t, Read(nil, repeating, plain, Options{}))
	assert.Equal(t, 2, plain.classes)

	strict := &classCounter{Nop: visitor.NewNop(model.NeedsElementUniqueness), want: 1}
	require.NoError(t, Read(nil, repeating, strict, Options{}))
	assert.Equal(t, 1, strict.classes)
}

func TestReadBuffersForExtraPasses(t *testing.T) {
	t.Parallel()

	c := &classCounter{Nop: visitor.NewNop(model.NeedsMultiplePasses), want: 3}
	require.NoError(t, Read(nil, repeating, c, Options{}))
	assert.Equal(t, 3, c.passes)
	assert.Equal(t, 3, c.classes)
}

func TestTinyPassesThrough(t *testing.T) {
	t.Parallel()

	c := &classCounter{Nop: visitor.NewNop(model.NeedsMultiplePasses | model.NeedsElementUniqueness), want: 2}
	require.NoError(t, Read(strings.NewReader(sample), Tiny, c, Options{}))
	assert.Equal(t, 2, c.passes)
	assert.Equal(t, 2, c.classes)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	tr := tree.New()
	require.NoError(t, ReadFile(path, nil, tr, Options{}))
	a := tr.Class("a")
	require.NotNil(t, a)
	assert.Equal(t, "weight", a.Field("f", "I").DstName(0))

	err := ReadFile(filepath.Join(dir, "missing.tiny"), nil, tr, Options{})
	assert.Error(t, err)
}

func TestConvertTinyToToon(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := Toon.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, Read(strings.NewReader(sample), Tiny, w, Options{}))
	assert.Contains(t, buf.String(), "classes[1]{official,named}:\n  a,Apple")
	assert.Contains(t, buf.String(), "fields[1]{class,official,desc,named}:\n  a,f,I,weight")
}
