package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTiny = "tiny\t2\t0\tofficial\tintermediary\tnamed\n" +
	"c\ta\tnet/x/A\tnet/x/Apple\n" +
	"\tm\t(La;)V\tm\tmethod_1\teat\n" +
	"c\tb\tnet/x/B\t\n" +
	"\tm\t(La;)V\tm\tmethod_2\t\n"

func writeTestFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run %v: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "a.tiny", sampleTiny)

	if out := runOK(t, in); out != sampleTiny {
		t.Errorf("round trip changed the mappings:\n%s", out)
	}
}

func TestRunToon(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "a.tiny", sampleTiny)

	out := runOK(t, "-f", "toon", in)
	for _, want := range []string{
		"namespaces[3]{role,name}:",
		"classes[2]{official,intermediary,named}:",
		"  a,net/x/A,net/x/Apple",
		"  a,m,(La;)V,method_1,eat",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunOutputFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeTestFile(t, dir, "a.tiny", sampleTiny)
	outPath := filepath.Join(dir, "out.toon")

	if out := runOK(t, "-o", outPath, in); out != "" {
		t.Errorf("stdout should be empty, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "namespaces[3]") {
		t.Errorf("format should follow the output extension:\n%s", data)
	}
}

func TestRunMerge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.tiny", sampleTiny)
	b := writeTestFile(t, dir, "b.tiny", "tiny\t2\t0\tofficial\tnamed\n"+
		"c\ta\tnet/x/Avocado\n"+
		"c\tb\tnet/x/Banana\n")

	out := runOK(t, a, b)
	if !strings.Contains(out, "c\ta\tnet/x/A\tnet/x/Apple\n") {
		t.Errorf("existing names must win:\n%s", out)
	}
	if !strings.Contains(out, "c\tb\tnet/x/B\tnet/x/Banana\n") {
		t.Errorf("missing names must be filled:\n%s", out)
	}
}

func TestRunDirectoryInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "mappings/a.tiny", sampleTiny)
	writeTestFile(t, dir, "mappings/notes.txt", "not a mapping")

	if out := runOK(t, filepath.Join(dir, "mappings")); out != sampleTiny {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunRename(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "a.tiny", sampleTiny)

	out := runOK(t, "--rename", "official:obf", "--rename", "named:yarn", in)
	if !strings.HasPrefix(out, "tiny\t2\t0\tobf\tintermediary\tyarn\n") {
		t.Errorf("namespaces not renamed:\n%s", out)
	}
}

func TestRunDstOrder(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "a.tiny", sampleTiny)

	out := runOK(t, "--dst-order", "named", "--dst-order", "intermediary", in)
	if !strings.HasPrefix(out, "tiny\t2\t0\tofficial\tnamed\tintermediary\n") {
		t.Errorf("header not reordered:\n%s", out)
	}
	if !strings.Contains(out, "c\ta\tnet/x/Apple\tnet/x/A\n") {
		t.Errorf("names not reordered:\n%s", out)
	}
}

func TestRunComplete(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "a.tiny", sampleTiny)

	out := runOK(t, "--complete", "named:intermediary", in)
	if !strings.Contains(out, "c\tb\tnet/x/B\tnet/x/B\n") {
		t.Errorf("named not completed from intermediary:\n%s", out)
	}
}

func TestRunSort(t *testing.T) {
	t.Parallel()
	in := writeTestFile(t, t.TempDir(), "z.tiny", "tiny\t2\t0\tofficial\tnamed\n"+
		"c\tz\tZebra\n"+
		"c\ty\tYak\n")

	out := runOK(t, "-s", in)
	if strings.Index(out, "c\ty\t") > strings.Index(out, "c\tz\t") {
		t.Errorf("classes not sorted:\n%s", out)
	}
	out = runOK(t, in)
	if strings.Index(out, "c\ty\t") < strings.Index(out, "c\tz\t") {
		t.Errorf("insertion order not kept:\n%s", out)
	}
}

func TestRunJavaPropagation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeTestFile(t, dir, "fruit.tiny", "tiny\t2\t0\tofficial\tintermediary\tnamed\n"+
		"c\ta\tnet/x/Fruit\tnet/x/Fruit\n"+
		"\tm\t(La;)V\tm\tmethod_1\teat\n"+
		"c\tb\tnet/x/Apple\tnet/x/Apple\n"+
		"\tm\t(La;)V\tm\tmethod_1\t\n")
	src := filepath.Join(dir, "src")
	writeTestFile(t, src, "net/x/Fruit.java", "package net.x;\n\ninterface Fruit {\n    void method_1(Fruit other);\n}\n")
	writeTestFile(t, src, "net/x/Apple.java", "package net.x;\n\nclass Apple implements Fruit {\n    public void method_1(Fruit other) {}\n}\n")

	out := runOK(t, "-j", src, "--java-ns", "intermediary", in)
	if !strings.Contains(out, "c\tb\tnet/x/Apple\tnet/x/Apple\n\tm\t(La;)V\tm\tmethod_1\teat\n") {
		t.Errorf("override did not receive the name:\n%s", out)
	}

	out = runOK(t, in)
	if strings.Contains(out, "c\tb\tnet/x/Apple\tnet/x/Apple\n\tm\t(La;)V\tm\tmethod_1\teat\n") {
		t.Errorf("names copied without sources:\n%s", out)
	}
}

func TestRunConfigProfile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeTestFile(t, dir, "a.tiny", sampleTiny)
	profile := writeTestFile(t, dir, "symmap.toml", "output = \"toon\"\n\n[renames]\nnamed = \"yarn\"\n")

	out := runOK(t, "-c", profile, in)
	if !strings.Contains(out, "  dst,yarn") {
		t.Errorf("profile not applied:\n%s", out)
	}

	out = runOK(t, "-c", profile, "-f", "tiny", in)
	if !strings.HasPrefix(out, "tiny\t2\t0\tofficial\tintermediary\tyarn\n") {
		t.Errorf("flags should override the profile:\n%s", out)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out := runOK(t, "-V")
	if !strings.Contains(out, "symmap") {
		t.Errorf("version output: %q", out)
	}
}

func TestRunHelp(t *testing.T) {
	t.Parallel()

	out := runOK(t, "--help")
	if !strings.Contains(out, "--dst-order") {
		t.Errorf("help output missing flags:\n%s", out)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := writeTestFile(t, dir, "a.tiny", sampleTiny)
	bad := writeTestFile(t, dir, "bad.tiny", "tiny\t2\t0\tofficial\tnamed\nc\n")
	writeTestFile(t, dir, "empty/readme.txt", "nothing here")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no inputs", nil, "no input mappings"},
		{"missing input", []string{filepath.Join(dir, "nope.tiny")}, "input"},
		{"no mapping files", []string{filepath.Join(dir, "empty")}, "no mapping files found"},
		{"unknown format", []string{"-f", "srg", good}, "unknown format"},
		{"malformed input", []string{bad}, "bad.tiny"},
		{"missing java root", []string{"-j", filepath.Join(dir, "nope"), good}, "java source root"},
		{"java root is a file", []string{"-j", good, good}, "not a directory"},
		{"unknown flag", []string{"--bogus", good}, "bogus"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			err := run(tc.args, &stdout, &stderr)
			if err == nil {
				t.Fatalf("expected error, got output:\n%s", stdout.String())
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}
