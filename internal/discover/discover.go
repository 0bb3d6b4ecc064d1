// Package discover finds Java sources and mapping files under a directory,
// honoring git's view of the tree or a .gitignore when there is one.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/symmap/internal/lang"
)

// FileEntry represents a discovered file.
type FileEntry struct {
	Path     string // Relative to the scanned root
	Language string // "" for mapping files
}

// Options narrow a scan.
type Options struct {
	// Languages keeps only sources of the listed languages. Empty keeps all.
	Languages []string
	// IncludeTests keeps files IsTestFile reports as tests.
	IncludeTests bool
}

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".gradle":      {},
	".idea":        {},
	"build":        {},
	"out":          {},
	"target":       {},
	"bin":          {},
	"node_modules": {},
}

// Files discovers parseable source files under root.
func Files(root string, opts Options) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[l] = struct{}{}
	}
	return walk(root, func(rel string) (FileEntry, bool) {
		langName := lang.ForExtension(filepath.Ext(rel))
		if langName == "" {
			return FileEntry{}, false
		}
		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return FileEntry{}, false
			}
		}
		if !opts.IncludeTests && IsTestFile(rel) {
			return FileEntry{}, false
		}
		return FileEntry{Path: rel, Language: langName}, true
	})
}

// Mappings discovers files whose extension is one of exts.
func Mappings(root string, exts []string) ([]FileEntry, error) {
	return walk(root, func(rel string) (FileEntry, bool) {
		ext := strings.ToLower(filepath.Ext(rel))
		for _, e := range exts {
			if e == ext {
				return FileEntry{Path: rel}, true
			}
		}
		return FileEntry{}, false
	})
}

func walk(root string, accept func(rel string) (FileEntry, bool)) ([]FileEntry, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if entry, ok := accept(rel); ok {
			results = append(results, entry)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// IsTestFile reports whether path looks like a Java test source: anything
// under a src/test tree or a test directory, or a class named *Test, *Tests
// or *IT.
func IsTestFile(path string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, p := range parts[:len(parts)-1] {
		if p == "test" || p == "tests" {
			return true
		}
		if p == "src" && i+1 < len(parts)-1 && parts[i+1] == "test" {
			return true
		}
	}
	base := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(path))
	for _, suffix := range []string{"Test", "Tests", "IT"} {
		if strings.HasSuffix(base, suffix) && base != suffix {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
