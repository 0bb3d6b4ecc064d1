// Package config loads the symmap run profile from TOML.
package config

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/logging"
)

// DefaultPath is the profile looked up in the working directory when no
// path is given.
const DefaultPath = "symmap.toml"

// ErrUnknownKeys is returned for profiles carrying keys Load does not know.
var ErrUnknownKeys = errors.New("config: unknown keys")

// Config is a run profile. Command line flags override it.
type Config struct {
	// Output names the output format.
	Output string
	Sort   bool
	// Validate checks the tree before it is written.
	Validate bool
	// Renames maps input namespace names to the names used in the tree.
	Renames map[string]string
	// DstOrder fixes the destination namespace order of the output.
	DstOrder []string
	// Complete maps a destination namespace to the namespace its missing
	// names are copied from.
	Complete map[string]string
	Java     Java
	Log      logging.Config
}

// Java configures hierarchy propagation from Java sources.
type Java struct {
	Sources []string
	// Namespace the sources are written in. Empty means the tree's source
	// namespace.
	Namespace    string
	IncludeTests bool
}

// Default returns the profile used when no file exists.
func Default() Config {
	return Config{
		Output:   "tiny",
		Validate: true,
		Log:      logging.Config{Level: "warn", Format: "text"},
	}
}

type fileConfig struct {
	Output   string            `toml:"output"`
	Sort     bool              `toml:"sort"`
	Validate bool              `toml:"validate"`
	DstOrder []string          `toml:"dst_order"`
	Renames  map[string]string `toml:"renames"`
	Complete map[string]string `toml:"complete"`
	Java     struct {
		Sources      []string `toml:"sources"`
		Namespace    string   `toml:"namespace"`
		IncludeTests bool     `toml:"include_tests"`
	} `toml:"java"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads the profile at path over the defaults. Keys absent from the
// file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.Wrapf(ErrUnknownKeys, "%s: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("output") {
		cfg.Output = strings.TrimSpace(raw.Output)
	}
	if meta.IsDefined("sort") {
		cfg.Sort = raw.Sort
	}
	if meta.IsDefined("validate") {
		cfg.Validate = raw.Validate
	}
	if meta.IsDefined("dst_order") {
		cfg.DstOrder = normalize(raw.DstOrder)
	}
	if meta.IsDefined("renames") {
		cfg.Renames = raw.Renames
	}
	if meta.IsDefined("complete") {
		cfg.Complete = raw.Complete
	}
	if meta.IsDefined("java", "sources") {
		cfg.Java.Sources = normalize(raw.Java.Sources)
	}
	if meta.IsDefined("java", "namespace") {
		cfg.Java.Namespace = strings.TrimSpace(raw.Java.Namespace)
	}
	if meta.IsDefined("java", "include_tests") {
		cfg.Java.IncludeTests = raw.Java.IncludeTests
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	return cfg, nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Template is the commented profile written by `symmap init`. Loading it
// yields Default().
const Template = `# symmap profile

# Output format: tiny or toon.
output = "tiny"
# Sort classes and members by source name before writing.
sort = false
# Check the merged mappings for consistency before writing.
validate = true
# Destination namespace order of the output. Empty keeps the input order.
dst_order = []

# Namespace renames applied to every input, old = "new".
[renames]

# Missing names in a namespace are copied from another one, target = "from".
[complete]

[java]
# Source roots scanned for overriding methods. Names found on one method of
# an override hierarchy are copied to the others.
sources = []
# Namespace the sources are written in. Empty means the mappings' source
# namespace.
namespace = ""
include_tests = false

[log]
# trace, debug, info, warn, error or off. SYMMAP_LOG_LEVEL overrides it.
level = "warn"
# text or json. SYMMAP_LOG_FORMAT overrides it.
format = "text"
`
