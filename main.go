// symmap merges, converts and completes Java name mappings.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phobologic/symmap/internal/config"
	"github.com/phobologic/symmap/internal/discover"
	"github.com/phobologic/symmap/internal/format"
	"github.com/phobologic/symmap/internal/graph"
	"github.com/phobologic/symmap/internal/logging"
	"github.com/phobologic/symmap/internal/model"
	"github.com/phobologic/symmap/internal/parse"
	"github.com/phobologic/symmap/internal/tree"
	"github.com/phobologic/symmap/internal/visitor"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	Output       string            `short:"o" long:"output" value-name:"FILE" description:"write to FILE instead of stdout"`
	Format       string            `short:"f" long:"format" value-name:"NAME" description:"output format (tiny, toon); defaults to the output extension, then the profile"`
	Config       string            `short:"c" long:"config" value-name:"FILE" description:"profile to load; ./symmap.toml is used when present"`
	Rename       map[string]string `long:"rename" value-name:"OLD:NEW" description:"rename a namespace while reading"`
	DstOrder     []string          `long:"dst-order" value-name:"NS" description:"destination namespace order of the output, repeatable"`
	Complete     map[string]string `long:"complete" value-name:"NS:FROM" description:"copy names missing in NS from namespace FROM"`
	Sort         bool              `short:"s" long:"sort" description:"sort classes and members by source name"`
	Java         []string          `short:"j" long:"java" value-name:"DIR" description:"Java source root used to copy names across overriding methods, repeatable"`
	JavaNs       string            `long:"java-ns" value-name:"NS" description:"namespace the Java sources are written in"`
	IncludeTests bool              `long:"include-tests" description:"also scan Java test sources"`
	MaxFileSize  int               `long:"max-file-size" value-name:"BYTES" default:"1000000" description:"skip Java sources larger than this"`
	NoValidate   bool              `long:"no-validate" description:"skip the consistency check before writing"`
	Verbose      []bool            `short:"v" long:"verbose" description:"log more; repeat for debug and trace"`
	Version      bool              `short:"V" long:"version" description:"show version and exit"`

	Args struct {
		Inputs []string `positional-arg-name:"INPUT" description:"mapping files or directories holding them"`
	} `positional-args:"yes"`
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "symmap"
	parser.Usage = "[OPTIONS] INPUT...\n       symmap init [--dry-run] [--force] [PATH]"
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(stdout, ferr.Message)
			return nil
		}
		return err
	}

	if opts.Version {
		_, _ = fmt.Fprintf(stdout, "symmap %s\n", version)
		return nil
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	applyFlags(&cfg, &opts)

	logCfg := logging.FromEnv(cfg.Log)
	log := logging.New(stderr, logCfg)
	switch n := len(opts.Verbose); {
	case n == 1:
		log.SetLevel(logrus.InfoLevel)
	case n == 2:
		log.SetLevel(logrus.DebugLevel)
	case n > 2:
		log.SetLevel(logrus.TraceLevel)
	}

	if len(opts.Args.Inputs) == 0 {
		return errors.New("no input mappings given")
	}
	inputs, err := expandInputs(opts.Args.Inputs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no mapping files found")
	}

	out, err := outputFormat(opts.Format, opts.Output, cfg.Output)
	if err != nil {
		return err
	}

	t := tree.New(tree.WithLogger(log))
	var sink visitor.Visitor = t
	if len(cfg.Renames) > 0 {
		sink = visitor.NewNsRenamer(t, cfg.Renames)
	}
	for _, in := range inputs {
		log.WithField("file", in).Debug("reading mappings")
		if err := format.ReadFile(in, nil, sink, format.Options{Logger: log}); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"inputs":  len(inputs),
		"classes": len(t.Classes()),
	}).Info("mappings loaded")

	if len(cfg.Java.Sources) > 0 {
		if err := propagate(t, cfg.Java, opts.MaxFileSize, log); err != nil {
			return err
		}
	}

	if cfg.Validate {
		if err := t.Validate(); err != nil {
			return errors.Wrap(err, "validate")
		}
	}

	return writeTree(t, out, opts.Output, cfg, stdout)
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.Load(config.DefaultPath)
	}
	return config.Default(), nil
}

// applyFlags lets explicitly set flags override the profile.
func applyFlags(cfg *config.Config, opts *options) {
	if len(opts.Rename) > 0 {
		cfg.Renames = opts.Rename
	}
	if len(opts.DstOrder) > 0 {
		cfg.DstOrder = opts.DstOrder
	}
	if len(opts.Complete) > 0 {
		cfg.Complete = opts.Complete
	}
	if opts.Sort {
		cfg.Sort = true
	}
	if opts.NoValidate {
		cfg.Validate = false
	}
	if len(opts.Java) > 0 {
		cfg.Java.Sources = opts.Java
	}
	if opts.JavaNs != "" {
		cfg.Java.Namespace = opts.JavaNs
	}
	if opts.IncludeTests {
		cfg.Java.IncludeTests = true
	}
}

// expandInputs replaces directories by the readable mapping files below them.
func expandInputs(inputs []string) ([]string, error) {
	var exts []string
	for _, f := range format.All() {
		if f.Readable() {
			exts = append(exts, f.Extensions...)
		}
	}

	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, errors.Wrap(err, "input")
		}
		if !info.IsDir() {
			out = append(out, in)
			continue
		}
		found, err := discover.Mappings(in, exts)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			out = append(out, filepath.Join(in, f.Path))
		}
	}
	return out, nil
}

// outputFormat picks the output format from the flag, the output file
// extension, then the profile.
func outputFormat(name, path, profile string) (*format.Format, error) {
	var f *format.Format
	var err error
	switch {
	case name != "":
		f, err = format.ByName(name)
	case path != "" && path != "-":
		if f, err = format.ByPath(path); err != nil {
			f, err = format.ByName(profile)
		}
	default:
		f, err = format.ByName(profile)
	}
	if err != nil {
		return nil, err
	}
	if !f.Writable() {
		return nil, errors.Wrap(format.ErrNotWritable, f.Name)
	}
	return f, nil
}

func propagate(t *tree.Tree, cfg config.Java, maxFileSize int, log logrus.FieldLogger) error {
	var infos []model.FileInfo
	for _, root := range cfg.Sources {
		info, err := os.Stat(root)
		if err != nil {
			return errors.Wrap(err, "java source root")
		}
		if !info.IsDir() {
			return errors.Errorf("%s: not a directory", root)
		}

		files, err := discover.Files(root, discover.Options{
			Languages:    []string{"java"},
			IncludeTests: cfg.IncludeTests,
		})
		if err != nil {
			return errors.Wrap(err, "discovering java sources")
		}
		files = filterBySize(root, files, maxFileSize, log)
		log.WithFields(logrus.Fields{"root": root, "files": len(files)}).Info("parsing java sources")
		infos = append(infos, parse.Files(root, files, log)...)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = t.SrcNamespace()
	}
	h := graph.Build(ns, infos)
	t.SetHierarchy(h)
	n, err := t.PropagateHierarchy()
	if err != nil {
		return errors.Wrap(err, "propagate")
	}
	log.WithFields(logrus.Fields{
		"types":  h.Types(),
		"groups": h.Groups(),
		"names":  n,
	}).Info("names copied across overrides")
	return nil
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, log logrus.FieldLogger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > int64(maxSize) {
			log.WithFields(logrus.Fields{"file": f.Path, "limit": maxSize}).Warn("skipped large source")
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func writeTree(t *tree.Tree, f *format.Format, path string, cfg config.Config, stdout io.Writer) (err error) {
	out := stdout
	if path != "" && path != "-" {
		file, cerr := os.Create(path)
		if cerr != nil {
			return errors.Wrap(cerr, "output")
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "output")
			}
		}()
		out = file
	}

	w, err := f.NewWriter(out)
	if err != nil {
		return err
	}
	v := w
	if len(cfg.DstOrder) > 0 {
		v = visitor.NewDstNsReorder(v, cfg.DstOrder)
	}
	if len(cfg.Complete) > 0 {
		v = visitor.NewNsCompleter(v, cfg.Complete)
	}

	order := tree.InsertionOrder()
	if cfg.Sort {
		order = tree.SortedByName(tree.SrcNamespace)
	}
	return errors.Wrapf(t.AcceptOrdered(v, order), "write %s", f.Name)
}
