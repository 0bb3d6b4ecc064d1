package main

import (
	"fmt"
	"io"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/phobologic/symmap/internal/config"
)

type initOptions struct {
	DryRun bool `long:"dry-run" description:"print the profile without writing it"`
	Force  bool `long:"force" description:"overwrite an existing profile"`

	Args struct {
		Path string `positional-arg-name:"PATH" description:"profile to write (default ./symmap.toml)"`
	} `positional-args:"yes"`
}

// runInit implements the `symmap init` subcommand, which writes a commented
// default profile.
func runInit(args []string, stdout, stderr io.Writer) error {
	var opts initOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "symmap init"
	parser.Usage = `[OPTIONS] [PATH]

Write a default symmap profile. Every key is commented, so the file doubles as
a reference. An existing profile is left alone unless --force is given.`
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(stdout, ferr.Message)
			return nil
		}
		return err
	}

	if opts.DryRun {
		_, _ = fmt.Fprint(stdout, config.Template)
		return nil
	}

	path := opts.Args.Path
	if path == "" {
		path = config.DefaultPath
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		return errors.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}

	_, _ = fmt.Fprintf(stderr, "wrote symmap profile to %s\n", path)
	return nil
}
