// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command marketplace validates, fixes, publishes and serves a plugin
// marketplace repository.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/stacklok/toolhive-marketplace/config"
	"github.com/stacklok/toolhive-marketplace/env"
	"github.com/stacklok/toolhive-marketplace/logger"
	"github.com/stacklok/toolhive-marketplace/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	// errUsage marks invalid invocations.
	errUsage = errors.New("usage error")
	// errFindings is returned when validation reports errors; the report
	// itself has already been printed.
	errFindings = errors.New("validation failed")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		env:    &env.OSReader{},
	})
	stop()
	logger.Sync()
	os.Exit(code)
}

// app carries the process streams and, once flags are parsed, the configuration.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    env.Reader
	cfg    *config.Config
	debug  bool
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

func commands() []command {
	return []command{
		{"validate", "check the marketplace and every plugin", runValidate},
		{"fix", "apply fixable findings and re-validate", runFix},
		{"sync", "sync the plugin catalog to Airtable", runSync},
		{"export", "export the catalog as an MCP registry document", runExport},
		{"package", "package a plugin as an OCI artifact", runPackage},
		{"push", "package a plugin and push it to a registry", runPush},
		{"pull", "pull a plugin artifact from a registry", runPull},
		{"mcp", "serve the catalog over MCP on stdio", runMCP},
		{"serve", "run the webhook service", runServe},
		{"new", "create a new plugin skeleton", runNew},
	}
}

func run(ctx context.Context, args []string, a *app) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(a.stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}
		err := cmd.run(ctx, a, args[1:])
		switch {
		case err == nil, errors.Is(err, flag.ErrHelp):
			return exitOK
		case errors.Is(err, errUsage):
			fmt.Fprintf(a.stderr, "%s: %v\n", cmd.name, err)
			return exitUsage
		case errors.Is(err, errFindings):
			return exitFailure
		default:
			logger.Errorw(cmd.name+" failed", "error", err)
			return exitFailure
		}
	}

	fmt.Fprintf(a.stderr, "unknown command %q\n\n", args[0])
	usage(a.stderr)
	return exitUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: marketplace <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every command accepts --root, --config and --debug.")
}

// commonFlags are accepted by every command.
type commonFlags struct {
	root       string
	configFile string
	debug      bool
}

func newFlagSet(a *app, name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	c := &commonFlags{}
	fs.StringVar(&c.root, "root", ".", "marketplace repository root")
	fs.StringVar(&c.configFile, "config", "", "config file (default .marketplace.yaml in the root or working directory)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	return fs, c
}

// parse parses args, loads the configuration and initializes logging.
func (a *app) parse(fs *flag.FlagSet, c *commonFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	cfg, err := config.Load(config.Options{Root: c.root, File: c.configFile})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.debug = c.debug || cfg.Debug
	logger.InitializeWithEnv(a.env, a.debug)
	if cfg.File != "" {
		logger.Debugw("loaded config", "file", cfg.File)
	}
	return nil
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// componentLogger returns a slog logger for library components, matching the
// CLI's structured or console output.
func (a *app) componentLogger(component string) *slog.Logger {
	format := logging.FormatJSON
	if v, err := strconv.ParseBool(a.env.Getenv(logger.UnstructuredLogsEnv)); err != nil || v {
		format = logging.FormatText
	}
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	return logging.New(
		logging.WithFormat(format),
		logging.WithLevel(level),
		logging.WithOutput(a.stderr),
		logging.WithComponent(component),
	)
}
