// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/pkg/logging"
	"github.com/AleutianAI/revdep/pkg/ux"
	"github.com/AleutianAI/revdep/services/revdep"
	"github.com/AleutianAI/revdep/services/revdep/config"
	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/telemetry"
)

// cleanupTimeout bounds flushing telemetry and closing the cache on exit.
const cleanupTimeout = 5 * time.Second

// app holds the state shared by every command of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string

	cfg      *config.Config
	logger   *slog.Logger
	engine   *revdep.Engine
	cleanups []func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, logger: logging.Discard()}
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	a.close()

	code := exitCode(err)
	if err != nil && code != ExitEmpty {
		ux.NewPrinter(stderr, ux.ColorEnabled(stderr)).Error(err.Error())
	}
	return code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "revdep",
		Short: "Find the import chains that connect entry points to a module",
		Long: `revdep analyzes the import graph of a JavaScript or TypeScript project
and answers reverse dependency questions: which entry points reach a file
or package, and through which chains of imports.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./"+config.FileName+" when present)")
	pf.StringP("cwd", "C", "", "project root (default: current directory)")
	pf.String("alias-config", "", "tsconfig/jsconfig or bundler alias file")
	pf.Bool("include-node-modules", false, "treat third-party packages as modules")
	pf.Bool("ignore-types-imports", false, "ignore type-only imports")
	pf.StringP("format", "f", "text", "output format: text, json or yaml")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "also append JSON logs to this file")
	pf.Bool("cache", false, "cache extracted dependency tables")
	pf.String("cache-dir", "", "persist the table cache in this directory")
	pf.Int("concurrency", 0, "parallel parsing and graph building (default GOMAXPROCS)")
	pf.String("telemetry", "none", "telemetry exporter: none, stdout, otlp or prometheus")

	root.AddCommand(
		a.resolveCmd(),
		a.entryPointsCmd(),
		a.filesCmd(),
		a.nodeModulesCmd(),
		a.circularCmd(),
		a.depthCmd(),
		a.serveCmd(),
	)
	return root
}

// addFilterFlags registers the entry point discovery filters.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("include", nil, "only discover entry points matching these globs")
	cmd.Flags().StringSlice("exclude", nil, "skip discovered entry points matching these globs")
}

// addNotTraverseFlag registers the traversal pruning globs.
func addNotTraverseFlag(cmd *cobra.Command) {
	cmd.Flags().StringSlice("not-traverse", nil, "do not follow imports into modules matching these globs")
}

// setup loads configuration and builds the logger, telemetry, cache and
// engine for the command about to run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Service: cfg.Telemetry.ServiceName,
		Writer:  a.stderr,
	})
	if err != nil {
		return err
	}
	a.logger = logger.Slog()
	a.cleanups = append(a.cleanups, func(context.Context) error { return logger.Close() })
	if cfg.File != "" {
		a.logger.Debug("loaded config", slog.String("file", cfg.File))
	}

	telCfg, err := telemetry.ForExporter(cfg.Telemetry.Exporter, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	telCfg.ServiceName = cfg.Telemetry.ServiceName
	telCfg.ServiceVersion = version
	telCfg.Writer = a.stderr
	shutdown, err := telemetry.Init(cmd.Context(), telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.cleanups = append(a.cleanups, shutdown)

	tables, closer, err := cfg.Cache.Open(a.logger)
	if err != nil {
		return err
	}
	a.cleanups = append(a.cleanups, func(context.Context) error { return closer.Close() })

	opts := []revdep.Option{
		revdep.WithLogger(a.logger),
		revdep.WithCache(tables),
		revdep.WithConcurrency(cfg.Concurrency),
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, revdep.WithExtractor(extract.NewTreeSitterExtractor(
			extract.WithConcurrency(cfg.Concurrency),
			extract.WithLogger(a.logger),
		)))
	}
	a.engine = revdep.New(opts...)
	return nil
}

// close runs cleanups in reverse order. Failures are reported, not
// returned: the command outcome is already decided.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(a.stderr, "cleanup: %v\n", err)
	}
}

// display shows module ids relative to the project root.
func (a *app) display() displayName {
	root := a.cfg.Project.Cwd
	if root == "" {
		root, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return relativeTo(root)
}

// printer returns a printer for stdout.
func (a *app) printer() *ux.Printer {
	return ux.NewPrinter(a.stdout, ux.ColorEnabled(a.stdout))
}

// report renders v in the configured format. Text output is produced by
// text.
func (a *app) report(v any, text func(p *ux.Printer)) error {
	return render(a.stdout, a.cfg.Output.Format, v, func() error {
		p := a.printer()
		text(p)
		return p.Err()
	})
}
