// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery finds the entry points of a project: source files no
// other scanned file imports.
//
// The heuristic is static. A file loaded only through a computed require,
// a framework convention, or a config file looks like an entry point, and
// a real root that something happens to import does not. Include and
// exclude globs are the intended way to correct it.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/revdep/services/revdep/depgraph"
	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/pathmatch"
	"github.com/AleutianAI/revdep/services/revdep/table"
)

// ErrNotDirectory is returned when the project root is not a directory.
var ErrNotDirectory = errors.New("project root is not a directory")

// Options configures Discover.
type Options struct {
	// Cwd is the project root. Required.
	Cwd string

	// Include keeps only candidates matching at least one pattern. Empty
	// keeps everything.
	Include []string

	// Exclude drops candidates matching any pattern.
	Exclude []string

	// AliasConfig is passed to the extractor.
	AliasConfig string

	// IgnoreTypeImports is passed to the extractor.
	IgnoreTypeImports bool

	// IncludeExternal normalizes the returned table with third-party
	// packages kept as terminal modules.
	IncludeExternal bool

	// NoIgnoreFile disables the root .gitignore filter.
	NoIgnoreFile bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of a discovery run.
type Result struct {
	// EntryPoints is sorted and free of duplicates. May be empty.
	EntryPoints []depgraph.ModuleID

	// Table is the whole-project table the candidates were derived from,
	// reusable for graph builds without extracting again.
	Table depgraph.DependencyTable
}

// Directories returns every directory below root, excluding node_modules
// and dot-directories and everything beneath them. Root itself is not
// included. Symlinked directories are not followed.
func Directories(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &extract.FilesystemError{Op: "stat", Path: root, Cause: err}
	}
	if !info.IsDir() {
		return nil, &extract.FilesystemError{Op: "scan", Path: root, Cause: ErrNotDirectory}
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &extract.FilesystemError{Op: "scan", Path: path, Cause: err}
		}
		if !d.IsDir() || path == root {
			return nil
		}
		name := d.Name()
		if name == "node_modules" || strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// Globs returns "*" plus one "<dir>/*" glob per directory, relative to
// root. Each glob matches only the direct children of its directory;
// metacharacters in directory names are escaped.
func Globs(root string, dirs []string) []string {
	globs := make([]string, 0, len(dirs)+1)
	globs = append(globs, "*")
	for _, dir := range dirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		globs = append(globs, extract.EscapeGlob(filepath.ToSlash(rel))+"/*")
	}
	return globs
}

// Candidates returns the table keys that are source files outside
// node_modules and are not the resolved target of any edge, sorted.
func Candidates(t depgraph.DependencyTable) []depgraph.ModuleID {
	refs := depgraph.ReferencedIDs(t)
	var out []depgraph.ModuleID
	for _, id := range t.Keys() {
		if !extract.IsSourceFile(string(id)) || depgraph.IsUnderNodeModules(id) {
			continue
		}
		if _, referenced := refs[id]; referenced {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Filter applies exclude, then include, then ignore rules to candidates.
// Order is preserved. Nil matchers and rules filter nothing.
func Filter(candidates []depgraph.ModuleID, include, exclude *pathmatch.Matcher, ignore *IgnoreRules) []depgraph.ModuleID {
	out := make([]depgraph.ModuleID, 0, len(candidates))
	for _, id := range candidates {
		s := string(id)
		if exclude.Match(s) {
			continue
		}
		if !include.Empty() && !include.Match(s) {
			continue
		}
		if ignore.Match(s) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Discover scans the project, extracts a whole-project table, and derives
// entry points from it.
//
// Description:
//
//	Every directory below the root (minus node_modules and dot-dirs)
//	contributes a glob for its direct children; the root contributes "*".
//	The extractor analyzes all of them, and the normalized table yields
//	the candidates: source files nothing imports. Exclude globs, include
//	globs and the root .gitignore are then applied in that order.
//
// Inputs:
//
//	ctx - Passed to the extractor.
//	ex - Extraction backend. Must not be nil.
//	opts - Root, filters and extractor settings.
//
// Outputs:
//
//	*Result - Entry points and the table. Zero entry points is not an error.
//	error - Filesystem, extraction or pattern errors, unmodified.
func Discover(ctx context.Context, ex extract.Extractor, opts Options) (*Result, error) {
	if opts.Cwd == "" {
		return nil, extract.ErrNoCwd
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, &extract.FilesystemError{Op: "resolve", Path: opts.Cwd, Cause: err}
	}

	include, err := pathmatch.New(root, opts.Include)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	exclude, err := pathmatch.New(root, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}

	start := time.Now()
	dirs, err := Directories(root)
	if err != nil {
		return nil, err
	}

	raw, err := ex.Extract(ctx, Globs(root, dirs), extract.Options{
		Cwd:               root,
		AliasConfig:       opts.AliasConfig,
		IgnoreTypeImports: opts.IgnoreTypeImports,
	})
	if err != nil {
		return nil, err
	}
	t := table.Normalize(raw, table.Options{IncludeExternal: opts.IncludeExternal})

	var ignore *IgnoreRules
	if !opts.NoIgnoreFile {
		ignore, err = LoadIgnoreRules(root, logger)
		if err != nil {
			return nil, err
		}
	}

	candidates := Candidates(t)
	entryPoints := Filter(candidates, include, exclude, ignore)

	logger.Debug("entry point discovery complete",
		slog.String("root", root),
		slog.Int("directories", len(dirs)),
		slog.Int("modules", len(t)),
		slog.Int("candidates", len(candidates)),
		slog.Int("entry_points", len(entryPoints)),
		slog.Int("ignore_rules", ignore.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	return &Result{EntryPoints: entryPoints, Table: t}, nil
}
