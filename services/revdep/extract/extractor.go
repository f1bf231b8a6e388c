// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFileSize is the largest source file analyzed (10 MiB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// TreeSitterExtractor is the tree-sitter backed Extractor.
//
// Thread Safety: Safe for concurrent use; every Extract call owns its own
// resolver and table.
type TreeSitterExtractor struct {
	concurrency int
	maxFileSize int64
	logger      *slog.Logger
}

// ExtractorOption configures a TreeSitterExtractor.
type ExtractorOption func(*TreeSitterExtractor)

// WithConcurrency sets how many files are parsed in parallel.
// Values below 1 are ignored.
func WithConcurrency(n int) ExtractorOption {
	return func(e *TreeSitterExtractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMaxFileSize sets the largest file analyzed, in bytes.
func WithMaxFileSize(bytes int64) ExtractorOption {
	return func(e *TreeSitterExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *TreeSitterExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewTreeSitterExtractor creates an extractor. Concurrency defaults to
// GOMAXPROCS.
func NewTreeSitterExtractor(opts ...ExtractorOption) *TreeSitterExtractor {
	e := &TreeSitterExtractor{
		concurrency: runtime.GOMAXPROCS(0),
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract expands globs under opts.Cwd and analyzes the matched sources
// and everything they transitively import.
//
// Description:
//
//	Files are analyzed breadth-first, one frontier at a time, with up to
//	the configured concurrency parsing in parallel. Each resolved project
//	source is queued once. Resolved node_modules files are recorded with a
//	nil edge list (known, not analyzed). Resolved non-source files such as
//	.json or .css are recorded as analyzed with no imports.
//
// Inputs:
//
//	ctx - Cancels the extraction between and during file parses.
//	globs - Patterns relative to opts.Cwd (absolute patterns are allowed).
//	opts - Working directory, alias config and type-import handling.
//
// Outputs:
//
//	RawTable - Every analyzed and every referenced file.
//	error - *FilesystemError, *ExtractionError, or an alias config error.
//	        The first failure aborts the extraction.
func (e *TreeSitterExtractor) Extract(ctx context.Context, globs []string, opts Options) (RawTable, error) {
	if opts.Cwd == "" {
		return nil, ErrNoCwd
	}
	cwd, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, &FilesystemError{Op: "resolve", Path: opts.Cwd, Cause: err}
	}

	ctx, span := startExtractSpan(ctx, cwd, len(globs))
	defer span.End()
	start := time.Now()

	aliases, err := LoadAliasConfig(cwd, opts.AliasConfig)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resolver := NewResolver(aliases)

	seeds, err := ExpandGlobs(cwd, globs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	table := make(RawTable, len(seeds))
	queued := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		queued[s] = struct{}{}
	}

	frontier := seeds
	for len(frontier) > 0 {
		results := make([][]RawEdge, len(frontier))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for i, file := range frontier {
			g.Go(func() error {
				edges, err := e.analyze(gctx, resolver, file, opts.IgnoreTypeImports)
				if err != nil {
					return err
				}
				results[i] = edges
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			recordExtractMetrics(ctx, time.Since(start), len(table), false)
			return nil, err
		}

		var next []string
		for i, file := range frontier {
			table[file] = results[i]
			for _, edge := range results[i] {
				if edge.Target == "" {
					continue
				}
				if _, ok := queued[edge.Target]; ok {
					continue
				}
				queued[edge.Target] = struct{}{}
				switch {
				case edge.Kind == KindNodeModule:
					table[edge.Target] = nil
				case IsSourceFile(edge.Target):
					next = append(next, edge.Target)
				default:
					table[edge.Target] = []RawEdge{}
				}
			}
		}
		frontier = next
	}

	e.logger.Debug("extraction complete",
		slog.String("cwd", cwd),
		slog.Int("seeds", len(seeds)),
		slog.Int("files", len(table)),
		slog.Duration("duration", time.Since(start)),
	)
	setExtractSpanResult(span, len(seeds), len(table))
	recordExtractMetrics(ctx, time.Since(start), len(table), true)
	return table, nil
}

func (e *TreeSitterExtractor) analyze(ctx context.Context, resolver *Resolver, file string, ignoreTypes bool) ([]RawEdge, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, &FilesystemError{Op: "stat", Path: file, Cause: err}
	}
	if info.Size() > e.maxFileSize {
		return nil, &ExtractionError{File: file, Cause: fmt.Errorf("size %d exceeds limit %d", info.Size(), e.maxFileSize)}
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: file, Cause: err}
	}

	imports, err := ParseImports(ctx, file, content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExtractionError{File: file, Cause: err}
	}

	edges := make([]RawEdge, 0, len(imports))
	for _, imp := range imports {
		if imp.TypeOnly && ignoreTypes {
			continue
		}
		edge := resolver.Resolve(file, imp.Request)
		edge.TypeOnly = imp.TypeOnly
		edges = append(edges, edge)
	}
	return edges, nil
}

// globMeta holds the characters doublestar treats as pattern syntax.
const globMeta = `*?[]{}\`

// EscapeGlob escapes glob metacharacters in a slash-separated path so that
// it matches itself literally. Directory names such as "[id]" or "{slug}"
// are common in file-system routed projects.
func EscapeGlob(path string) string {
	if !strings.ContainsAny(path, globMeta) {
		return path
	}
	var b strings.Builder
	b.Grow(len(path) + 4)
	for _, r := range path {
		if strings.ContainsRune(globMeta, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExpandGlobs returns the absolute, sorted, de-duplicated source files
// matched by globs under cwd. Matches inside node_modules are skipped.
//
// Relative patterns are matched against an fs.FS rooted at cwd, so glob
// metacharacters in cwd itself are never interpreted.
func ExpandGlobs(cwd string, globs []string) ([]string, error) {
	fsys := os.DirFS(cwd)
	seen := make(map[string]struct{})
	var files []string

	add := func(abs string) {
		if !IsSourceFile(abs) || underNodeModules(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}

	for _, pattern := range globs {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if filepath.IsAbs(pattern) {
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expand glob %q: %w", pattern, err)
			}
			for _, m := range matches {
				add(filepath.Clean(m))
			}
			continue
		}

		rel := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		matches, err := doublestar.Glob(fsys, rel, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(filepath.Join(cwd, filepath.FromSlash(m)))
		}
	}

	slices.Sort(files)
	return files, nil
}
