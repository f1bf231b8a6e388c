// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package revdep answers "through which import chains does an entry point
// reach this module?" for JavaScript and TypeScript projects.
//
// An Engine extracts a dependency table (optionally through a cache),
// discovers entry points when none are given, builds one traversal graph
// per entry point in parallel over the shared immutable table, and walks
// the graphs backward from the target. The same session plumbing serves
// the file, package, depth and cycle reports.
package revdep

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/revdep/services/revdep/cache"
	"github.com/AleutianAI/revdep/services/revdep/depgraph"
	"github.com/AleutianAI/revdep/services/revdep/discovery"
	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/pathmatch"
	"github.com/AleutianAI/revdep/services/revdep/table"
)

// Engine runs revdep operations.
//
// Thread Safety: Safe for concurrent use. Every call owns its tables and
// graphs; only the optional cache is shared.
type Engine struct {
	extractor   extract.Extractor
	tables      cache.TableCache
	cache       *cache.Group
	logger      *slog.Logger
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtractor sets the extraction backend. The default is a
// tree-sitter extractor.
func WithExtractor(ex extract.Extractor) Option {
	return func(e *Engine) {
		if ex != nil {
			e.extractor = ex
		}
	}
}

// WithCache caches extracted tables in c. Without it nothing is cached.
func WithCache(c cache.TableCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.tables = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConcurrency bounds how many entry points are processed at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.Default(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tables != nil {
		e.cache = cache.NewGroup(e.tables, e.logger)
	}
	if e.extractor == nil {
		e.extractor = extract.NewTreeSitterExtractor(extract.WithLogger(e.logger))
	}
	return e
}

// source returns the extractor, wrapped with the cache when one is set.
func (e *Engine) source() extract.Extractor {
	if e.cache == nil {
		return e.extractor
	}
	return &cachedExtractor{inner: e.extractor, group: e.cache}
}

// cachedExtractor serves Extract from a cache.Group.
type cachedExtractor struct {
	inner extract.Extractor
	group *cache.Group
}

func (c *cachedExtractor) Extract(ctx context.Context, globs []string, opts extract.Options) (extract.RawTable, error) {
	key := cache.Key{
		Cwd:               opts.Cwd,
		Globs:             globs,
		AliasConfig:       opts.AliasConfig,
		IgnoreTypeImports: opts.IgnoreTypeImports,
	}
	t, _, err := c.group.GetOrLoad(ctx, key, func(ctx context.Context) (extract.RawTable, error) {
		return c.inner.Extract(ctx, globs, opts)
	})
	return t, err
}

// InvalidateRoot drops every cached table for the project at root. A
// no-op without a cache.
func (e *Engine) InvalidateRoot(ctx context.Context, root string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Cache().InvalidateRoot(ctx, root)
}

// session is the table and entry points one operation works on.
type session struct {
	root        string
	entryPoints []depgraph.ModuleID
	table       depgraph.DependencyTable
	discovered  bool
}

func projectRoot(cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", &extract.FilesystemError{Op: "getwd", Path: ".", Cause: err}
		}
		return wd, nil
	}
	root, err := filepath.Abs(cwd)
	if err != nil {
		return "", &extract.FilesystemError{Op: "resolve", Path: cwd, Cause: err}
	}
	return root, nil
}

// cleanSpec strips the leading "./" users commonly type.
func cleanSpec(spec string) string {
	spec = strings.TrimSpace(spec)
	for strings.HasPrefix(spec, "./") {
		spec = spec[2:]
	}
	return spec
}

func isGlob(spec string) bool {
	return strings.ContainsAny(spec, "*?[{")
}

// isLiteral reports whether spec names a path rather than a pattern: it
// has no glob syntax, or a file exists at exactly that path.
func isLiteral(root, spec string) bool {
	if !isGlob(spec) {
		return true
	}
	info, err := os.Stat(absPath(root, spec))
	return err == nil && info.Mode().IsRegular()
}

// open extracts the table for p and settles the entry points: the given
// specs expanded against the root, or discovered ones when specs is empty.
func (e *Engine) open(ctx context.Context, p Project, specs []string, includeExternal bool) (*session, error) {
	root, err := projectRoot(p.Cwd)
	if err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		res, err := discovery.Discover(ctx, e.source(), discovery.Options{
			Cwd:               root,
			Include:           p.Include,
			Exclude:           p.Exclude,
			AliasConfig:       p.AliasConfig,
			IgnoreTypeImports: p.IgnoreTypeImports,
			IncludeExternal:   includeExternal,
			Logger:            e.logger,
		})
		if err != nil {
			return nil, err
		}
		return &session{root: root, entryPoints: res.EntryPoints, table: res.Table, discovered: true}, nil
	}

	cleaned := make([]string, 0, len(specs))
	globs := make([]string, 0, len(specs))
	for _, s := range specs {
		if s = cleanSpec(s); s == "" {
			continue
		}
		cleaned = append(cleaned, s)
		if isLiteral(root, s) {
			globs = append(globs, extract.EscapeGlob(filepath.ToSlash(s)))
		} else {
			globs = append(globs, s)
		}
	}
	if len(globs) == 0 {
		return nil, ErrNoEntryPoint
	}

	raw, err := e.source().Extract(ctx, globs, extract.Options{
		Cwd:               root,
		AliasConfig:       p.AliasConfig,
		IgnoreTypeImports: p.IgnoreTypeImports,
	})
	if err != nil {
		return nil, err
	}
	t := table.Normalize(raw, table.Options{IncludeExternal: includeExternal})

	entries, err := entryPointIDs(root, cleaned, t)
	if err != nil {
		return nil, err
	}
	return &session{root: root, entryPoints: entries, table: t}, nil
}

// entryPointIDs maps specs to table keys, deduplicated in spec order.
func entryPointIDs(root string, specs []string, t depgraph.DependencyTable) ([]depgraph.ModuleID, error) {
	seen := make(map[depgraph.ModuleID]struct{}, len(specs))
	var out []depgraph.ModuleID
	add := func(id depgraph.ModuleID) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	for _, spec := range specs {
		if !isLiteral(root, spec) {
			matches, err := extract.ExpandGlobs(root, []string{spec})
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				add(depgraph.ModuleID(m))
			}
			continue
		}
		id := depgraph.ModuleID(absPath(root, spec))
		if !t.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, id)
		}
		add(id)
	}
	return out, nil
}

func absPath(root, spec string) string {
	if filepath.IsAbs(spec) {
		return filepath.Clean(spec)
	}
	return filepath.Join(root, spec)
}

// targetID resolves a target spec: a project path when one matches a
// table key, otherwise a package key, otherwise the path it names. A
// package subpath ("lodash/fp") that is not a project file falls back to
// its package key, since external modules are keyed by package.
func targetID(root, spec string, t depgraph.DependencyTable) depgraph.ModuleID {
	spec = cleanSpec(spec)
	path := depgraph.ModuleID(absPath(root, spec))
	if t.Has(path) {
		return path
	}
	if t.Has(depgraph.ModuleID(spec)) {
		return depgraph.ModuleID(spec)
	}
	if pkg := depgraph.ModuleID(extract.PackageName(spec)); pkg != "" && t.Has(pkg) {
		if _, err := os.Stat(string(path)); err != nil {
			return pkg
		}
	}
	return path
}

func notTraverse(root string, patterns []string) (depgraph.Matcher, error) {
	m, err := pathmatch.New(root, patterns)
	if err != nil {
		return nil, fmt.Errorf("not-traverse: %w", err)
	}
	if m.Empty() {
		return nil, nil
	}
	return m, nil
}

// eachEntryPoint builds one graph per entry point, at most e.concurrency
// at a time, and hands each to fn with its index. The first error cancels
// the rest.
func (e *Engine) eachEntryPoint(ctx context.Context, s *session, opts depgraph.BuildOptions, fn func(i int, g *depgraph.Graph) error) error {
	opts.Logger = e.logger
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ep := range s.entryPoints {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			graph, err := depgraph.Build(gctx, s.table, ep, opts)
			if err != nil {
				return err
			}
			return fn(i, graph)
		})
	}
	return g.Wait()
}

// Resolve finds the import chains from entry points to the target.
//
// Description:
//
//	Entry points come from the request or, when it has none, from
//	discovery. Each entry point gets its own graph over the shared table;
//	graphs are built concurrently. An entry point that never reaches the
//	target, or that is the target, yields an empty path list. Empty
//	results are not an error.
//
// Outputs:
//
//	*ResolveResult - Per-entry-point chains, aligned with EntryPoints.
//	error - ErrNoTarget, ErrEntryPointNotFound, pattern errors, or
//	        extraction, filesystem and graph consistency errors unmodified.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	if cleanSpec(req.Target) == "" {
		return nil, ErrNoTarget
	}
	ctx, span := startOpSpan(ctx, "revdep.Resolve", req.Cwd)
	defer span.End()

	s, err := e.open(ctx, req.Project, req.EntryPoints, req.IncludeExternal)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	skip, err := notTraverse(s.root, req.NotTraverse)
	if err != nil {
		return nil, err
	}

	target := targetID(s.root, req.Target, s.table)
	mode := depgraph.ModeFirst
	if req.All {
		mode = depgraph.ModeAll
	}

	res := &ResolveResult{
		Target:      target,
		EntryPoints: s.entryPoints,
		Results:     make([]EntryResult, len(s.entryPoints)),
		Discovered:  s.discovered,
	}
	err = e.eachEntryPoint(ctx, s, depgraph.BuildOptions{
		Target:          target,
		DoNotTraverse:   skip,
		IncludeExternal: req.IncludeExternal,
	}, func(i int, g *depgraph.Graph) error {
		paths, truncated := depgraph.ResolvePaths(ctx, g, depgraph.ResolveOptions{Mode: mode, MaxPaths: req.MaxPaths})
		res.Results[i] = EntryResult{EntryPoint: g.EntryPoint(), Paths: paths, Truncated: truncated}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.logger.Debug("resolve complete",
		slog.String("target", string(target)),
		slog.Int("entry_points", len(s.entryPoints)),
		slog.Int("paths", res.TotalPaths()),
		slog.String("mode", mode.String()),
	)
	setOpSpanResult(span, len(s.entryPoints), res.TotalPaths())
	return res, nil
}

// EntryPoints discovers the project's entry points.
//
// With Count set, each entry point also reports how many modules it
// reaches, computed concurrently over the discovery table.
func (e *Engine) EntryPoints(ctx context.Context, req EntryPointsRequest) (*EntryPointsResult, error) {
	ctx, span := startOpSpan(ctx, "revdep.EntryPoints", req.Cwd)
	defer span.End()

	s, err := e.open(ctx, req.Project, nil, req.IncludeExternal)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := &EntryPointsResult{EntryPoints: make([]EntryPoint, len(s.entryPoints))}
	for i, id := range s.entryPoints {
		res.EntryPoints[i].ID = id
	}
	if !req.Count {
		setOpSpanResult(span, len(s.entryPoints), 0)
		return res, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range s.entryPoints {
		g.Go(func() error {
			reach, err := depgraph.Reachable(s.table, id, req.IncludeExternal)
			if err != nil {
				return err
			}
			res.EntryPoints[i].Dependencies = len(reach)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	setOpSpanResult(span, len(s.entryPoints), 0)
	return res, nil
}

// Files returns every project file the entry point transitively imports,
// the entry point included, sorted.
func (e *Engine) Files(ctx context.Context, req EntryRequest) ([]depgraph.ModuleID, error) {
	reach, err := e.reachable(ctx, req, req.IncludeExternal)
	if err != nil {
		return nil, err
	}
	return depgraph.Files(reach), nil
}

// NodeModules returns the distinct third-party import specifiers used by
// files the entry point reaches, sorted. External packages are always
// included for this report regardless of the request.
func (e *Engine) NodeModules(ctx context.Context, req EntryRequest) ([]string, error) {
	reach, err := e.reachable(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return depgraph.NodeModules(reach), nil
}

func (e *Engine) reachable(ctx context.Context, req EntryRequest, includeExternal bool) (depgraph.DependencyTable, error) {
	if cleanSpec(req.EntryPoint) == "" {
		return nil, ErrNoEntryPoint
	}
	ctx, span := startOpSpan(ctx, "revdep.Reachable", req.Cwd)
	defer span.End()

	s, err := e.open(ctx, req.Project, []string{req.EntryPoint}, includeExternal)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(s.entryPoints) != 1 {
		return nil, fmt.Errorf("%w: %q matched %d files", ErrEntryPointNotFound, req.EntryPoint, len(s.entryPoints))
	}
	reach, err := depgraph.Reachable(s.table, s.entryPoints[0], includeExternal)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	setOpSpanResult(span, 1, len(reach))
	return reach, nil
}

// Depth reports the longest import chain from each entry point, in entry
// point order.
func (e *Engine) Depth(ctx context.Context, req GraphRequest) ([]DepthResult, error) {
	ctx, span := startOpSpan(ctx, "revdep.Depth", req.Cwd)
	defer span.End()

	s, skip, err := e.openGraph(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]DepthResult, len(s.entryPoints))
	err = e.eachEntryPoint(ctx, s, depgraph.BuildOptions{
		DoNotTraverse:   skip,
		IncludeExternal: req.IncludeExternal,
	}, func(i int, g *depgraph.Graph) error {
		depth, path := depgraph.MaxDepth(g)
		out[i] = DepthResult{EntryPoint: g.EntryPoint(), Depth: depth, Path: path}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	setOpSpanResult(span, len(s.entryPoints), len(out))
	return out, nil
}

// Circular reports the distinct import cycles reachable from the entry
// points. Each cycle starts and ends with the same module; rotations of
// one cycle are reported once.
func (e *Engine) Circular(ctx context.Context, req GraphRequest) ([]depgraph.ResolutionPath, error) {
	ctx, span := startOpSpan(ctx, "revdep.Circular", req.Cwd)
	defer span.End()

	s, skip, err := e.openGraph(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	graphs := make([]*depgraph.Graph, len(s.entryPoints))
	err = e.eachEntryPoint(ctx, s, depgraph.BuildOptions{
		DoNotTraverse:   skip,
		IncludeExternal: req.IncludeExternal,
	}, func(i int, g *depgraph.Graph) error {
		graphs[i] = g
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	set := depgraph.NewCycleSet()
	for _, g := range graphs {
		set.AddGraph(g)
	}
	cycles := slices.Clone(set.Cycles())
	if cycles == nil {
		cycles = []depgraph.ResolutionPath{}
	}
	setOpSpanResult(span, len(s.entryPoints), len(cycles))
	return cycles, nil
}

func (e *Engine) openGraph(ctx context.Context, req GraphRequest) (*session, depgraph.Matcher, error) {
	s, err := e.open(ctx, req.Project, req.EntryPoints, req.IncludeExternal)
	if err != nil {
		return nil, nil, err
	}
	skip, err := notTraverse(s.root, req.NotTraverse)
	if err != nil {
		return nil, nil, err
	}
	return s, skip, nil
}
