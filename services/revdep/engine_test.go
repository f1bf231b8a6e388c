// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package revdep

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/revdep/services/revdep/cache"
	"github.com/AleutianAI/revdep/services/revdep/depgraph"
	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/storage/badger"
)

// fakeExtractor serves a fixed table built from short module names
// rooted at root.
type fakeExtractor struct {
	root  string
	deps  map[string][]string
	calls atomic.Int32
}

func (f *fakeExtractor) path(name string) string {
	return filepath.Join(f.root, name)
}

func (f *fakeExtractor) Extract(_ context.Context, _ []string, _ extract.Options) (extract.RawTable, error) {
	f.calls.Add(1)
	raw := make(extract.RawTable, len(f.deps))
	for name, deps := range f.deps {
		edges := make([]extract.RawEdge, 0, len(deps))
		for _, d := range deps {
			edges = append(edges, extract.RawEdge{Target: f.path(d), Request: "./" + d, Kind: extract.KindUser})
		}
		raw[f.path(name)] = edges
	}
	return raw, nil
}

func newFake(t *testing.T, deps map[string][]string) *fakeExtractor {
	return &fakeExtractor{root: t.TempDir(), deps: deps}
}

func ids(f *fakeExtractor, names ...string) depgraph.ResolutionPath {
	out := make(depgraph.ResolutionPath, len(names))
	for i, n := range names {
		out[i] = depgraph.ModuleID(f.path(n))
	}
	return out
}

func resolve(t *testing.T, f *fakeExtractor, target string, entries []string, all bool) *ResolveResult {
	t.Helper()
	res, err := New(WithExtractor(f)).Resolve(context.Background(), ResolveRequest{
		Project:     Project{Cwd: f.root},
		Target:      target,
		EntryPoints: entries,
		All:         all,
	})
	require.NoError(t, err)
	return res
}

func TestResolve_LinearChain(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"b.ts"}, "b.ts": {"c.ts"}, "c.ts": {}})

	for _, all := range []bool{false, true} {
		res := resolve(t, f, "c.ts", []string{"a.ts"}, all)
		require.Len(t, res.Results, 1)
		assert.Equal(t, []depgraph.ResolutionPath{ids(f, "a.ts", "b.ts", "c.ts")}, res.Results[0].Paths)
		assert.True(t, res.HasResults())
		assert.False(t, res.Discovered)
	}
}

func TestResolve_TwoEntryPoints(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"b.ts"}, "d.ts": {"b.ts"}, "b.ts": {}})

	res := resolve(t, f, "./b.ts", []string{"./a.ts", "d.ts", "a.ts"}, false)
	assert.Equal(t, []depgraph.ModuleID{ids(f, "a.ts")[0], ids(f, "d.ts")[0]}, res.EntryPoints)
	require.Len(t, res.Results, 2)
	assert.Equal(t, []depgraph.ResolutionPath{ids(f, "a.ts", "b.ts")}, res.Results[0].Paths)
	assert.Equal(t, []depgraph.ResolutionPath{ids(f, "d.ts", "b.ts")}, res.Results[1].Paths)
	assert.Equal(t, 2, res.TotalPaths())
}

func TestResolve_Diamond(t *testing.T) {
	f := newFake(t, map[string][]string{
		"a.ts": {"b.ts", "c.ts"},
		"b.ts": {"d.ts"},
		"c.ts": {"d.ts"},
		"d.ts": {},
	})

	all := resolve(t, f, "d.ts", []string{"a.ts"}, true)
	assert.Equal(t, []depgraph.ResolutionPath{
		ids(f, "a.ts", "b.ts", "d.ts"),
		ids(f, "a.ts", "c.ts", "d.ts"),
	}, all.Results[0].Paths)

	first := resolve(t, f, "d.ts", []string{"a.ts"}, false)
	require.Len(t, first.Results[0].Paths, 1)
	assert.Contains(t, all.Results[0].Paths, first.Results[0].Paths[0])

	capped, err := New(WithExtractor(f)).Resolve(context.Background(), ResolveRequest{
		Project:     Project{Cwd: f.root},
		Target:      "d.ts",
		EntryPoints: []string{"a.ts"},
		All:         true,
		MaxPaths:    1,
	})
	require.NoError(t, err)
	assert.Len(t, capped.Results[0].Paths, 1)
	assert.True(t, capped.Results[0].Truncated)
}

func TestResolve_SelfReference(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"a.ts"}})

	res := resolve(t, f, "a.ts", []string{"a.ts"}, true)
	require.Len(t, res.Results, 1)
	assert.Empty(t, res.Results[0].Paths)
	assert.NotNil(t, res.Results[0].Paths)
	assert.False(t, res.HasResults())
}

func TestResolve_UnreachedTarget(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"b.ts"}, "b.ts": {}, "z.ts": {}})

	res := resolve(t, f, "z.ts", []string{"a.ts"}, true)
	assert.Empty(t, res.Matching())
	assert.Equal(t, 0, res.TotalPaths())
}

func TestResolve_NotTraverse(t *testing.T) {
	f := newFake(t, map[string][]string{
		"a.ts":     {"lib/b.ts", "c.ts"},
		"lib/b.ts": {"d.ts"},
		"c.ts":     {"d.ts"},
		"d.ts":     {},
	})

	res, err := New(WithExtractor(f)).Resolve(context.Background(), ResolveRequest{
		Project:     Project{Cwd: f.root},
		Target:      "d.ts",
		EntryPoints: []string{"a.ts"},
		All:         true,
		NotTraverse: []string{"lib/**"},
	})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ResolutionPath{ids(f, "a.ts", "c.ts", "d.ts")}, res.Results[0].Paths)
}

func TestResolve_Discovery(t *testing.T) {
	f := newFake(t, map[string][]string{
		"a.ts": {"b.ts"},
		"d.ts": {"b.ts"},
		"b.ts": {},
	})

	res := resolve(t, f, "b.ts", nil, true)
	assert.True(t, res.Discovered)
	assert.Equal(t, []depgraph.ModuleID{ids(f, "a.ts")[0], ids(f, "d.ts")[0]}, res.EntryPoints)
	assert.Equal(t, 2, res.TotalPaths())
}

func TestResolve_Errors(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"missing.ts"}, "b.ts": {}})
	e := New(WithExtractor(f))
	ctx := context.Background()

	_, err := e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: f.root}, Target: " "})
	assert.ErrorIs(t, err, ErrNoTarget)

	_, err = e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: f.root}, Target: "b.ts", EntryPoints: []string{"nope.ts"}})
	assert.ErrorIs(t, err, ErrEntryPointNotFound)

	_, err = e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: f.root}, Target: "b.ts", EntryPoints: []string{"a.ts"}})
	var gce *depgraph.GraphConsistencyError
	require.ErrorAs(t, err, &gce)
	assert.Equal(t, depgraph.ModuleID(f.path("missing.ts")), gce.ID)
	assert.ErrorIs(t, err, depgraph.ErrModuleNotInTable)

	_, err = e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: f.root}, Target: "b.ts", EntryPoints: []string{"b.ts"}, NotTraverse: []string{"[x"}})
	assert.Error(t, err)
}

func TestEngine_DepthAndCircular(t *testing.T) {
	f := newFake(t, map[string][]string{
		"a.ts": {"b.ts", "c.ts"},
		"b.ts": {"c.ts"},
		"c.ts": {"b.ts", "d.ts"},
		"d.ts": {},
	})
	e := New(WithExtractor(f), WithConcurrency(1))
	ctx := context.Background()

	depths, err := e.Depth(ctx, GraphRequest{Project: Project{Cwd: f.root}, EntryPoints: []string{"a.ts"}})
	require.NoError(t, err)
	require.Len(t, depths, 1)
	assert.Equal(t, 4, depths[0].Depth)
	assert.Equal(t, ids(f, "a.ts", "b.ts", "c.ts")[:3], depths[0].Path[:3])

	cycles, err := e.Circular(ctx, GraphRequest{Project: Project{Cwd: f.root}, EntryPoints: []string{"a.ts"}})
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, ids(f, "b.ts", "c.ts", "b.ts"), cycles[0])

	acyclic := newFake(t, map[string][]string{"x.ts": {}})
	none, err := New(WithExtractor(acyclic)).Circular(ctx, GraphRequest{Project: Project{Cwd: acyclic.root}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEngine_EntryPointsCount(t *testing.T) {
	f := newFake(t, map[string][]string{
		"a.ts": {"b.ts"},
		"b.ts": {"c.ts"},
		"c.ts": {},
		"z.ts": {},
	})

	res, err := New(WithExtractor(f)).EntryPoints(context.Background(), EntryPointsRequest{
		Project: Project{Cwd: f.root},
		Count:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, []EntryPoint{
		{ID: ids(f, "a.ts")[0], Dependencies: 3},
		{ID: ids(f, "z.ts")[0], Dependencies: 1},
	}, res.EntryPoints)
	assert.Equal(t, []depgraph.ModuleID{ids(f, "a.ts")[0], ids(f, "z.ts")[0]}, res.IDs())
}

func TestEngine_Cache(t *testing.T) {
	f := newFake(t, map[string][]string{"a.ts": {"b.ts"}, "b.ts": {}})
	mem, err := cache.NewMemoryCache(8, 0)
	require.NoError(t, err)
	e := New(WithExtractor(f), WithCache(mem))
	ctx := context.Background()

	req := ResolveRequest{Project: Project{Cwd: f.root}, Target: "b.ts", EntryPoints: []string{"a.ts"}}
	for i := 0; i < 3; i++ {
		res, err := e.Resolve(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.HasResults())
	}
	assert.Equal(t, int32(1), f.calls.Load())

	require.NoError(t, e.InvalidateRoot(ctx, f.root))
	_, err = e.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())

	require.NoError(t, New(WithExtractor(f)).InvalidateRoot(ctx, f.root))
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"src/index.ts":                    "import { App } from './App';\nimport merge from 'lodash/merge';\nApp(merge);\n",
		"src/App.tsx":                     "import { util } from './util';\nimport React from 'react';\nexport const App = () => util;\n",
		"src/util.ts":                     "import type { Config } from './types';\nexport const util = 1;\n",
		"src/types.ts":                    "export type Config = {};\n",
		"src/cli.ts":                      "import { util } from './util';\n",
		"node_modules/lodash/merge.js":    "module.exports = {};\n",
		"node_modules/react/index.js":     "module.exports = {};\n",
		"node_modules/react/package.json": `{"main": "index.js"}`,
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestEngine_TreeSitterProject(t *testing.T) {
	root := writeProject(t)
	e := New()
	ctx := context.Background()
	p := func(rel string) depgraph.ModuleID { return depgraph.ModuleID(filepath.Join(root, filepath.FromSlash(rel))) }

	files, err := e.Files(ctx, EntryRequest{Project: Project{Cwd: root}, EntryPoint: "src/index.ts"})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("src/App.tsx"), p("src/index.ts"), p("src/types.ts"), p("src/util.ts")}, files)

	files, err = e.Files(ctx, EntryRequest{Project: Project{Cwd: root, IgnoreTypeImports: true}, EntryPoint: "./src/index.ts"})
	require.NoError(t, err)
	assert.NotContains(t, files, p("src/types.ts"))

	pkgs, err := e.NodeModules(ctx, EntryRequest{Project: Project{Cwd: root}, EntryPoint: "src/index.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lodash/merge", "react"}, pkgs)

	res, err := e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: root}, Target: "src/util.ts", All: true})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("src/cli.ts"), p("src/index.ts")}, res.EntryPoints)
	assert.Equal(t, []depgraph.ResolutionPath{{p("src/cli.ts"), p("src/util.ts")}}, res.Results[0].Paths)
	assert.Equal(t, []depgraph.ResolutionPath{{p("src/index.ts"), p("src/App.tsx"), p("src/util.ts")}}, res.Results[1].Paths)

	res, err = e.Resolve(ctx, ResolveRequest{
		Project:     Project{Cwd: root, IncludeExternal: true},
		Target:      "react",
		EntryPoints: []string{"src/*.ts"},
	})
	require.NoError(t, err)
	assert.Equal(t, depgraph.ModuleID("react"), res.Target)
	assert.Equal(t, []depgraph.ModuleID{p("src/cli.ts"), p("src/index.ts"), p("src/types.ts"), p("src/util.ts")}, res.EntryPoints)
	assert.Equal(t, 1, res.TotalPaths())
	assert.Equal(t, []depgraph.ResolutionPath{{p("src/index.ts"), p("src/App.tsx"), "react"}}, res.Results[1].Paths)

	res, err = e.Resolve(ctx, ResolveRequest{
		Project:     Project{Cwd: root, IncludeExternal: true},
		Target:      "lodash/merge",
		EntryPoints: []string{"src/index.ts"},
	})
	require.NoError(t, err)
	assert.Equal(t, depgraph.ModuleID("lodash"), res.Target)
	assert.Equal(t, []depgraph.ResolutionPath{{p("src/index.ts"), "lodash"}}, res.Results[0].Paths)

	_, err = e.Files(ctx, EntryRequest{Project: Project{Cwd: root}})
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	_, err = e.Files(ctx, EntryRequest{Project: Project{Cwd: root}, EntryPoint: "src/*.ts"})
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestEngine_BracketedEntryPoint(t *testing.T) {
	root := t.TempDir()
	for rel, content := range map[string]string{
		"pages/[id]/index.tsx": "import { util } from '../../lib/util';\nexport default () => util;\n",
		"pages/about.tsx":      "import { util } from '../lib/util';\nexport default () => util;\n",
		"lib/util.ts":          "export const util = 1;\n",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	p := func(rel string) depgraph.ModuleID { return depgraph.ModuleID(filepath.Join(root, filepath.FromSlash(rel))) }
	e := New()
	ctx := context.Background()

	res, err := e.Resolve(ctx, ResolveRequest{
		Project:     Project{Cwd: root},
		Target:      "lib/util.ts",
		EntryPoints: []string{"pages/[id]/index.tsx"},
	})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("pages/[id]/index.tsx")}, res.EntryPoints)
	assert.Equal(t, []depgraph.ResolutionPath{{p("pages/[id]/index.tsx"), p("lib/util.ts")}}, res.Results[0].Paths)

	files, err := e.Files(ctx, EntryRequest{Project: Project{Cwd: root}, EntryPoint: filepath.Join(root, "pages", "[id]", "index.tsx")})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("lib/util.ts"), p("pages/[id]/index.tsx")}, files)

	// A pattern with no literal match is still expanded as a glob.
	res, err = e.Resolve(ctx, ResolveRequest{
		Project:     Project{Cwd: root},
		Target:      "lib/util.ts",
		EntryPoints: []string{"pages/*.tsx"},
	})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("pages/about.tsx")}, res.EntryPoints)

	res, err = e.Resolve(ctx, ResolveRequest{Project: Project{Cwd: root}, Target: "lib/util.ts"})
	require.NoError(t, err)
	assert.Equal(t, []depgraph.ModuleID{p("pages/[id]/index.tsx"), p("pages/about.tsx")}, res.EntryPoints)
}

func TestEngine_PersistentCacheSeesEdits(t *testing.T) {
	root := t.TempDir()
	base := time.Unix(1_700_000_000, 0)
	write := func(rel, content string, mtime time.Time) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	write("a.ts", "import './b';\n", base)
	write("b.ts", "export const b = 1;\n", base)
	write("c.ts", "export const c = 1;\n", base)

	dir := t.TempDir()
	req := ResolveRequest{Project: Project{Cwd: root}, Target: "c.ts", EntryPoints: []string{"a.ts"}}
	run := func() *ResolveResult {
		db, err := badger.Open(badger.Config{Path: dir})
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		bc, err := cache.NewBadgerCache(db, time.Hour)
		require.NoError(t, err)
		res, err := New(WithCache(bc)).Resolve(context.Background(), req)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, 0, run().TotalPaths())
	assert.Equal(t, 0, run().TotalPaths())

	write("a.ts", "import './b';\nimport './c';\n", base.Add(time.Minute))
	res := run()
	assert.Equal(t, 1, res.TotalPaths())
	assert.Equal(t, []depgraph.ResolutionPath{{
		depgraph.ModuleID(filepath.Join(root, "a.ts")),
		depgraph.ModuleID(filepath.Join(root, "c.ts")),
	}}, res.Results[0].Paths)
}
