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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"tsconfig.json":                    `{"compilerOptions": {"baseUrl": ".", "paths": {"@/*": ["src/*"]}}}`,
		"src/index.ts":                     "import { a } from './a';\nimport type { T } from './types';\nimport 'lodash';\nimport fs from 'fs';\n",
		"src/a.ts":                         "export * from '@/b';\nimport data from './data.json';\nimport './missing';\n",
		"src/b.js":                         "const c = require('./c');\n",
		"src/c.tsx":                        "export const C = () => import('./a');\n",
		"src/types.ts":                     "export type T = string;\n",
		"src/data.json":                    "{}",
		"src/orphan.ts":                    "",
		"node_modules/lodash/index.js":     "module.exports = {};\n",
		"node_modules/lodash/package.json": `{"main": "index.js"}`,
	})
	return root
}

func TestTreeSitterExtractor_Extract(t *testing.T) {
	root := fixtureProject(t)
	p := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	table, err := NewTreeSitterExtractor(WithConcurrency(2)).Extract(context.Background(),
		[]string{"src/index.ts"}, Options{Cwd: root})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		p("src/index.ts"), p("src/a.ts"), p("src/b.js"), p("src/c.tsx"),
		p("src/types.ts"), p("src/data.json"), p("node_modules/lodash/index.js"),
	}, keys(table))

	index := table[p("src/index.ts")]
	require.Len(t, index, 4)
	assert.Equal(t, RawEdge{Target: p("src/a.ts"), Request: "./a", Kind: KindUser}, index[0])
	assert.Equal(t, RawEdge{Target: p("src/types.ts"), Request: "./types", Kind: KindUser, TypeOnly: true}, index[1])
	assert.Equal(t, RawEdge{Target: p("node_modules/lodash/index.js"), Request: "lodash", Kind: KindNodeModule}, index[2])
	assert.Equal(t, RawEdge{Request: "fs", Kind: KindBuiltin}, index[3])

	a := table[p("src/a.ts")]
	require.Len(t, a, 3)
	assert.Equal(t, p("src/b.js"), a[0].Target)
	assert.Equal(t, p("src/data.json"), a[1].Target)
	assert.Equal(t, RawEdge{Request: "./missing", Kind: KindUnresolved}, a[2])

	assert.Equal(t, p("src/a.ts"), table[p("src/c.tsx")][0].Target)

	// Known but not analyzed.
	assert.Nil(t, table[p("node_modules/lodash/index.js")])
	// Analyzed, no imports.
	assert.NotNil(t, table[p("src/data.json")])
	assert.Empty(t, table[p("src/data.json")])
	assert.NotNil(t, table[p("src/types.ts")])
}

func TestTreeSitterExtractor_IgnoreTypeImports(t *testing.T) {
	root := fixtureProject(t)

	table, err := NewTreeSitterExtractor().Extract(context.Background(),
		[]string{"src/index.ts"}, Options{Cwd: root, IgnoreTypeImports: true})
	require.NoError(t, err)

	assert.NotContains(t, table, filepath.Join(root, "src", "types.ts"))
	assert.Len(t, table[filepath.Join(root, "src", "index.ts")], 3)
}

func TestTreeSitterExtractor_GlobSeeds(t *testing.T) {
	root := fixtureProject(t)

	table, err := NewTreeSitterExtractor().Extract(context.Background(),
		[]string{"src/**/*", "node_modules/**/*.js"}, Options{Cwd: root})
	require.NoError(t, err)

	assert.Contains(t, table, filepath.Join(root, "src", "orphan.ts"))
	assert.NotNil(t, table[filepath.Join(root, "src", "orphan.ts")])
	// Seeds never include node_modules.
	assert.Nil(t, table[filepath.Join(root, "node_modules", "lodash", "index.js")])
}

func TestTreeSitterExtractor_Errors(t *testing.T) {
	ctx := context.Background()
	ex := NewTreeSitterExtractor()

	t.Run("no cwd", func(t *testing.T) {
		_, err := ex.Extract(ctx, []string{"*.ts"}, Options{})
		assert.ErrorIs(t, err, ErrNoCwd)
	})

	t.Run("bad alias config", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.ts": "", "tsconfig.json": "{"})
		_, err := ex.Extract(ctx, []string{"*.ts"}, Options{Cwd: root})
		assert.ErrorIs(t, err, ErrInvalidAliasConfig)
	})

	t.Run("bad glob", func(t *testing.T) {
		_, err := ex.Extract(ctx, []string{"src/[a"}, Options{Cwd: t.TempDir()})
		assert.Error(t, err)
	})

	t.Run("file too large", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"big.js": "import './x';\n// padding padding padding\n"})
		_, err := NewTreeSitterExtractor(WithMaxFileSize(8)).Extract(ctx, []string{"big.js"}, Options{Cwd: root})
		assert.ErrorIs(t, err, ErrExtraction)
	})

	t.Run("cancelled", func(t *testing.T) {
		root := fixtureProject(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ex.Extract(cctx, []string{"src/index.ts"}, Options{Cwd: root})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExpandGlobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.ts":                "",
		"src/b.css":               "",
		"src/nested/c.jsx":        "",
		"node_modules/x/index.js": "",
	})

	files, err := ExpandGlobs(root, []string{"./src/**/*", "**/*.ts", "  "})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "a.ts"),
		filepath.Join(root, "src", "nested", "c.jsx"),
	}, files)

	files, err = ExpandGlobs(root, []string{filepath.Join(root, "src", "*.ts")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src", "a.ts")}, files)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "src/lib", EscapeGlob("src/lib"))
	assert.Equal(t, `pages/\[id\]/index.tsx`, EscapeGlob("pages/[id]/index.tsx"))
	assert.Equal(t, `a/\{b,c\}/\*\?/\\`, EscapeGlob(`a/{b,c}/*?/\`))

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pages/[id]/index.tsx": "",
		"pages/i/other.tsx":    "",
	})
	files, err := ExpandGlobs(root, []string{EscapeGlob("pages/[id]") + "/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "pages", "[id]", "index.tsx")}, files)

	files, err = ExpandGlobs(root, []string{EscapeGlob(filepath.ToSlash(filepath.Join(root, "pages", "[id]", "index.tsx")))})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "pages", "[id]", "index.tsx")}, files)
}

func keys(table RawTable) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	return out
}
