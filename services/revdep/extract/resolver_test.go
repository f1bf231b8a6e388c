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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.ts":                         "",
		"src/a.ts":                             "",
		"src/lib/index.tsx":                    "",
		"src/emitted.ts":                       "",
		"src/data.json":                        "{}",
		"src/pkg/package.json":                 `{"main": "entry.js"}`,
		"src/pkg/entry.js":                     "",
		"node_modules/lodash/index.js":         "",
		"node_modules/lodash/fp.js":            "",
		"node_modules/@scope/ui/package.json":  `{"main": "dist/main.js"}`,
		"node_modules/@scope/ui/dist/main.js":  "",
		"node_modules/types-only/package.json": `{"types": "index.d.ts"}`,
	})
	from := filepath.Join(root, "src", "index.ts")
	r := NewResolver(nil)

	tests := []struct {
		name    string
		request string
		target  string
		kind    Kind
	}{
		{"extensionless relative", "./a", "src/a.ts", KindUser},
		{"exact relative", "./a.ts", "src/a.ts", KindUser},
		{"directory index", "./lib", "src/lib/index.tsx", KindUser},
		{"js specifier for ts source", "./emitted.js", "src/emitted.ts", KindUser},
		{"json", "./data.json", "src/data.json", KindUser},
		{"package.json main", "./pkg", "src/pkg/entry.js", KindUser},
		{"package", "lodash", "node_modules/lodash/index.js", KindNodeModule},
		{"package subpath", "lodash/fp", "node_modules/lodash/fp.js", KindNodeModule},
		{"scoped package", "@scope/ui", "node_modules/@scope/ui/dist/main.js", KindNodeModule},
		{"package without entry", "types-only", "node_modules/types-only", KindNodeModule},
		{"builtin", "fs", "", KindBuiltin},
		{"builtin subpath", "fs/promises", "", KindBuiltin},
		{"node scheme", "node:path", "", KindBuiltin},
		{"missing relative", "./missing", "", KindUnresolved},
		{"missing package", "not-installed", "", KindUnresolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge := r.Resolve(from, tt.request)
			assert.Equal(t, tt.request, edge.Request)
			assert.Equal(t, tt.kind, edge.Kind)
			if tt.target == "" {
				assert.Empty(t, edge.Target)
			} else {
				assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.target)), edge.Target)
			}
		})
	}
}

func TestResolver_LocalFileShadowsBuiltin(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/index.ts": "", "src/fs.ts": ""})

	edge := NewResolver(nil).Resolve(filepath.Join(root, "src", "index.ts"), "./fs")
	assert.Equal(t, KindUser, edge.Kind)
	assert.Equal(t, filepath.Join(root, "src", "fs.ts"), edge.Target)
}

func TestResolver_SelfReferentialMain(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.js":              "",
		"lib/package.json":  `{"main": "."}`,
		"lib/index.js":      "",
		"dot/package.json":  `{"main": "./"}`,
		"dot/index.ts":      "",
		"ping/package.json": `{"main": "../pong"}`,
		"ping/index.js":     "",
		"pong/package.json": `{"main": "../ping"}`,
	})
	from := filepath.Join(root, "a.js")
	r := NewResolver(nil)

	tests := []struct {
		request string
		target  string
	}{
		{"./lib", "lib/index.js"},
		{"./dot", "dot/index.ts"},
		{"./ping", "ping/index.js"},
		{"./pong", "ping/index.js"},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			edge := r.Resolve(from, tt.request)
			assert.Equal(t, KindUser, edge.Kind)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.target)), edge.Target)
		})
	}
}

type staticAliases struct {
	candidates map[string][]string
	baseURL    string
}

func (s staticAliases) Candidates(request string) []string { return s.candidates[request] }
func (s staticAliases) BaseURL() string { return s.baseURL }

func TestResolver_Aliases(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.ts":                "",
		"src/components/Nav.tsx":      "",
		"src/shared/util.ts":          "",
		"node_modules/react/index.js": "",
	})
	aliases := staticAliases{
		candidates: map[string][]string{
			"@/components/Nav": {filepath.Join(root, "missing", "Nav"), filepath.Join(root, "src", "components", "Nav")},
		},
		baseURL: filepath.Join(root, "src"),
	}
	r := NewResolver(aliases)
	from := filepath.Join(root, "src", "index.ts")

	edge := r.Resolve(from, "@/components/Nav")
	assert.Equal(t, KindUser, edge.Kind)
	assert.Equal(t, filepath.Join(root, "src", "components", "Nav.tsx"), edge.Target)

	edge = r.Resolve(from, "shared/util")
	assert.Equal(t, KindUser, edge.Kind)
	assert.Equal(t, filepath.Join(root, "src", "shared", "util.ts"), edge.Target)

	edge = r.Resolve(from, "react")
	assert.Equal(t, KindNodeModule, edge.Kind)
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("path"))
	assert.True(t, IsBuiltin("node:test"))
	assert.True(t, IsBuiltin("stream/web"))
	assert.False(t, IsBuiltin("lodash"))
	assert.False(t, IsBuiltin("paths"))
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "lodash", PackageName("lodash"))
	assert.Equal(t, "lodash", PackageName("lodash/fp/map"))
	assert.Equal(t, "@scope/ui", PackageName("@scope/ui"))
	assert.Equal(t, "@scope/ui", PackageName("@scope/ui/button"))
	assert.Equal(t, "@scope", PackageName("@scope"))
}
