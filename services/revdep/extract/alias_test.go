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
	"github.com/stretchr/testify/require"
)

func TestLoadTSConfig_PathsAndBaseURL(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"tsconfig.json": `{
  // comments and trailing commas are accepted
  "compilerOptions": {
    "baseUrl": ".",
    "paths":   {
      "@/*":         ["src/*"],
      "@app/config": ["src/config/index.ts"],
      "@app/*":      ["src/app/*", "legacy/*"],
    },
  },
}`,
	})

	aliases, err := LoadTSConfig(filepath.Join(root, "tsconfig.json"))
	require.NoError(t, err)

	assert.Equal(t, root, aliases.BaseURL())
	assert.Equal(t, []string{filepath.Join(root, "src", "utils", "format")}, aliases.Candidates("@/utils/format"))
	assert.Equal(t, []string{filepath.Join(root, "src", "config", "index.ts")}, aliases.Candidates("@app/config"))
	assert.Equal(t, []string{
		filepath.Join(root, "src", "app", "store"),
		filepath.Join(root, "legacy", "store"),
	}, aliases.Candidates("@app/store"))
	assert.Nil(t, aliases.Candidates("lodash"))
}

func TestLoadTSConfig_Extends(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"configs/base.json": `{
  "compilerOptions": {
    "baseUrl": "..",
    "paths":   {"~/*": ["shared/*"]}
  }
}`,
		"packages/web/tsconfig.json": `{
  "extends":         "../../configs/base",
  "compilerOptions": {"paths": {"#/*": ["./src/*"]}}
}`,
	})

	aliases, err := LoadTSConfig(filepath.Join(root, "packages", "web", "tsconfig.json"))
	require.NoError(t, err)

	// baseUrl comes from the base config; paths are replaced by the child
	// and resolved against the inherited baseUrl.
	assert.Equal(t, root, aliases.BaseURL())
	assert.Nil(t, aliases.Candidates("~/x"))
	assert.Equal(t, []string{filepath.Join(root, "src", "x")}, aliases.Candidates("#/x"))
}

func TestLoadTSConfig_PathsWithoutBaseURL(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/tsconfig.json": `{"compilerOptions": {"paths": {"@/*": ["./src/*"]}}}`,
	})

	aliases, err := LoadTSConfig(filepath.Join(root, "app", "tsconfig.json"))
	require.NoError(t, err)
	assert.Empty(t, aliases.BaseURL())
	assert.Equal(t, []string{filepath.Join(root, "app", "src", "x")}, aliases.Candidates("@/x"))
}

func TestLoadTSConfig_Errors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"tsconfig.json": `{"compilerOptions": [}`})

	_, err := LoadTSConfig(filepath.Join(root, "tsconfig.json"))
	assert.ErrorIs(t, err, ErrInvalidAliasConfig)

	_, err = LoadTSConfig(filepath.Join(root, "missing.json"))
	assert.ErrorIs(t, err, ErrFilesystem)
}

func TestLoadBundlerAliases(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"aliases.yaml": `resolve:
  alias:
    "@":           ./src
    "@components": ./src/components
    "utils$":      ./src/utils/index.ts
`,
	})

	aliases, err := LoadBundlerAliases(filepath.Join(root, "aliases.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "src", "components", "Nav")}, aliases.Candidates("@components/Nav"))
	assert.Equal(t, []string{filepath.Join(root, "src", "lib", "x")}, aliases.Candidates("@/lib/x"))
	assert.Equal(t, []string{filepath.Join(root, "src", "utils", "index.ts")}, aliases.Candidates("utils"))
	assert.Nil(t, aliases.Candidates("utils/other"))
	assert.Nil(t, aliases.Candidates("@scope/pkg"))
	assert.Empty(t, aliases.BaseURL())
}

func TestLoadBundlerAliases_RejectsNonString(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"aliases.json": `{"alias": {"@": ["src"]}}`})

	_, err := LoadBundlerAliases(filepath.Join(root, "aliases.json"))
	assert.ErrorIs(t, err, ErrInvalidAliasConfig)
}

func TestLoadAliasConfig(t *testing.T) {
	t.Run("no config", func(t *testing.T) {
		aliases, err := LoadAliasConfig(t.TempDir(), "")
		require.NoError(t, err)
		assert.Nil(t, aliases)
	})

	t.Run("detects jsconfig", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"jsconfig.json": `{"compilerOptions": {"baseUrl": "src"}}`})

		aliases, err := LoadAliasConfig(root, "")
		require.NoError(t, err)
		require.NotNil(t, aliases)
		assert.Equal(t, filepath.Join(root, "src"), aliases.BaseURL())
	})

	t.Run("explicit bundler map", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"build/alias.json": `{"@": "../src"}`})

		aliases, err := LoadAliasConfig(root, "build/alias.json")
		require.NoError(t, err)
		_, ok := aliases.(*BundlerAliases)
		assert.True(t, ok)
		assert.Equal(t, []string{filepath.Join(root, "src", "a")}, aliases.Candidates("@/a"))
	})

	t.Run("failed load is a nil interface", func(t *testing.T) {
		aliases, err := LoadAliasConfig(t.TempDir(), "tsconfig.base.json")
		assert.Error(t, err)
		assert.True(t, aliases == nil)
	})
}
