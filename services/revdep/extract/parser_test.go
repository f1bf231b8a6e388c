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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requests(imports []Import) []string {
	out := make([]string, 0, len(imports))
	for _, imp := range imports {
		out = append(out, imp.Request)
	}
	return out
}

func TestParseImports_JavaScript(t *testing.T) {
	src := `import React from "react";
import "./side-effect";
export { x } from './reexport';
export * from "./star";
const a = require("./required");
const name = "./computed";
const b = require(name);
async function load() {
  return import("./lazy");
}
`
	imports, err := ParseImports(context.Background(), "/p/index.js", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"react", "./side-effect", "./reexport", "./star", "./required", "./lazy"}, requests(imports))
	assert.Equal(t, FormImport, imports[0].Form)
	assert.Equal(t, FormReexport, imports[2].Form)
	assert.Equal(t, FormRequire, imports[4].Form)
	assert.Equal(t, FormDynamic, imports[5].Form)
	assert.Equal(t, 1, imports[0].Line)
	assert.Equal(t, 9, imports[5].Line)
}

func TestParseImports_TypeScript(t *testing.T) {
	src := `import type { Props } from "./types";
import { helper } from "./helper";
import fs = require("fs");
export const x: number = 1;
`
	imports, err := ParseImports(context.Background(), "/p/index.ts", []byte(src))
	require.NoError(t, err)

	require.Equal(t, []string{"./types", "./helper", "fs"}, requests(imports))
	assert.True(t, imports[0].TypeOnly)
	assert.False(t, imports[1].TypeOnly)
	assert.Equal(t, FormRequire, imports[2].Form)
}

func TestParseImports_TSX(t *testing.T) {
	src := `import { Button } from "./Button";
export function App() {
  return <Button label="hi" />;
}
`
	imports, err := ParseImports(context.Background(), "/p/App.tsx", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"./Button"}, requests(imports))
}

func TestParseImports_NoImports(t *testing.T) {
	imports, err := ParseImports(context.Background(), "/p/empty.js", []byte("const x = 1;\n"))
	require.NoError(t, err)
	assert.NotNil(t, imports)
	assert.Empty(t, imports)
}

func TestParseImports_Latin1Source(t *testing.T) {
	src := []byte("// caf\xe9 r\xe9sum\xe9\nimport x from './b';\nconst y = require('./c');\n")
	imports, err := ParseImports(context.Background(), "/p/legacy.js", src)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "./b", imports[0].Request)
	assert.Equal(t, "./c", imports[1].Request)
}

func TestParseImports_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParseImports(ctx, "/p/a.js", []byte(`import "./b";`))
	assert.ErrorIs(t, err, context.Canceled)
}
