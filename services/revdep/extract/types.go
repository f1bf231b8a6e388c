// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns JavaScript and TypeScript sources into a raw
// dependency table.
//
// The Extractor contract is the boundary between source analysis and the
// graph engine: it receives entry globs and returns, for every analyzed
// file, the ordered list of import specifiers together with where each one
// resolved to. Normalization into a depgraph.DependencyTable happens in
// the table package.
//
// The shipped backend parses sources with tree-sitter and resolves
// specifiers against the filesystem, a tsconfig/jsconfig "paths" map, or a
// bundler-style alias map.
package extract

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind classifies what an import specifier resolved to.
type Kind int

const (
	// KindUnresolved means no file, package or builtin matched.
	KindUnresolved Kind = iota

	// KindUser is a project source file.
	KindUser

	// KindNodeModule is a file or package directory inside node_modules.
	KindNodeModule

	// KindBuiltin is a platform module such as "fs" or "node:path".
	KindBuiltin
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindNodeModule:
		return "node_module"
	case KindBuiltin:
		return "builtin"
	default:
		return "unresolved"
	}
}

// RawEdge is one import of a file as seen by the extractor.
type RawEdge struct {
	// Target is the absolute resolved path. Empty for builtins and
	// unresolved specifiers.
	Target string `json:"target,omitempty"`

	// Request is the specifier exactly as written.
	Request string `json:"request"`

	// Kind is the resolution outcome.
	Kind Kind `json:"kind"`

	// TypeOnly marks `import type` and `export type ... from` statements.
	TypeOnly bool `json:"type_only,omitempty"`
}

// RawTable maps absolute file paths to their imports. A nil value means
// the file is known but was not analyzed, which is the case for every
// node_modules file.
type RawTable map[string][]RawEdge

// Options configures one extraction.
type Options struct {
	// Cwd is the project root. Globs are relative to it.
	Cwd string

	// AliasConfig is a tsconfig/jsconfig file or a bundler alias map
	// (YAML or JSON). Empty auto-detects tsconfig.json/jsconfig.json in Cwd.
	AliasConfig string

	// IgnoreTypeImports drops type-only imports and re-exports.
	IgnoreTypeImports bool
}

// Extractor produces a raw table from entry globs.
//
// Implementations must resolve relative and aliased specifiers to
// absolute paths when possible, mark unresolvable specifiers, follow
// resolved project files transitively, and leave node_modules files
// unanalyzed.
type Extractor interface {
	Extract(ctx context.Context, globs []string, opts Options) (RawTable, error)
}

// SourceExtensions are the extensions the parser understands, in the order
// used when resolving extensionless specifiers.
var SourceExtensions = []string{".ts", ".tsx", ".mjs", ".js", ".jsx", ".cjs", ".mts", ".cts"}

// resolveExtensions adds .json to the lookup order for resolution only.
var resolveExtensions = append(append([]string{}, SourceExtensions...), ".json")

// IsSourceFile reports whether path has a parseable extension.
func IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
