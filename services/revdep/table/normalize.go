// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package table converts raw extractor output into the dependency table the
// graph builder consumes.
//
// The raw table describes files on disk: every resolved import carries an
// absolute path, including files inside node_modules and platform builtins.
// The normalized table describes the project: node_modules files are not
// modules, builtins are not edges, and third-party packages are either
// dropped or collapsed into terminal package-name modules.
package table

import (
	"path/filepath"
	"strings"

	"github.com/AleutianAI/revdep/services/revdep/depgraph"
	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// Options configures normalization.
type Options struct {
	// IncludeExternal keeps edges into node_modules, rewritten to the
	// package name, and adds a terminal table entry per package.
	IncludeExternal bool
}

// Normalize builds a DependencyTable from raw extractor output.
//
// Description:
//
//	Keys under node_modules are dropped. Builtin edges are dropped.
//	Unresolved edges are kept with an empty target so their request stays
//	visible. Edges into node_modules are dropped unless IncludeExternal is
//	set, in which case the target becomes the package name ("lodash",
//	"@scope/pkg"), the edge is marked External, and the package gets an
//	analyzed entry with no edges. Edge order follows the raw table.
//
// Inputs:
//
//	raw - Extractor output. Nil yields an empty table.
//	opts - External package handling.
//
// Outputs:
//
//	depgraph.DependencyTable - Never nil. A raw nil (not analyzed) entry
//	stays nil.
//
// Thread Safety: Safe for concurrent use; raw is not modified.
func Normalize(raw extract.RawTable, opts Options) depgraph.DependencyTable {
	out := make(depgraph.DependencyTable, len(raw))

	for file, rawEdges := range raw {
		id := depgraph.ModuleID(filepath.Clean(file))
		if depgraph.IsUnderNodeModules(id) {
			continue
		}
		if rawEdges == nil {
			if _, ok := out[id]; !ok {
				out[id] = nil
			}
			continue
		}

		edges := make([]depgraph.DependencyEdge, 0, len(rawEdges))
		for _, re := range rawEdges {
			edge, ok := convertEdge(re, opts)
			if !ok {
				continue
			}
			edges = append(edges, edge)
			if edge.External {
				if _, exists := out[edge.Target]; !exists {
					out[edge.Target] = []depgraph.DependencyEdge{}
				}
			}
		}
		out[id] = edges
	}
	return out
}

func convertEdge(re extract.RawEdge, opts Options) (depgraph.DependencyEdge, bool) {
	switch re.Kind {
	case extract.KindBuiltin:
		return depgraph.DependencyEdge{}, false
	case extract.KindUnresolved:
		return depgraph.DependencyEdge{Request: re.Request}, true
	}

	target := depgraph.ModuleID(filepath.Clean(re.Target))
	if re.Kind == extract.KindNodeModule || depgraph.IsUnderNodeModules(target) {
		if !opts.IncludeExternal {
			return depgraph.DependencyEdge{}, false
		}
		pkg := PackageOf(target)
		if pkg == "" {
			return depgraph.DependencyEdge{}, false
		}
		return depgraph.DependencyEdge{Target: pkg, Request: re.Request, External: true}, true
	}
	return depgraph.DependencyEdge{Target: target, Request: re.Request}, true
}

// PackageOf returns the package a node_modules path belongs to, taken
// from the segments after the last node_modules directory:
//
//	/app/node_modules/lodash/fp/map.js          -> lodash
//	/app/node_modules/@scope/pkg/dist/index.js  -> @scope/pkg
//	/app/node_modules/a/node_modules/b/index.js -> b
//
// Returns "" for a path that is not under node_modules.
func PackageOf(target depgraph.ModuleID) depgraph.ModuleID {
	s := filepath.ToSlash(string(target))
	const marker = "node_modules/"
	i := strings.LastIndex(s, marker)
	if i < 0 || (i > 0 && s[i-1] != '/') {
		return ""
	}
	rest := s[i+len(marker):]
	if rest == "" {
		return ""
	}
	return depgraph.ModuleID(extract.PackageName(rest))
}

// Summary counts what a table holds. Used for logging and the
// entry-points report.
type Summary struct {
	Modules  int `json:"modules" yaml:"modules"`
	Packages int `json:"packages" yaml:"packages"`
	Edges    int `json:"edges" yaml:"edges"`
	Pending  int `json:"pending" yaml:"pending"`
}

// Summarize counts modules, package entries, edges and not-analyzed
// modules in t.
func Summarize(t depgraph.DependencyTable) Summary {
	var s Summary
	for id, edges := range t {
		switch {
		case !filepath.IsAbs(string(id)):
			s.Packages++
		case edges == nil:
			s.Pending++
		default:
			s.Modules++
		}
		s.Edges += len(edges)
	}
	return s
}
