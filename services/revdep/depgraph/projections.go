// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"path/filepath"
	"slices"
)

// Reachable returns the sub-table of modules transitively imported by
// entryPoint, entryPoint included.
//
// A table extracted for a single entry point is already reachable-only;
// Reachable lets callers reuse a project-wide table instead of extracting
// again. Edges are copied as-is, so the sub-table shares no slices with
// table.
//
// Returns a *GraphConsistencyError if a followed edge targets a module
// missing from table.
func Reachable(table DependencyTable, entryPoint ModuleID, includeExternal bool) (DependencyTable, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if !table.Has(entryPoint) {
		return nil, &GraphConsistencyError{ID: entryPoint, EntryPoint: entryPoint}
	}

	out := make(DependencyTable)
	queue := []ModuleID{entryPoint}
	out[entryPoint] = slices.Clone(table[entryPoint])

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, edge := range table[id] {
			if !edge.Resolved() {
				continue
			}
			if !includeExternal && (edge.External || IsUnderNodeModules(edge.Target)) {
				continue
			}
			if out.Has(edge.Target) {
				continue
			}
			edges, ok := table[edge.Target]
			if !ok {
				return nil, &GraphConsistencyError{ID: edge.Target, ImportedBy: id, EntryPoint: entryPoint}
			}
			out[edge.Target] = slices.Clone(edges)
			queue = append(queue, edge.Target)
		}
	}
	return out, nil
}

// Files returns the project files of table, sorted. Package-name keys
// added in external mode are not files and are left out.
func Files(table DependencyTable) []ModuleID {
	files := make([]ModuleID, 0, len(table))
	for _, id := range table.Keys() {
		if isPackageID(id) || IsUnderNodeModules(id) {
			continue
		}
		files = append(files, id)
	}
	return files
}

// NodeModules returns the distinct raw import specifiers of every edge in
// table that points at a third-party package, sorted.
//
// The table must be built with external packages included; otherwise
// those edges were dropped during normalization and the result is empty.
func NodeModules(table DependencyTable) []string {
	set := make(map[string]struct{})
	for _, edges := range table {
		for _, edge := range edges {
			if edge.Request == "" || !edge.Resolved() {
				continue
			}
			if edge.External || IsUnderNodeModules(edge.Target) {
				set[edge.Request] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for req := range set {
		out = append(out, req)
	}
	slices.Sort(out)
	return out
}

// ReferencedIDs returns the set of every resolved edge target in table.
func ReferencedIDs(table DependencyTable) map[ModuleID]struct{} {
	refs := make(map[ModuleID]struct{})
	for _, edges := range table {
		for _, edge := range edges {
			if edge.Resolved() {
				refs[edge.Target] = struct{}{}
			}
		}
	}
	return refs
}

func isPackageID(id ModuleID) bool {
	return !filepath.IsAbs(string(id))
}
