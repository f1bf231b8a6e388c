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
	"github.com/AleutianAI/revdep/services/revdep/depgraph"
)

// Project holds the settings shared by every operation.
type Project struct {
	// Cwd is the project root. Relative entry points, targets and globs
	// are resolved against it. Empty means the process working directory.
	Cwd string `json:"cwd" yaml:"cwd"`

	// AliasConfig is a tsconfig/jsconfig or bundler alias file.
	AliasConfig string `json:"alias_config,omitempty" yaml:"alias_config,omitempty"`

	// Include and Exclude filter discovered entry points.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// IncludeExternal treats third-party packages as terminal modules.
	IncludeExternal bool `json:"include_external,omitempty" yaml:"include_external,omitempty"`

	// IgnoreTypeImports drops type-only imports.
	IgnoreTypeImports bool `json:"ignore_type_imports,omitempty" yaml:"ignore_type_imports,omitempty"`
}

// ResolveRequest asks through which chains entry points reach Target.
type ResolveRequest struct {
	Project

	// Target is a file path (relative to Cwd or absolute) or, with
	// IncludeExternal, a package name.
	Target string `json:"target" yaml:"target"`

	// EntryPoints are file paths or globs. Empty discovers them.
	EntryPoints []string `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`

	// All enumerates every chain instead of the first one.
	All bool `json:"all,omitempty" yaml:"all,omitempty"`

	// MaxPaths caps chains per entry point in All mode. Zero is uncapped.
	MaxPaths int `json:"max_paths,omitempty" yaml:"max_paths,omitempty"`

	// NotTraverse prunes edges into matching modules.
	NotTraverse []string `json:"not_traverse,omitempty" yaml:"not_traverse,omitempty"`
}

// EntryResult holds the chains found from one entry point.
type EntryResult struct {
	EntryPoint depgraph.ModuleID         `json:"entry_point" yaml:"entry_point"`
	Paths      []depgraph.ResolutionPath `json:"paths" yaml:"paths"`
	Truncated  bool                      `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// ResolveResult is the outcome of Resolve. Results is aligned with
// EntryPoints.
type ResolveResult struct {
	Target      depgraph.ModuleID   `json:"target" yaml:"target"`
	EntryPoints []depgraph.ModuleID `json:"entry_points" yaml:"entry_points"`
	Results     []EntryResult       `json:"results" yaml:"results"`

	// Discovered is true when entry points were not given and were found
	// by discovery.
	Discovered bool `json:"discovered" yaml:"discovered"`
}

// TotalPaths returns the number of chains across all entry points.
func (r *ResolveResult) TotalPaths() int {
	n := 0
	for _, er := range r.Results {
		n += len(er.Paths)
	}
	return n
}

// HasResults reports whether any entry point reaches the target.
func (r *ResolveResult) HasResults() bool {
	return r.TotalPaths() > 0
}

// Matching returns only the entry results with at least one chain.
func (r *ResolveResult) Matching() []EntryResult {
	var out []EntryResult
	for _, er := range r.Results {
		if len(er.Paths) > 0 {
			out = append(out, er)
		}
	}
	return out
}

// EntryPointsRequest asks for the project's entry points.
type EntryPointsRequest struct {
	Project

	// Count also reports how many modules each entry point reaches.
	Count bool `json:"count,omitempty" yaml:"count,omitempty"`
}

// EntryPoint is one discovered entry point.
type EntryPoint struct {
	ID depgraph.ModuleID `json:"id" yaml:"id"`

	// Dependencies is the number of modules reachable from ID, ID
	// included. Only set when counting was requested.
	Dependencies int `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// EntryPointsResult is the outcome of EntryPoints.
type EntryPointsResult struct {
	EntryPoints []EntryPoint `json:"entry_points" yaml:"entry_points"`
}

// IDs returns the entry point ids in order.
func (r *EntryPointsResult) IDs() []depgraph.ModuleID {
	out := make([]depgraph.ModuleID, len(r.EntryPoints))
	for i, ep := range r.EntryPoints {
		out[i] = ep.ID
	}
	return out
}

// EntryRequest targets a single entry point.
type EntryRequest struct {
	Project

	EntryPoint string `json:"entry_point" yaml:"entry_point"`
}

// GraphRequest runs a graph diagnostic over one or more entry points.
type GraphRequest struct {
	Project

	// EntryPoints are file paths or globs. Empty discovers them.
	EntryPoints []string `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`

	NotTraverse []string `json:"not_traverse,omitempty" yaml:"not_traverse,omitempty"`
}

// DepthResult is the longest import chain from one entry point.
type DepthResult struct {
	EntryPoint depgraph.ModuleID       `json:"entry_point" yaml:"entry_point"`
	Depth      int                     `json:"depth" yaml:"depth"`
	Path       depgraph.ResolutionPath `json:"path" yaml:"path"`
}
