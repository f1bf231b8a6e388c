// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/AleutianAI/revdep/services/revdep"
)

// ServiceVersion is reported by the health endpoint.
var ServiceVersion = "dev"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /v1/revdep/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ProjectBody is the project part shared by every request body.
type ProjectBody struct {
	// Cwd is the absolute project root on the server's filesystem.
	Cwd string `json:"cwd" binding:"required"`

	AliasConfig       string   `json:"alias_config,omitempty"`
	Include           []string `json:"include,omitempty" binding:"max=256"`
	Exclude           []string `json:"exclude,omitempty" binding:"max=256"`
	IncludeExternal   bool     `json:"include_external,omitempty"`
	IgnoreTypeImports bool     `json:"ignore_type_imports,omitempty"`
}

func (p ProjectBody) project() revdep.Project {
	return revdep.Project{
		Cwd:               p.Cwd,
		AliasConfig:       p.AliasConfig,
		Include:           p.Include,
		Exclude:           p.Exclude,
		IncludeExternal:   p.IncludeExternal,
		IgnoreTypeImports: p.IgnoreTypeImports,
	}
}

// ResolveBody is the body of POST /v1/revdep/resolve.
type ResolveBody struct {
	ProjectBody

	Target      string   `json:"target" binding:"required"`
	EntryPoints []string `json:"entry_points,omitempty" binding:"max=1024"`
	All         bool     `json:"all,omitempty"`
	MaxPaths    int      `json:"max_paths,omitempty" binding:"gte=0"`
	NotTraverse []string `json:"not_traverse,omitempty" binding:"max=256"`
}

// EntryPointsBody is the body of POST /v1/revdep/entry-points.
type EntryPointsBody struct {
	ProjectBody

	Count bool `json:"count,omitempty"`
}

// EntryBody is the body of POST /v1/revdep/files and /node-modules.
type EntryBody struct {
	ProjectBody

	EntryPoint string `json:"entry_point" binding:"required"`
}

// GraphBody is the body of POST /v1/revdep/depth and /circular.
type GraphBody struct {
	ProjectBody

	EntryPoints []string `json:"entry_points,omitempty" binding:"max=1024"`
	NotTraverse []string `json:"not_traverse,omitempty" binding:"max=256"`
}

func (b GraphBody) request() revdep.GraphRequest {
	return revdep.GraphRequest{
		Project:     b.project(),
		EntryPoints: b.EntryPoints,
		NotTraverse: b.NotTraverse,
	}
}

// InvalidateBody is the body of POST /v1/revdep/invalidate.
type InvalidateBody struct {
	Cwd string `json:"cwd" binding:"required"`
}

// FilesResponse lists the files an entry point reaches.
type FilesResponse struct {
	EntryPoint string   `json:"entry_point"`
	Files      []string `json:"files"`
}

// NodeModulesResponse lists the packages an entry point uses.
type NodeModulesResponse struct {
	EntryPoint  string   `json:"entry_point"`
	NodeModules []string `json:"node_modules"`
}

// CircularResponse lists import cycles.
type CircularResponse struct {
	Cycles [][]string `json:"cycles"`
}

// DepthResponse lists the deepest chain per entry point.
type DepthResponse struct {
	Results []revdep.DepthResult `json:"results"`
}
