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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/revdep/services/revdep"
	"github.com/AleutianAI/revdep/services/revdep/depgraph"
	"github.com/AleutianAI/revdep/services/revdep/discovery"
	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/pathmatch"
	"github.com/AleutianAI/revdep/services/revdep/telemetry"
)

var (
	// errRelativePath is returned for a project root that is not absolute.
	errRelativePath = errors.New("cwd must be an absolute path")

	// errRootNotAllowed is returned for a project root outside the
	// configured allow list.
	errRootNotAllowed = errors.New("cwd is outside the allowed roots")
)

// Engine is the subset of *revdep.Engine the handlers use.
type Engine interface {
	Resolve(ctx context.Context, req revdep.ResolveRequest) (*revdep.ResolveResult, error)
	EntryPoints(ctx context.Context, req revdep.EntryPointsRequest) (*revdep.EntryPointsResult, error)
	Files(ctx context.Context, req revdep.EntryRequest) ([]depgraph.ModuleID, error)
	NodeModules(ctx context.Context, req revdep.EntryRequest) ([]string, error)
	Depth(ctx context.Context, req revdep.GraphRequest) ([]revdep.DepthResult, error)
	Circular(ctx context.Context, req revdep.GraphRequest) ([]depgraph.ResolutionPath, error)
	InvalidateRoot(ctx context.Context, root string) error
}

// Handlers serves the revdep HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	engine       Engine
	allowedRoots []string
	logger       *slog.Logger
}

// NewHandlers creates handlers over engine. When allowedRoots is
// non-empty, request roots must lie inside one of them.
func NewHandlers(engine Engine, allowedRoots []string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	roots := make([]string, 0, len(allowedRoots))
	for _, r := range allowedRoots {
		if abs, err := filepath.Abs(r); err == nil {
			roots = append(roots, abs)
		}
	}
	return &Handlers{engine: engine, allowedRoots: roots, logger: logger}
}

// requestLogger returns a logger tagged with the request and trace IDs.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger)
	return logger.With(slog.String("request_id", getOrCreateRequestID(c)), slog.String("handler", handler))
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header(RequestIDHeader, requestID)
	return requestID
}

// checkRoot validates the project root of a request.
func (h *Handlers) checkRoot(cwd string) error {
	if !filepath.IsAbs(cwd) {
		return errRelativePath
	}
	if len(h.allowedRoots) == 0 {
		return nil
	}
	clean := filepath.Clean(cwd)
	for _, root := range h.allowedRoots {
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return nil
		}
	}
	return errRootNotAllowed
}

// bind decodes the JSON body into req and validates its project root.
// It writes the error response and returns false on failure.
func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, req any, cwd func() string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	if err := h.checkRoot(cwd()); err != nil {
		status := http.StatusBadRequest
		code := "INVALID_PATH"
		if errors.Is(err, errRootNotAllowed) {
			status = http.StatusForbidden
			code = "ROOT_NOT_ALLOWED"
		}
		logger.Warn("Rejected project root", slog.String("cwd", cwd()), slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return false
	}
	return true
}

// writeError maps an engine error to a status code and error code.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	var consistency *depgraph.GraphConsistencyError
	switch {
	case errors.Is(err, revdep.ErrNoTarget), errors.Is(err, revdep.ErrNoEntryPoint):
		status, code = http.StatusBadRequest, "MISSING_FIELD"
	case errors.Is(err, revdep.ErrEntryPointNotFound):
		status, code = http.StatusNotFound, "ENTRY_POINT_NOT_FOUND"
	case errors.Is(err, pathmatch.ErrInvalidPattern):
		status, code = http.StatusBadRequest, "INVALID_PATTERN"
	case errors.Is(err, extract.ErrInvalidAliasConfig):
		status, code = http.StatusUnprocessableEntity, "INVALID_ALIAS_CONFIG"
	case errors.Is(err, discovery.ErrNotDirectory):
		status, code = http.StatusUnprocessableEntity, "NOT_A_DIRECTORY"
	case errors.Is(err, extract.ErrFilesystem):
		status, code = http.StatusUnprocessableEntity, "FILESYSTEM_ERROR"
	case errors.Is(err, extract.ErrExtraction):
		status, code = http.StatusUnprocessableEntity, "EXTRACTION_FAILED"
	case errors.As(err, &consistency):
		code = "GRAPH_INCONSISTENT"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		status, code = 499, "CANCELED"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", slog.String("code", code), slog.String("error", err.Error()))
	} else {
		logger.Warn("Request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// HandleHealth handles GET /v1/revdep/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleResolve handles POST /v1/revdep/resolve.
//
// Description:
//
//	Finds the import chains from the requested (or discovered) entry
//	points to the target. An entry point that does not reach the target
//	has an empty path list; that is a successful response.
//
// Response:
//
//	200 OK: revdep.ResolveResult
//	400 Bad Request: Validation error
//	404 Not Found: Entry point not in the project
//	422 Unprocessable Entity: Project could not be read or parsed
func (h *Handlers) HandleResolve(c *gin.Context) {
	logger := h.requestLogger(c, "HandleResolve")

	var req ResolveBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	logger.Info("Resolving", slog.String("cwd", req.Cwd), slog.String("target", req.Target))
	res, err := h.engine.Resolve(c.Request.Context(), revdep.ResolveRequest{
		Project:     req.project(),
		Target:      req.Target,
		EntryPoints: req.EntryPoints,
		All:         req.All,
		MaxPaths:    req.MaxPaths,
		NotTraverse: req.NotTraverse,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Resolved",
		slog.Int("entry_points", len(res.EntryPoints)),
		slog.Int("paths", res.TotalPaths()))
	c.JSON(http.StatusOK, res)
}

// HandleEntryPoints handles POST /v1/revdep/entry-points.
func (h *Handlers) HandleEntryPoints(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEntryPoints")

	var req EntryPointsBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	res, err := h.engine.EntryPoints(c.Request.Context(), revdep.EntryPointsRequest{
		Project: req.project(),
		Count:   req.Count,
	})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleFiles handles POST /v1/revdep/files.
func (h *Handlers) HandleFiles(c *gin.Context) {
	logger := h.requestLogger(c, "HandleFiles")

	var req EntryBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	files, err := h.engine.Files(c.Request.Context(), revdep.EntryRequest{Project: req.project(), EntryPoint: req.EntryPoint})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = string(f)
	}
	c.JSON(http.StatusOK, FilesResponse{EntryPoint: req.EntryPoint, Files: out})
}

// HandleNodeModules handles POST /v1/revdep/node-modules.
func (h *Handlers) HandleNodeModules(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNodeModules")

	var req EntryBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	mods, err := h.engine.NodeModules(c.Request.Context(), revdep.EntryRequest{Project: req.project(), EntryPoint: req.EntryPoint})
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if mods == nil {
		mods = []string{}
	}
	c.JSON(http.StatusOK, NodeModulesResponse{EntryPoint: req.EntryPoint, NodeModules: mods})
}

// HandleDepth handles POST /v1/revdep/depth.
func (h *Handlers) HandleDepth(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDepth")

	var req GraphBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	res, err := h.engine.Depth(c.Request.Context(), req.request())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, DepthResponse{Results: res})
}

// HandleCircular handles POST /v1/revdep/circular.
func (h *Handlers) HandleCircular(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCircular")

	var req GraphBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	cycles, err := h.engine.Circular(c.Request.Context(), req.request())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	out := make([][]string, len(cycles))
	for i, cycle := range cycles {
		out[i] = make([]string, len(cycle))
		for j, id := range cycle {
			out[i][j] = string(id)
		}
	}
	c.JSON(http.StatusOK, CircularResponse{Cycles: out})
}

// HandleInvalidate handles POST /v1/revdep/invalidate. It drops every
// cached table for the project so the next request re-reads the sources.
func (h *Handlers) HandleInvalidate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleInvalidate")

	var req InvalidateBody
	if !h.bind(c, logger, &req, func() string { return req.Cwd }) {
		return
	}

	if err := h.engine.InvalidateRoot(c.Request.Context(), req.Cwd); err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("Cache invalidated", slog.String("cwd", req.Cwd))
	c.Status(http.StatusNoContent)
}
