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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName names the server in spans.
	ServiceName string

	// Limiter throttles API requests. Nil disables limiting.
	Limiter *RateLimiter

	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler

	// Logger receives access logs.
	Logger *slog.Logger
}

// RegisterRoutes registers the /revdep endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/revdep/health       - Health check
//	POST /v1/revdep/resolve      - Import chains from entry points to a target
//	POST /v1/revdep/entry-points - Discovered entry points, optionally counted
//	POST /v1/revdep/files        - Files an entry point reaches
//	POST /v1/revdep/node-modules - Packages an entry point uses
//	POST /v1/revdep/depth        - Deepest import chain per entry point
//	POST /v1/revdep/circular     - Import cycles
//	POST /v1/revdep/invalidate   - Drop cached tables for a project
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	revdep := rg.Group("/revdep")
	{
		revdep.GET("/health", handlers.HandleHealth)

		revdep.POST("/resolve", handlers.HandleResolve)
		revdep.POST("/entry-points", handlers.HandleEntryPoints)
		revdep.POST("/files", handlers.HandleFiles)
		revdep.POST("/node-modules", handlers.HandleNodeModules)
		revdep.POST("/depth", handlers.HandleDepth)
		revdep.POST("/circular", handlers.HandleCircular)

		revdep.POST("/invalidate", handlers.HandleInvalidate)
	}
}

// NewRouter builds the gin engine with tracing, request IDs, access
// logging and rate limiting applied to the API group.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	if opts.ServiceName == "" {
		opts.ServiceName = "revdep"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(RequestID())
	router.Use(AccessLog(opts.Logger))

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(opts.Limiter.Middleware())
	RegisterRoutes(v1, handlers)
	return router
}
