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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("revdep.depgraph")
	meter  = otel.Meter("revdep.depgraph")
)

var (
	buildLatency   metric.Float64Histogram
	buildTotal     metric.Int64Counter
	verticesBuilt  metric.Int64Histogram
	edgesWalked    metric.Int64Histogram
	resolveLatency metric.Float64Histogram
	pathsResolved  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"revdep_graph_build_duration_seconds",
			metric.WithDescription("Duration of per-entry-point graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"revdep_graph_build_total",
			metric.WithDescription("Total number of graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verticesBuilt, err = meter.Int64Histogram(
			"revdep_graph_vertices",
			metric.WithDescription("Distinct modules reached per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesWalked, err = meter.Int64Histogram(
			"revdep_graph_edges",
			metric.WithDescription("Import edges walked per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveLatency, err = meter.Float64Histogram(
			"revdep_resolve_duration_seconds",
			metric.WithDescription("Duration of path enumeration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pathsResolved, err = meter.Int64Histogram(
			"revdep_resolve_paths",
			metric.WithDescription("Paths returned per resolution"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, vertexCount, edgeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		verticesBuilt.Record(ctx, int64(vertexCount))
		edgesWalked.Record(ctx, int64(edgeCount))
	}
}

// recordResolveMetrics records metrics for a path enumeration.
func recordResolveMetrics(ctx context.Context, mode Mode, duration time.Duration, pathCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("mode", mode.String()))
	resolveLatency.Record(ctx, duration.Seconds(), attrs)
	pathsResolved.Record(ctx, int64(pathCount), attrs)
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, entryPoint, target ModuleID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "depgraph.Build",
		trace.WithAttributes(
			attribute.String("revdep.entry_point", string(entryPoint)),
			attribute.String("revdep.target", string(target)),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, vertexCount, edgeCount, cycleCount int, targetFound bool) {
	span.SetAttributes(
		attribute.Int("revdep.vertex_count", vertexCount),
		attribute.Int("revdep.edge_count", edgeCount),
		attribute.Int("revdep.cycle_count", cycleCount),
		attribute.Bool("revdep.target_found", targetFound),
	)
}

// startResolveSpan creates a span for path enumeration.
func startResolveSpan(ctx context.Context, entryPoint, target ModuleID, mode Mode) (context.Context, trace.Span) {
	return tracer.Start(ctx, "depgraph.ResolvePaths",
		trace.WithAttributes(
			attribute.String("revdep.entry_point", string(entryPoint)),
			attribute.String("revdep.target", string(target)),
			attribute.String("revdep.mode", mode.String()),
		),
	)
}

// setResolveSpanResult sets the result attributes on a resolve span.
func setResolveSpanResult(span trace.Span, pathCount int, truncated bool) {
	span.SetAttributes(
		attribute.Int("revdep.path_count", pathCount),
		attribute.Bool("revdep.truncated", truncated),
	)
}
