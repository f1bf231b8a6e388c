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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("revdep.extract")
	meter  = otel.Meter("revdep.extract")
)

var (
	extractLatency metric.Float64Histogram
	extractTotal   metric.Int64Counter
	filesExtracted metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"revdep_extract_duration_seconds",
			metric.WithDescription("Duration of dependency extraction"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"revdep_extract_total",
			metric.WithDescription("Total number of extractions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesExtracted, err = meter.Int64Histogram(
			"revdep_extract_files",
			metric.WithDescription("Files recorded per extraction"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordExtractMetrics(ctx context.Context, duration time.Duration, fileCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)
	if success {
		filesExtracted.Record(ctx, int64(fileCount))
	}
}

func startExtractSpan(ctx context.Context, cwd string, globCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "extract.Extract",
		trace.WithAttributes(
			attribute.String("revdep.cwd", cwd),
			attribute.Int("revdep.glob_count", globCount),
		),
	)
}

func setExtractSpanResult(span trace.Span, seedCount, fileCount int) {
	span.SetAttributes(
		attribute.Int("revdep.seed_count", seedCount),
		attribute.Int("revdep.file_count", fileCount),
	)
}
