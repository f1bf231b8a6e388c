// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("revdep.cache")

var (
	lookupTotal metric.Int64Counter
	staleTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		lookupTotal, metricsErr = meter.Int64Counter(
			"revdep_table_cache_lookups_total",
			metric.WithDescription("Table cache lookups by outcome"),
		)
		if metricsErr != nil {
			return
		}
		staleTotal, metricsErr = meter.Int64Counter(
			"revdep_table_cache_stale_total",
			metric.WithDescription("Cached tables dropped because their sources changed"),
		)
	})
	return metricsErr
}

func recordLookup(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	lookupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordStale(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	staleTotal.Add(ctx, 1)
}
