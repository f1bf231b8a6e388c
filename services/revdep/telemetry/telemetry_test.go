// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "revdep", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
}

func TestForExporter(t *testing.T) {
	tests := []struct {
		name       string
		wantTrace  string
		wantMetric string
	}{
		{"", ExporterNone, ExporterNone},
		{ExporterNone, ExporterNone, ExporterNone},
		{ExporterStdout, ExporterStdout, ExporterStdout},
		{ExporterOTLP, ExporterOTLP, ExporterPrometheus},
		{ExporterPrometheus, ExporterNone, ExporterPrometheus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ForExporter(tt.name, "collector:4317")
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrace, cfg.TraceExporter)
			assert.Equal(t, tt.wantMetric, cfg.MetricExporter)
			assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
		})
	}

	_, err := ForExporter("zipkin", "")
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_NilContext(t *testing.T) {
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "jaeger-thrift"
	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	cfg = DefaultConfig()
	cfg.MetricExporter = "statsd"
	_, err = Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_OTLPConnectsLazily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterOTLP
	cfg.OTLPEndpoint = "127.0.0.1:1"

	// No collector is listening; creating the exporter must not dial.
	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.Writer = &buf

	ctx := context.Background()
	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("revdep.test").Start(ctx, "resolve.test")
	span.End()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), "resolve.test")
}

func TestInit_Prometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterPrometheus

	ctx := context.Background()
	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter("revdep.test").Int64Counter("revdep_test_lookups")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	handler := MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "revdep_test_lookups")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("no span", func(t *testing.T) {
		assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	})

	t.Run("nil logger", func(t *testing.T) {
		assert.NotNil(t, LoggerWithTrace(context.Background(), nil))
	})

	t.Run("with span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		LoggerWithTrace(ctx, logger).Info("resolved")
		out := buf.String()
		assert.Contains(t, out, `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
		assert.True(t, strings.Contains(out, `"span_id"`))
	})
}
