// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry configures OpenTelemetry for revdep.
//
// The engine, extractor and cache create spans and instruments through the
// global otel.Tracer and otel.Meter. Until Init runs those are no-ops, so
// library callers pay nothing; the CLI and server call Init once at
// startup to attach real exporters.
//
// # Exporters
//
//   - none: nothing is exported.
//   - stdout: spans and metrics are pretty-printed to the configured writer
//     (stderr by default, so reports on stdout stay machine-readable).
//   - otlp: spans go to an OTLP/gRPC receiver; metrics are served for
//     Prometheus scraping.
//   - prometheus: metrics only, served by MetricsHandler.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
