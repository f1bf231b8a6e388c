// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command revdep answers "through which import chains does an entry point
// reach this module?" for JavaScript and TypeScript projects.
//
// Usage:
//
//	revdep resolve src/utils/date.ts
//	revdep resolve src/utils/date.ts src/index.ts --all
//	revdep resolve lodash --include-node-modules --compact-summary
//	revdep entry-points --print-deps-count
//	revdep files src/index.ts --count
//	revdep node-modules src/index.ts
//	revdep circular
//	revdep depth
//	revdep serve --addr 127.0.0.1:7331 --watch
//
// Settings are read from ./.revdep.yaml (or --config), then REVDEP_*
// environment variables, then flags.
//
// Exit codes: 0 on success (no results included), 1 on failure, 2 on
// invalid arguments or configuration, 3 when resolve --fail-if-empty
// finds nothing.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
