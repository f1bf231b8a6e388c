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

import "strings"

// nodeBuiltins lists Node.js core modules importable without the "node:"
// scheme.
var nodeBuiltins = map[string]struct{}{
	"assert": {}, "async_hooks": {}, "buffer": {}, "child_process": {},
	"cluster": {}, "console": {}, "constants": {}, "crypto": {},
	"dgram": {}, "diagnostics_channel": {}, "dns": {}, "domain": {},
	"events": {}, "fs": {}, "http": {}, "http2": {}, "https": {},
	"inspector": {}, "module": {}, "net": {}, "os": {}, "path": {},
	"perf_hooks": {}, "process": {}, "punycode": {}, "querystring": {},
	"readline": {}, "repl": {}, "stream": {}, "string_decoder": {},
	"sys": {}, "timers": {}, "tls": {}, "trace_events": {}, "tty": {},
	"url": {}, "util": {}, "v8": {}, "vm": {}, "wasi": {},
	"worker_threads": {}, "zlib": {},
}

// IsBuiltin reports whether request names a platform module. Subpaths such
// as "fs/promises" count as the parent module.
func IsBuiltin(request string) bool {
	if strings.HasPrefix(request, "node:") {
		return true
	}
	name, _, _ := strings.Cut(request, "/")
	_, ok := nodeBuiltins[name]
	return ok
}

// PackageName returns the package part of a bare specifier: the first
// path segment, or the first two for scoped packages.
//
//	PackageName("lodash/fp")          // "lodash"
//	PackageName("@scope/pkg/sub/x")   // "@scope/pkg"
func PackageName(request string) string {
	parts := 2
	if strings.HasPrefix(request, "@") {
		parts = 3
	}
	segs := strings.SplitN(request, "/", parts)
	if len(segs) < parts {
		return request
	}
	return strings.Join(segs[:parts-1], "/")
}

// isBare reports whether request is neither relative nor absolute.
func isBare(request string) bool {
	return request != "" &&
		!strings.HasPrefix(request, "./") &&
		!strings.HasPrefix(request, "../") &&
		request != "." && request != ".." &&
		!strings.HasPrefix(request, "/")
}
