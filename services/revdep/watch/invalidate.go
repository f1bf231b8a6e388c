// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"
)

// Invalidator drops cached state for a project root.
type Invalidator interface {
	InvalidateRoot(ctx context.Context, root string) error
}

// InvalidateOnChange returns a Handler that invalidates root whenever a
// batch contains at least one relevant change. Irrelevant batches (images,
// lock files, build output) leave the cache alone.
func InvalidateOnChange(inv Invalidator, root string, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, changes []Change) {
		relevant := 0
		for _, c := range changes {
			if Relevant(c.Path) {
				relevant++
			}
		}
		if relevant == 0 {
			return
		}
		if err := inv.InvalidateRoot(ctx, root); err != nil {
			logger.Warn("cache invalidation failed",
				slog.String("root", root),
				slog.String("error", err.Error()),
			)
			return
		}
		logger.Info("sources changed, cache invalidated",
			slog.String("root", root),
			slog.Int("changes", relevant),
		)
	}
}
