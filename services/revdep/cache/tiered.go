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
	"errors"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// Tiered checks a fast cache before a slow one. A slow-tier hit is copied
// into the fast tier.
type Tiered struct {
	fast TableCache
	slow TableCache
}

// NewTiered creates a two-level cache. Both tiers are required.
func NewTiered(fast, slow TableCache) *Tiered {
	return &Tiered{fast: fast, slow: slow}
}

// Get implements TableCache.
func (t *Tiered) Get(ctx context.Context, key Key) (extract.RawTable, bool, error) {
	if table, ok, err := t.fast.Get(ctx, key); err == nil && ok {
		return table, true, nil
	}
	table, ok, err := t.slow.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.fast.Put(ctx, key, table)
	return table, true, nil
}

// Put implements TableCache. Both tiers are written.
func (t *Tiered) Put(ctx context.Context, key Key, table extract.RawTable) error {
	return errors.Join(t.fast.Put(ctx, key, table), t.slow.Put(ctx, key, table))
}

// Invalidate implements TableCache.
func (t *Tiered) Invalidate(ctx context.Context, key Key) error {
	return errors.Join(t.fast.Invalidate(ctx, key), t.slow.Invalidate(ctx, key))
}

// InvalidateRoot implements TableCache.
func (t *Tiered) InvalidateRoot(ctx context.Context, root string) error {
	return errors.Join(t.fast.InvalidateRoot(ctx, root), t.slow.InvalidateRoot(ctx, root))
}
