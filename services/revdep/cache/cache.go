// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache stores extracted dependency tables between runs.
//
// Extraction parses every reachable source file, so repeated CLI calls
// and server requests over an unchanged project are dominated by it. A
// cache is always supplied explicitly by the caller; nothing in revdep
// caches implicitly.
//
// Cached tables are shared. Callers must treat a table returned by Get as
// read-only.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// Key identifies one extraction: the project root, the seed globs, and
// every option that changes the extracted table.
type Key struct {
	Cwd               string
	Globs             []string
	AliasConfig       string
	IgnoreTypeImports bool
}

// Root returns the cleaned project root.
func (k Key) Root() string {
	return filepath.Clean(k.Cwd)
}

// Hash returns a stable hex digest of the key. Glob order does not
// affect the digest.
func (k Key) Hash() string {
	globs := slices.Clone(k.Globs)
	slices.Sort(globs)

	h := sha256.New()
	for _, part := range []string{
		"v1",
		k.Root(),
		k.AliasConfig,
		strconv.FormatBool(k.IgnoreTypeImports),
		strings.Join(globs, "\x1f"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// rootHash is the digest used to group every key of one project.
func rootHash(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:8])
}

// TableCache stores raw extracted tables.
//
// Implementations must be safe for concurrent use. Get reports a miss
// with (nil, false, nil); an error means the cache itself failed.
type TableCache interface {
	Get(ctx context.Context, key Key) (extract.RawTable, bool, error)
	Put(ctx context.Context, key Key, table extract.RawTable) error
	Invalidate(ctx context.Context, key Key) error

	// InvalidateRoot drops every entry for the project at root.
	InvalidateRoot(ctx context.Context, root string) error
}

// Loader produces a table on a cache miss.
type Loader func(ctx context.Context) (extract.RawTable, error)

// Group wraps a TableCache so concurrent misses for one key run the
// loader once.
//
// Thread Safety: Safe for concurrent use.
type Group struct {
	cache  TableCache
	flight singleflight.Group
	logger *slog.Logger
}

// NewGroup creates a Group over cache. A nil logger uses slog.Default().
func NewGroup(cache TableCache, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{cache: cache, logger: logger}
}

// Cache returns the wrapped cache.
func (g *Group) Cache() TableCache {
	return g.cache
}

// GetOrLoad returns the cached table for key, or runs load and caches its
// result.
//
// Description:
//
//	Cache read and write failures are logged and otherwise ignored: the
//	table is always recomputable, so a broken cache degrades to no cache.
//	Loader errors are returned unmodified and nothing is cached.
//
// Outputs:
//
//	extract.RawTable - The table. Shared; do not modify.
//	bool - True if the table came from the cache.
//	error - The loader's error.
func (g *Group) GetOrLoad(ctx context.Context, key Key, load Loader) (extract.RawTable, bool, error) {
	hash := key.Hash()
	if t, ok := g.lookup(ctx, key, hash); ok {
		return t, true, nil
	}

	v, err, _ := g.flight.Do(hash, func() (any, error) {
		if t, ok := g.lookup(ctx, key, hash); ok {
			return t, nil
		}
		start := time.Now()
		t, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Put(ctx, key, t); err != nil {
			g.logger.Warn("table cache write failed",
				slog.String("root", key.Root()),
				slog.String("error", err.Error()),
			)
		}
		g.logger.Debug("table cache filled",
			slog.String("root", key.Root()),
			slog.String("key", hash[:12]),
			slog.Int("files", len(t)),
			slog.Duration("load", time.Since(start)),
		)
		return t, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(extract.RawTable), false, nil
}

func (g *Group) lookup(ctx context.Context, key Key, hash string) (extract.RawTable, bool) {
	t, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("table cache read failed",
			slog.String("root", key.Root()),
			slog.String("key", hash[:12]),
			slog.String("error", err.Error()),
		)
		recordLookup(ctx, "error")
		return nil, false
	}
	if ok {
		recordLookup(ctx, "hit")
	} else {
		recordLookup(ctx, "miss")
	}
	return t, ok
}
