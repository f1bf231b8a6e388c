// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/revdep/services/revdep/cache"
	"github.com/AleutianAI/revdep/services/revdep/storage/badger"
)

// BadgerConfig returns the storage configuration for the persistent cache.
func (c CacheConfig) BadgerConfig(logger *slog.Logger) badger.Config {
	cfg := badger.DefaultConfig()
	cfg.Path = c.Dir
	cfg.Logger = logger
	cfg.GCInterval = c.GCInterval
	cfg.GCDiscardRatio = c.GCDiscardRatio
	return cfg
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the table cache described by c.
//
// # Outputs
//
//   - cache.TableCache: Nil when caching is disabled.
//   - io.Closer: Releases the Badger database, if one was opened. Never nil.
//   - error: Non-nil if the cache could not be created.
func (c CacheConfig) Open(logger *slog.Logger) (cache.TableCache, io.Closer, error) {
	if !c.Enabled {
		return nil, nopCloser{}, nil
	}
	mem, err := cache.NewMemoryCache(c.MemoryEntries, c.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("create memory cache: %w", err)
	}
	if c.Dir == "" {
		return mem, nopCloser{}, nil
	}

	db, err := badger.Open(c.BadgerConfig(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("open cache at %s: %w", c.Dir, err)
	}
	persistent, err := cache.NewBadgerCache(db, c.TTL)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return cache.NewTiered(mem, persistent), db, nil
}
