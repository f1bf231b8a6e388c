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
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// DefaultMemoryEntries is the MemoryCache capacity used when none is set.
const DefaultMemoryEntries = 64

type memoryEntry struct {
	root        string
	fingerprint string
	table       extract.RawTable
	expires     time.Time
}

// MemoryCache is an in-process LRU of tables. Like BadgerCache it drops
// entries whose sources changed since they were stored.
//
// Thread Safety: Safe for concurrent use.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache holding up to size tables. A positive ttl
// expires entries; zero keeps them until evicted.
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

// Get implements TableCache.
func (m *MemoryCache) Get(ctx context.Context, key Key) (extract.RawTable, bool, error) {
	hash := key.Hash()
	e, ok := m.entries.Get(hash)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.entries.Remove(hash)
		return nil, false, nil
	}
	if Fingerprint(key, e.table) != e.fingerprint {
		m.entries.Remove(hash)
		recordStale(ctx)
		return nil, false, nil
	}
	return e.table, true, nil
}

// Put implements TableCache.
func (m *MemoryCache) Put(_ context.Context, key Key, table extract.RawTable) error {
	e := memoryEntry{root: key.Root(), fingerprint: Fingerprint(key, table), table: table}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries.Add(key.Hash(), e)
	return nil
}

// Invalidate implements TableCache.
func (m *MemoryCache) Invalidate(_ context.Context, key Key) error {
	m.entries.Remove(key.Hash())
	return nil
}

// InvalidateRoot implements TableCache.
func (m *MemoryCache) InvalidateRoot(_ context.Context, root string) error {
	root = Key{Cwd: root}.Root()
	for _, hash := range m.entries.Keys() {
		if e, ok := m.entries.Peek(hash); ok && e.root == root {
			m.entries.Remove(hash)
		}
	}
	return nil
}

// Len returns the number of cached tables, expired ones included.
func (m *MemoryCache) Len() int {
	return m.entries.Len()
}
