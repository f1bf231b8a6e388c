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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/revdep/services/revdep/extract"
	"github.com/AleutianAI/revdep/services/revdep/storage/badger"
)

const (
	badgerNamespace = "revdep/table/"

	// envelopeVersion is bumped whenever the stored shape changes; entries
	// with another version are treated as misses.
	envelopeVersion = 2
)

type envelope struct {
	Version     int              `json:"version"`
	Root        string           `json:"root"`
	CreatedAt   time.Time        `json:"created_at"`
	Fingerprint string           `json:"fingerprint"`
	Table       extract.RawTable `json:"table"`
}

// BadgerCache persists tables in BadgerDB as JSON, one key per
// extraction, grouped by project root so a root can be dropped at once.
// Each entry carries the Fingerprint of the sources it was built from; an
// entry whose sources changed since is a miss.
//
// Thread Safety: Safe for concurrent use.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache creates a cache over db. A positive ttl expires entries.
// The caller owns db and closes it.
func NewBadgerCache(db *badger.DB, ttl time.Duration) (*BadgerCache, error) {
	if db == nil {
		return nil, errors.New("badger cache requires a database")
	}
	return &BadgerCache{db: db, ttl: ttl}, nil
}

func rootPrefix(root string) []byte {
	return []byte(badgerNamespace + rootHash(root) + "/")
}

func badgerKey(key Key) []byte {
	return append(rootPrefix(key.Root()), key.Hash()...)
}

// Get implements TableCache.
func (b *BadgerCache) Get(ctx context.Context, key Key) (extract.RawTable, bool, error) {
	raw, err := b.db.Get(ctx, badgerKey(key))
	if errors.Is(err, badger.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached table: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("decode cached table: %w", err)
	}
	if env.Version != envelopeVersion || env.Table == nil {
		return nil, false, nil
	}
	if Fingerprint(key, env.Table) != env.Fingerprint {
		recordStale(ctx)
		return nil, false, nil
	}
	return env.Table, true, nil
}

// Put implements TableCache.
func (b *BadgerCache) Put(ctx context.Context, key Key, table extract.RawTable) error {
	raw, err := json.Marshal(envelope{
		Version:     envelopeVersion,
		Root:        key.Root(),
		CreatedAt:   time.Now().UTC(),
		Fingerprint: Fingerprint(key, table),
		Table:       table,
	})
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	if err := b.db.Set(ctx, badgerKey(key), raw, b.ttl); err != nil {
		return fmt.Errorf("write cached table: %w", err)
	}
	return nil
}

// Invalidate implements TableCache.
func (b *BadgerCache) Invalidate(ctx context.Context, key Key) error {
	return b.db.Delete(ctx, badgerKey(key))
}

// InvalidateRoot implements TableCache.
func (b *BadgerCache) InvalidateRoot(ctx context.Context, root string) error {
	return b.db.DropPrefix(ctx, rootPrefix(Key{Cwd: root}.Root()))
}
