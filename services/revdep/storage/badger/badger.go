// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and manages the BadgerDB instance that backs the
// persistent dependency table cache.
//
// Keys are namespaced byte strings and values are opaque blobs; the cache
// package owns the encoding. Entries may carry a TTL, after which Badger
// stops returning them.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get for a missing or expired key.
var ErrNotFound = errors.New("key not found")

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string `mapstructure:"path"`

	// InMemory keeps everything in RAM. Used by tests and by the server
	// when no cache directory is configured.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`

	// Logger receives Badger's internal log lines. Nil silences them.
	Logger *slog.Logger `mapstructure:"-"`

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration `mapstructure:"gc_interval"`

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64 `mapstructure:"gc_discard_ratio"`
}

// DefaultConfig returns the configuration used for an on-disk cache.
//
// Tables are rebuilt from source on a miss, so durability matters less
// than write latency: SyncWrites is off.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     false,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration with no disk I/O and no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter adapts slog.Logger to badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB is an open BadgerDB with an optional background GC loop.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	db       *badger.DB
	path     string
	inMemory bool
	logger   *slog.Logger

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open opens the database described by cfg.
//
// Description:
//
//	Creates cfg.Path when needed, opens Badger with single-version
//	retention, and starts value log GC when GCInterval is positive and
//	the database is on disk.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*DB - The opened database. Caller must call Close.
//	error - Non-nil if the path is missing or Badger cannot open it.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio > 1 {
		return nil, fmt.Errorf("gc discard ratio %v must be between 0 and 1", cfg.GCDiscardRatio)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	d := &DB{db: bdb, path: cfg.Path, inMemory: cfg.InMemory, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		d.stopGC = make(chan struct{})
		d.gcDone = make(chan struct{})
		go d.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return d, nil
}

// OpenInMemory opens an in-memory database.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

func (d *DB) runGC(interval time.Duration, ratio float64) {
	defer close(d.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopGC:
			return
		case <-ticker.C:
			err := d.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && d.logger != nil {
				d.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops GC and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.stopGC != nil {
			close(d.stopGC)
			<-d.gcDone
		}
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

// Path returns the database directory, or "" in memory.
func (d *DB) Path() string { return d.path }

// InMemory reports whether the database lives in RAM only.
func (d *DB) InMemory() bool { return d.inMemory }

// Get returns the value stored under key.
//
// Outputs:
//
//	[]byte - A copy of the value, safe to retain.
//	error - ErrNotFound if the key is missing or expired.
func (d *DB) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// Set stores value under key. A positive ttl expires the entry.
func (d *DB) Set(ctx context.Context, key, value []byte, ttl time.Duration) error {
	return d.WithTxn(ctx, func(txn *badger.Txn) error {
		e := badger.NewEntry(key, value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(ctx context.Context, key []byte) error {
	return d.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// DropPrefix removes every key starting with prefix.
func (d *DB) DropPrefix(ctx context.Context, prefix []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return d.db.DropPrefix(prefix)
}

// CountPrefix returns the number of live keys starting with prefix.
func (d *DB) CountPrefix(ctx context.Context, prefix []byte) (int, error) {
	n := 0
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// WithTxn runs fn in a read-write transaction and commits if fn returns
// nil.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
