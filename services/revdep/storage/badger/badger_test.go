// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)

	_, err = Open(Config{InMemory: true, GCDiscardRatio: 1.5})
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())

	ctx := context.Background()
	require.NoError(t, db.Set(ctx, []byte("k"), []byte("v"), 0))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestDB_GetSetDelete(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	_, err := db.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set(ctx, []byte("a"), []byte("1"), 0))
	got, err := db.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, db.Delete(ctx, []byte("a")))
	_, err = db.Get(ctx, []byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Delete(ctx, []byte("never-set")))
}

func TestDB_TTL(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, []byte("long"), []byte("x"), time.Hour))
	require.NoError(t, db.Set(ctx, []byte("short"), []byte("x"), time.Second))

	time.Sleep(2100 * time.Millisecond)
	_, err := db.Get(ctx, []byte("long"))
	assert.NoError(t, err)
	_, err = db.Get(ctx, []byte("short"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDB_Prefix(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	for _, k := range []string{"p/1", "p/2", "q/1"} {
		require.NoError(t, db.Set(ctx, []byte(k), []byte("v"), 0))
	}
	n, err := db.CountPrefix(ctx, []byte("p/"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.DropPrefix(ctx, []byte("p/")))
	n, err = db.CountPrefix(ctx, []byte("p/"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = db.CountPrefix(ctx, []byte("q/"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDB_Txn(t *testing.T) {
	db := openTest(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := db.WithTxn(cancelled, nil)
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("boom")
	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		require.NoError(t, txn.Set([]byte("rolled"), []byte("back")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = db.Get(ctx, []byte("rolled"))
	assert.ErrorIs(t, err, ErrNotFound)
}
