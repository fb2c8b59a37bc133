// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, capacity int64) *fileSegmentWriter {
	t.Helper()
	fs := vfs.NewMem()
	w, err := newFileSegmentWriter(fs, "/seg.log", 1, capacity)
	require.NoError(t, err)
	return w
}

func TestWriterAllocateOrdering(t *testing.T) {
	w := newTestWriter(t, 1<<20)

	res1, ok := w.Allocate(100)
	require.True(t, ok)
	res2, ok := w.Allocate(200)
	require.True(t, ok)

	require.EqualValues(t, 0, res1.Offset)
	require.EqualValues(t, 100, res1.Length)
	require.EqualValues(t, 100, res2.Offset)
	require.EqualValues(t, 200, res2.Length)
	require.EqualValues(t, 300, w.OnDiskSize())
}

func TestWriterAllocateFull(t *testing.T) {
	w := newTestWriter(t, 256)

	_, ok := w.Allocate(200)
	require.True(t, ok)
	// Does not fit; the writer returns rather than blocking.
	_, ok = w.Allocate(100)
	require.False(t, ok)
	// A smaller reservation still fits.
	res, ok := w.Allocate(56)
	require.True(t, ok)
	require.EqualValues(t, 200, res.Offset)
	// Exactly full now.
	_, ok = w.Allocate(1)
	require.False(t, ok)
	require.EqualValues(t, 256, w.OnDiskSize())
}

func TestWriterFillAndClose(t *testing.T) {
	w := newTestWriter(t, 1<<20)

	res, ok := w.Allocate(5)
	require.True(t, ok)
	n, err := w.WriteAt([]byte("hello"), res.Offset)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, w.Close())
	// Close is idempotent and seals the writer.
	require.NoError(t, w.Close())
	_, ok = w.Allocate(1)
	require.False(t, ok)
	// The high-water mark survives close.
	require.EqualValues(t, 5, w.OnDiskSize())
}
