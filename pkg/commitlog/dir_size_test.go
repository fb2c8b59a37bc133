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

func writeFile(t *testing.T, fs vfs.FS, path string, size int) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, size))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestDirectorySizerWalk(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/cdc/sub", 0755))
	writeFile(t, fs, "/cdc/a.log", 100)
	writeFile(t, fs, "/cdc/b.log", 250)
	writeFile(t, fs, "/cdc/sub/c.log", 7)

	sizer := MakeDirectorySizer(fs, "/cdc")
	total, err := sizer.Walk()
	require.NoError(t, err)
	require.EqualValues(t, 357, total)
}

func TestDirectorySizerEmptyAndMissing(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/cdc", 0755))

	total, err := MakeDirectorySizer(fs, "/cdc").Walk()
	require.NoError(t, err)
	require.Zero(t, total)

	// A not-yet-provisioned directory sizes to zero rather than erroring.
	total, err = MakeDirectorySizer(fs, "/nonexistent").Walk()
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestDirectorySizerCountsHardLinksOnce(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/clog", 0755))
	require.NoError(t, fs.MkdirAll("/cdc", 0755))
	writeFile(t, fs, "/clog/seg.log", 64)
	require.NoError(t, fs.Link("/clog/seg.log", "/cdc/seg.log"))

	// Only the raw directory is walked; the primary copy is not its
	// concern.
	total, err := MakeDirectorySizer(fs, "/cdc").Walk()
	require.NoError(t, err)
	require.EqualValues(t, 64, total)
}
