// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/cockroachdb/cdclog/pkg/base"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

// testMutation is a Mutation literal for tests.
type testMutation struct {
	keyspace string
	cdc      bool
}

func (m testMutation) KeyspaceName() string { return m.keyspace }
func (m testMutation) TrackedByCDC() bool   { return m.cdc }

func cdcMutation(ks string) testMutation   { return testMutation{keyspace: ks, cdc: true} }
func plainMutation(ks string) testMutation { return testMutation{keyspace: ks, cdc: false} }

const (
	testCLogDir = "/clog"
	testCDCDir  = "/cdc_raw"
)

func testConfig(mut func(*base.Config)) base.Config {
	cfg := base.DefaultConfig()
	cfg.CommitLogDirectory = testCLogDir
	cfg.CDCEnabled = true
	cfg.CDCRawDirectory = testCDCDir
	cfg.CDCTotalSpaceMB = 64
	cfg.CommitLogSegmentSizeMB = 32
	if mut != nil {
		mut(&cfg)
	}
	return cfg
}

// newTestCommitLog builds a CDC commit log over an in-memory filesystem
// with the first segment activated. The recalc worker is deliberately not
// started: tests drive recalculateOverflow synchronously for determinism.
func newTestCommitLog(
	t *testing.T, mut func(*base.Config),
) (*CommitLog, *CDCAllocator, vfs.FS) {
	t.Helper()
	fs := vfs.NewMem()
	cfg := testConfig(mut)
	cl, err := New(cfg, fs, klog.NewNopLogger(), nil, Options{
		TrackerKnobs: TrackerTestingKnobs{DisableRecalcRateLimit: true},
	})
	require.NoError(t, err)
	require.NoError(t, fs.MkdirAll(cfg.CommitLogDirectory, os.ModePerm))
	require.NoError(t, fs.MkdirAll(cfg.CDCRawDirectory, os.ModePerm))
	require.NoError(t, cl.manager.Start(context.Background()))
	alloc, ok := cl.allocator.(*CDCAllocator)
	require.True(t, ok)
	return cl, alloc, fs
}

// fillReservation writes n bytes into the reserved span so the segment
// file grows on disk.
func fillReservation(t *testing.T, seg *Segment, res Reservation) {
	t.Helper()
	buf := make([]byte, res.Length)
	n, err := seg.Writer().WriteAt(buf, res.Offset)
	require.NoError(t, err)
	require.EqualValues(t, res.Length, n)
}

// newMemFS builds an in-memory filesystem with the configured directories
// in place, for tests that construct the CommitLog themselves.
func newMemFS(t *testing.T, mut func(*base.Config)) (vfs.FS, base.Config) {
	t.Helper()
	cfg := testConfig(mut)
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll(cfg.CommitLogDirectory, os.ModePerm))
	require.NoError(t, fs.MkdirAll(cfg.CDCRawDirectory, os.ModePerm))
	return fs, cfg
}

// countingLogger records emitted keyval values so tests can assert on
// rate-limited log volume.
type countingLogger struct {
	mu     sync.Mutex
	values []string
}

var _ klog.Logger = (*countingLogger)(nil)

func (l *countingLogger) Log(keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, kv := range keyvals {
		if s, ok := kv.(string); ok {
			l.values = append(l.values, s)
		}
	}
	return nil
}

func (l *countingLogger) count(value string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, v := range l.values {
		if v == value {
			n++
		}
	}
	return n
}

// listDir returns the names in dir, empty when the directory is missing.
func listDir(t *testing.T, fs vfs.FS, dir string) []string {
	t.Helper()
	names, err := fs.List(dir)
	if err != nil {
		return nil
	}
	return names
}
