// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Mutation is the unit of write submitted to the commit log.
type Mutation interface {
	// KeyspaceName names the target keyspace.
	KeyspaceName() string
	// TrackedByCDC reports whether this mutation is captured by CDC on
	// this node.
	TrackedByCDC() bool
}

// Allocator admits writes into segments. Two implementations exist: the
// standard allocator, and the CDC-aware allocator that additionally
// enforces the CDC disk budget. We pay the duplication cost to keep CDC
// hard-linking and size tracking entirely off the write path of nodes that
// don't use CDC.
type Allocator interface {
	SegmentFactory

	// Start spins up any background work the allocator needs.
	Start(ctx context.Context) error

	// Allocate reserves space for the mutation in the active segment,
	// switching to a fresh segment as needed.
	Allocate(ctx context.Context, mutation Mutation, size int64) (Reservation, error)

	// Discard retires a segment, optionally deleting its primary log
	// file.
	Discard(ctx context.Context, seg *Segment, delete bool) error

	// HandleReplayedSegment cleans up leftover CDC state for a segment
	// file processed by replay.
	HandleReplayedSegment(ctx context.Context, path string) error

	// Shutdown stops background work, letting in-flight work finish.
	Shutdown(ctx context.Context) error
}

// standardAllocator admits every write; it knows nothing of CDC.
type standardAllocator struct {
	fs      vfs.FS
	manager *Manager
	logger  klog.Logger
}

var _ Allocator = (*standardAllocator)(nil)

func newStandardAllocator(fs vfs.FS, manager *Manager, logger klog.Logger) *standardAllocator {
	return &standardAllocator{fs: fs, manager: manager, logger: logger}
}

// Start implements Allocator.
func (a *standardAllocator) Start(ctx context.Context) error { return nil }

// Shutdown implements Allocator.
func (a *standardAllocator) Shutdown(ctx context.Context) error { return nil }

// CreateSegment implements SegmentFactory.
func (a *standardAllocator) CreateSegment(ctx context.Context) (*Segment, error) {
	return a.manager.NewRawSegment()
}

// Allocate implements Allocator. The retry loop is unbounded: failing to
// allocate would mean the node cannot accept writes at all, and upstream
// validation guarantees a segment is wider than any single mutation.
func (a *standardAllocator) Allocate(
	ctx context.Context, mutation Mutation, size int64,
) (Reservation, error) {
	seg := a.manager.Active()
	for {
		if res, ok := seg.Writer().Allocate(size); ok {
			return res, nil
		}
		if err := a.manager.SwitchSegment(ctx, seg); err != nil {
			return Reservation{}, err
		}
		seg = a.manager.Active()
	}
}

// Discard implements Allocator.
func (a *standardAllocator) Discard(ctx context.Context, seg *Segment, del bool) error {
	if err := seg.Writer().Close(); err != nil {
		return err
	}
	a.manager.AddDiskSize(-seg.Writer().OnDiskSize())
	a.manager.OnSegmentDiscarded(seg)
	if del {
		if err := a.fs.Remove(seg.LogPath()); err != nil {
			return errors.Wrapf(err, "deleting segment file %s", seg.LogPath())
		}
	}
	level.Debug(a.logger).Log("msg", "discarded segment", "segment", seg.ID(), "deleted", del)
	return nil
}

// HandleReplayedSegment implements Allocator. Without CDC there is nothing
// to clean up.
func (a *standardAllocator) HandleReplayedSegment(ctx context.Context, path string) error {
	return nil
}
