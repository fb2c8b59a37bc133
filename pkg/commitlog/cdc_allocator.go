// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"context"
	"time"

	"github.com/cockroachdb/cdclog/pkg/base"
	utillog "github.com/cockroachdb/cdclog/pkg/util/log"
	"github.com/cockroachdb/cdclog/pkg/util/timeutil"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// rejectionLogInterval bounds per-keyspace rejection warnings.
const rejectionLogInterval = 10 * time.Second

// CDCAllocator admits writes while respecting the configured total
// allowable CDC space on disk. On allocation it checks whether the
// mutation is tracked by CDC and, if so, either rejects it when at the CDC
// limit or flags the segment as containing CDC data.
type CDCAllocator struct {
	cfg     base.Config
	fs      vfs.FS
	logger  klog.Logger
	metrics *Metrics

	manager *Manager
	tracker *CDCSizeTracker
	links   CDCLinkManager

	rejectEvery *utillog.KeyedEveryN
}

var _ Allocator = (*CDCAllocator)(nil)

// NewCDCAllocator constructs the CDC-aware allocator and its size tracker.
func NewCDCAllocator(
	cfg base.Config,
	fs vfs.FS,
	manager *Manager,
	logger klog.Logger,
	metrics *Metrics,
	errHandler func(context.Context, error),
	knobs TrackerTestingKnobs,
	ts timeutil.TimeSource,
) *CDCAllocator {
	if ts == nil {
		ts = timeutil.DefaultTimeSource{}
	}
	return &CDCAllocator{
		cfg:         cfg,
		fs:          fs,
		logger:      logger,
		metrics:     metrics,
		manager:     manager,
		tracker:     NewCDCSizeTracker(cfg, fs, manager, logger, metrics, errHandler, knobs),
		links:       MakeCDCLinkManager(fs, cfg.CDCRawDirectory),
		rejectEvery: utillog.EveryKeyed(rejectionLogInterval, ts),
	}
}

// Tracker exposes the size tracker.
func (a *CDCAllocator) Tracker() *CDCSizeTracker { return a.tracker }

// Start implements Allocator.
func (a *CDCAllocator) Start(ctx context.Context) error {
	a.tracker.Start(ctx)
	return nil
}

// Shutdown implements Allocator. Stops the size tracking worker; an
// in-flight directory walk runs to completion.
func (a *CDCAllocator) Shutdown(ctx context.Context) error {
	a.tracker.Shutdown(ctx)
	return nil
}

// Allocate implements Allocator. Admission always precedes reservation: a
// CDC-tracked mutation is rejected before any writer space is promised, so
// a forbidden segment can never end up holding CDC data.
func (a *CDCAllocator) Allocate(
	ctx context.Context, mutation Mutation, size int64,
) (Reservation, error) {
	seg := a.manager.Active()
	if err := a.rejectIfForbidden(ctx, mutation, seg); err != nil {
		return Reservation{}, err
	}

	res, ok := seg.Writer().Allocate(size)
	// On a full segment, prompt a switch and re-attempt. Expected to
	// succeed or error out: commit-log allocation working is central to
	// how the node operates, so there is no bounded retry count.
	for !ok {
		if err := a.manager.SwitchSegment(ctx, seg); err != nil {
			return Reservation{}, err
		}
		seg = a.manager.Active()

		// Fresh segment; re-confirm it accepts CDC mutations.
		if err := a.rejectIfForbidden(ctx, mutation, seg); err != nil {
			return Reservation{}, err
		}
		res, ok = seg.Writer().Allocate(size)
	}

	if mutation.TrackedByCDC() {
		// Only after the reservation succeeded: a segment whose
		// reservation failed must not get tagged.
		if err := seg.MarkContains(); err != nil {
			return Reservation{}, err
		}
	}
	return res, nil
}

func (a *CDCAllocator) rejectIfForbidden(
	ctx context.Context, mutation Mutation, seg *Segment,
) error {
	if !mutation.TrackedByCDC() || seg.State() != CDCForbidden {
		return nil
	}
	// Best-effort nudge: the consumer may have drained since the last
	// walk.
	a.tracker.SubmitOverflowRecalc()
	a.metrics.CDCRejectedWrites.Inc()
	if a.rejectEvery.ShouldProcess(mutation.KeyspaceName()) {
		level.Warn(a.logger).Log(
			"msg", "rejecting CDC mutation; free up space by processing CDC logs",
			"keyspace", mutation.KeyspaceName(),
			"cdc_dir", a.cfg.CDCRawDirectory,
		)
	}
	return newCDCWriteRejectedError(mutation.KeyspaceName(), a.cfg.CDCRawDirectory)
}

// CreateSegment implements SegmentFactory. The new segment's log file is
// hard-linked into the raw directory before the segment is exposed; if the
// link cannot be created the node cannot honor the CDC contract and the
// segment is torn down.
func (a *CDCAllocator) CreateSegment(ctx context.Context) (*Segment, error) {
	seg, err := a.manager.NewRawSegment()
	if err != nil {
		return nil, err
	}
	if err := a.links.CreateLink(seg); err != nil {
		a.manager.OnSegmentDiscarded(seg)
		_ = seg.Writer().Close()
		_ = a.fs.Remove(seg.LogPath())
		return nil, err
	}
	if err := a.tracker.OnNewSegment(ctx, seg); err != nil {
		a.manager.OnSegmentDiscarded(seg)
		return nil, err
	}
	return seg, nil
}

// Discard implements Allocator.
func (a *CDCAllocator) Discard(ctx context.Context, seg *Segment, del bool) error {
	if err := seg.Writer().Close(); err != nil {
		return err
	}
	a.manager.AddDiskSize(-seg.Writer().OnDiskSize())
	a.manager.OnSegmentDiscarded(seg)

	a.tracker.OnDiscard(ctx, seg)

	if del {
		if err := a.fs.Remove(seg.LogPath()); err != nil {
			return errors.Wrapf(err, "deleting segment file %s", seg.LogPath())
		}
	}

	if seg.State() != CDCContains {
		// The segment never carried CDC data: its link and index
		// sidecar are garbage. Deletion failures are not fatal; the
		// next replay sweeps orphans.
		if err := a.links.RemoveLink(seg); err != nil {
			level.Warn(a.logger).Log("msg", "failed to remove CDC link", "segment", seg.ID(), "err", err)
		}
		if err := a.links.RemoveIndex(seg); err != nil {
			level.Warn(a.logger).Log("msg", "failed to remove CDC index", "segment", seg.ID(), "err", err)
		}
	}
	return nil
}

// HandleReplayedSegment implements Allocator. A CDC link without its index
// sidecar was abandoned by an unfinished producer and is deleted.
func (a *CDCAllocator) HandleReplayedSegment(ctx context.Context, path string) error {
	name := a.fs.PathBase(path)
	linkPath := a.fs.PathJoin(a.cfg.CDCRawDirectory, name)
	indexPath := a.fs.PathJoin(a.cfg.CDCRawDirectory, CDCIndexFileName(name))

	linkExists, err := a.links.exists(linkPath)
	if err != nil {
		return err
	}
	if !linkExists {
		return nil
	}
	indexExists, err := a.links.exists(indexPath)
	if err != nil {
		return err
	}
	if indexExists {
		return nil
	}
	level.Debug(a.logger).Log("msg", "deleting unneeded CDC segment link", "file", linkPath)
	return a.links.removeIfExists(linkPath)
}

// AddCDCSize adjusts tracked CDC size after replay re-links replayed
// segments.
func (a *CDCAllocator) AddCDCSize(delta int64) {
	a.tracker.AddSize(delta)
}
