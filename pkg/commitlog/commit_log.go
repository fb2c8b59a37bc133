// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package commitlog implements durable append-only log segments with an
// optional CDC-aware admission path. When CDC is enabled, writes tagged as
// tracked by CDC are admitted only while the configured on-disk CDC budget
// has room; otherwise they fail with a distinct, retriable error instead of
// silently dropping data or stalling the write path.
package commitlog

import (
	"context"
	"os"

	"github.com/cockroachdb/cdclog/pkg/base"
	"github.com/cockroachdb/cdclog/pkg/util/timeutil"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Options carries optional wiring for New.
type Options struct {
	// ErrorHandler receives errors from the async size recalculation.
	// The host applies its disk-failure policy (stop, die, ignore). Nil
	// logs and continues.
	ErrorHandler func(context.Context, error)

	// TimeSource overrides the clock used for rate-limited logging.
	TimeSource timeutil.TimeSource

	// TrackerKnobs are testing hooks for the CDC size tracker.
	TrackerKnobs TrackerTestingKnobs
}

// CommitLog owns the segment manager and the configured allocator.
type CommitLog struct {
	cfg     base.Config
	fs      vfs.FS
	logger  klog.Logger
	metrics *Metrics

	manager   *Manager
	allocator Allocator
}

// New builds a CommitLog from a validated config. cdc_enabled selects the
// CDC-aware allocator; otherwise the standard one.
func New(
	cfg base.Config, fs vfs.FS, logger klog.Logger, reg prometheus.Registerer, opts Options,
) (*CommitLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = klog.NewNopLogger()
	}
	metrics := MakeMetrics(reg)
	metrics.CDCBudgetBytes.Set(float64(cfg.CDCBudgetBytes()))

	manager := NewManager(cfg, fs, logger, metrics)
	var allocator Allocator
	if cfg.CDCEnabled {
		allocator = NewCDCAllocator(
			cfg, fs, manager, logger, metrics,
			opts.ErrorHandler, opts.TrackerKnobs, opts.TimeSource)
	} else {
		allocator = newStandardAllocator(fs, manager, logger)
	}
	manager.SetFactory(allocator)

	return &CommitLog{
		cfg:       cfg,
		fs:        fs,
		logger:    logger,
		metrics:   metrics,
		manager:   manager,
		allocator: allocator,
	}, nil
}

// Start creates the directories, starts background work and activates the
// first segment.
func (cl *CommitLog) Start(ctx context.Context) error {
	ctx = logtags.AddTag(ctx, "commitlog", nil)
	if err := cl.fs.MkdirAll(cl.cfg.CommitLogDirectory, os.ModePerm); err != nil {
		return err
	}
	if cl.cfg.CDCEnabled {
		if err := cl.fs.MkdirAll(cl.cfg.CDCRawDirectory, os.ModePerm); err != nil {
			return err
		}
	}
	if err := cl.allocator.Start(ctx); err != nil {
		return err
	}
	return cl.manager.Start(ctx)
}

// Shutdown stops background work and closes live segments without deleting
// them.
func (cl *CommitLog) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, seg := range cl.manager.Live() {
		if err := cl.allocator.Discard(ctx, seg, false /* delete */); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := cl.allocator.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Allocate reserves space for a mutation.
func (cl *CommitLog) Allocate(
	ctx context.Context, mutation Mutation, size int64,
) (Reservation, error) {
	return cl.allocator.Allocate(ctx, mutation, size)
}

// Discard retires a segment.
func (cl *CommitLog) Discard(ctx context.Context, seg *Segment, delete bool) error {
	return cl.allocator.Discard(ctx, seg, delete)
}

// HandleReplayedSegment cleans up CDC leftovers for a replayed segment
// file.
func (cl *CommitLog) HandleReplayedSegment(ctx context.Context, path string) error {
	return cl.allocator.HandleReplayedSegment(ctx, path)
}

// ActiveSegment returns the current active segment.
func (cl *CommitLog) ActiveSegment() *Segment {
	return cl.manager.Active()
}

// Manager returns the segment manager.
func (cl *CommitLog) Manager() *Manager {
	return cl.manager
}

// Allocator returns the configured allocator.
func (cl *CommitLog) Allocator() Allocator {
	return cl.allocator
}

// Metrics returns the metric set.
func (cl *CommitLog) Metrics() *Metrics {
	return cl.metrics
}
