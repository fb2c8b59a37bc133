// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/cdclog/pkg/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"
)

// CDCSizeTracker tracks the total disk usage of the CDC subsystem: the sum
// of nominal reservations for all unflushed CDC-permitted segments plus
// everything archived into the raw directory. It allows atomic
// increment/decrement for the unflushed part, but discovering consumer
// deletions requires a full directory walk, which runs asynchronously on a
// single-slot executor so the write path never waits on filesystem I/O.
type CDCSizeTracker struct {
	fs      vfs.FS
	manager *Manager
	logger  klog.Logger
	metrics *Metrics
	knobs   TrackerTestingKnobs

	cdcDir              string
	budgetBytes         int64
	defaultSegmentBytes int64

	sizer   DirectorySizer
	limiter *rate.Limiter

	// errHandler receives walk failures; the host's disk-failure policy
	// decides what happens next.
	errHandler func(context.Context, error)

	// size is the best-effort CDC bytes counted toward the budget. Delta
	// updates happen while holding the affected segment's state lock;
	// the recalc worker replaces the whole value with a plain atomic
	// store and so needs no segment locks.
	size atomic.Int64

	tasks  chan struct{}
	stopC  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCDCSizeTracker constructs a tracker; Start must be called before use.
func NewCDCSizeTracker(
	cfg base.Config,
	fs vfs.FS,
	manager *Manager,
	logger klog.Logger,
	metrics *Metrics,
	errHandler func(context.Context, error),
	knobs TrackerTestingKnobs,
) *CDCSizeTracker {
	t := &CDCSizeTracker{
		fs:                  fs,
		manager:             manager,
		logger:              logger,
		metrics:             metrics,
		knobs:               knobs,
		cdcDir:              cfg.CDCRawDirectory,
		budgetBytes:         cfg.CDCBudgetBytes(),
		defaultSegmentBytes: cfg.SegmentBytes(),
		sizer:               MakeDirectorySizer(fs, cfg.CDCRawDirectory),
		limiter: rate.NewLimiter(
			rate.Limit(1000.0/float64(cfg.CDCFreeSpaceCheckIntervalMS)), 1),
		errHandler: errHandler,
	}
	if t.errHandler == nil {
		t.errHandler = func(ctx context.Context, err error) {
			level.Error(logger).Log("msg", "CDC size tracker error", "err", err)
		}
	}
	return t
}

// Start zeroes the accounting and spins up the recalc worker. Calling it
// again after Shutdown resets the accounting and starts a fresh worker.
func (t *CDCSizeTracker) Start(ctx context.Context) {
	t.size.Store(0)
	t.metrics.CDCSizeBytes.Set(0)
	t.tasks = make(chan struct{}, 1)
	t.stopC = make(chan struct{})

	workerCtx, cancel := context.WithCancel(context.Background())
	workerCtx = logtags.AddTag(workerCtx, "cdc-size-recalc", nil)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-t.stopC:
				return
			case <-t.tasks:
				t.recalculateOverflow(workerCtx)
			}
		}
	}()
}

// Shutdown stops the recalc worker. An in-flight walk runs to completion;
// a worker blocked on the rate limiter is released.
func (t *CDCSizeTracker) Shutdown(ctx context.Context) {
	if t.stopC == nil {
		return
	}
	close(t.stopC)
	t.cancel()
	t.wg.Wait()
}

// OnNewSegment decides the CDC state of a freshly created segment from the
// current accounting, reserving the segment's nominal size against the
// budget if permitted. Also the re-admission path: the recalc worker
// re-runs it on the active segment once drain may have freed budget.
func (t *CDCSizeTracker) OnNewSegment(ctx context.Context, seg *Segment) error {
	seg.stateMu.Lock()
	var err error
	if t.defaultSegmentBytes+t.size.Load() > t.budgetBytes {
		err = seg.setStateLocked(CDCForbidden)
	} else {
		if err = seg.setStateLocked(CDCPermitted); err == nil {
			t.size.Add(t.defaultSegmentBytes)
		}
	}
	seg.stateMu.Unlock()
	if err != nil {
		return err
	}
	t.metrics.CDCSizeBytes.Set(float64(t.size.Load()))

	// Take the opportunity to pick up any consumer file deletion.
	t.SubmitOverflowRecalc()
	return nil
}

// OnDiscard folds a retiring segment into the accounting. A segment that
// admitted CDC data converts to flushed bytes awaiting the consumer (its
// hard link keeps them on disk); any non-forbidden segment releases the
// reservation taken in OnNewSegment. The add happens before the subtract
// so there is no window of false generosity in which a new segment could
// slip in under budget.
func (t *CDCSizeTracker) OnDiscard(ctx context.Context, seg *Segment) {
	seg.stateMu.Lock()
	st := seg.State()
	if st == CDCContains {
		t.size.Add(seg.Writer().OnDiskSize())
	}
	if st != CDCForbidden {
		t.size.Add(-t.defaultSegmentBytes)
	}
	seg.stateMu.Unlock()
	t.metrics.CDCSizeBytes.Set(float64(t.size.Load()))

	t.SubmitOverflowRecalc()
}

// AddSize adjusts the accounting directly. Used after replay when the
// replayer re-links replayed segments into the raw directory.
func (t *CDCSizeTracker) AddSize(delta int64) {
	t.size.Add(delta)
	t.metrics.CDCSizeBytes.Set(float64(t.size.Load()))
}

// TotalCDCSizeOnDisk returns the current accounted CDC bytes.
func (t *CDCSizeTracker) TotalCDCSizeOnDisk() int64 {
	return t.size.Load()
}

// SubmitOverflowRecalc queues an async recalculation. At most one task is
// pending: submissions while the slot is occupied are dropped, since the
// pending run will observe the same directory state.
func (t *CDCSizeTracker) SubmitOverflowRecalc() {
	select {
	case t.tasks <- struct{}{}:
	default:
	}
}

// recalculateOverflow runs on the worker. It waits for a rate-limit
// permit, walks the raw directory, replaces the accounting wholesale, and
// re-admits the active segment if it was forbidden. The rate limiter is the
// sole defense against a tight re-admit loop while persistently over
// budget.
func (t *CDCSizeTracker) recalculateOverflow(ctx context.Context) {
	if !t.knobs.DisableRecalcRateLimit {
		if err := t.limiter.Wait(ctx); err != nil {
			// Shutdown during the wait; drop the recalc.
			return
		}
	}

	walked, err := t.sizer.Walk()
	if err != nil {
		t.metrics.CDCRecalcFailures.Inc()
		t.errHandler(ctx, errors.Wrap(err, "failed CDC size calculation"))
		if t.knobs.OnRecalc != nil {
			t.knobs.OnRecalc(t.size.Load(), err)
		}
		return
	}

	// The walk finds flushed bytes only; unflushed non-forbidden segments
	// still hold their nominal reservation.
	var reserved int64
	for _, seg := range t.manager.Live() {
		if seg.State() != CDCForbidden {
			reserved += t.defaultSegmentBytes
		}
	}
	t.size.Store(walked + reserved)
	t.metrics.CDCRecalcRuns.Inc()
	t.metrics.CDCSizeBytes.Set(float64(walked + reserved))

	// If the currently-active segment is disallowed for CDC, re-evaluate
	// it: the consumer may have drained enough to re-admit. Deliberately
	// the segment active now, not the one active at submission time.
	if active := t.manager.Active(); active != nil && active.State() == CDCForbidden {
		if err := t.OnNewSegment(ctx, active); err != nil {
			t.errHandler(ctx, err)
		}
	}

	if t.knobs.OnRecalc != nil {
		t.knobs.OnRecalc(t.size.Load(), nil)
	}
}
