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
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// SegmentFactory creates fully initialized segments. The configured
// allocator implements it: segment creation is allocator-specific (the CDC
// allocator hard-links the new file and seeds its CDC state).
type SegmentFactory interface {
	CreateSegment(ctx context.Context) (*Segment, error)
}

// Manager owns the current active segment and serializes hand-off to fresh
// segments. Writer threads read the active segment lock-free; only the
// switch path takes a lock.
type Manager struct {
	cfg     base.Config
	fs      vfs.FS
	logger  klog.Logger
	metrics *Metrics

	factory SegmentFactory

	nextID   atomic.Uint64
	active   atomic.Pointer[Segment]
	diskSize atomic.Int64

	// switchMu serializes segment hand-off.
	switchMu sync.Mutex

	liveMu struct {
		sync.Mutex
		segments map[uint64]*Segment
	}
}

// NewManager constructs a Manager. SetFactory must be called before Start.
func NewManager(cfg base.Config, fs vfs.FS, logger klog.Logger, metrics *Metrics) *Manager {
	m := &Manager{cfg: cfg, fs: fs, logger: logger, metrics: metrics}
	m.liveMu.segments = make(map[uint64]*Segment)
	return m
}

// SetFactory wires the segment factory. Split from the constructor because
// the factory (the allocator) itself needs the manager.
func (m *Manager) SetFactory(f SegmentFactory) {
	m.factory = f
}

// Start creates and activates the first segment.
func (m *Manager) Start(ctx context.Context) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	if m.active.Load() != nil {
		return nil
	}
	return m.createAndPublishLocked(ctx)
}

// Active returns the current active segment. During a hand-off this may
// briefly return a segment that is already full; callers must tolerate a
// failed reservation and loop.
func (m *Manager) Active() *Segment {
	return m.active.Load()
}

// SwitchSegment promotes a fresh segment to active, retiring current. If
// another caller already switched away from current, this is a no-op: the
// caller re-reads Active and retries its reservation.
func (m *Manager) SwitchSegment(ctx context.Context, current *Segment) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	if act := m.active.Load(); act != current {
		return nil
	}
	if err := m.createAndPublishLocked(ctx); err != nil {
		return err
	}
	m.metrics.SegmentSwitches.Inc()
	return nil
}

func (m *Manager) createAndPublishLocked(ctx context.Context) error {
	seg, err := m.factory.CreateSegment(ctx)
	if err != nil {
		return err
	}
	m.active.Store(seg)
	level.Debug(m.logger).Log("msg", "activated segment", "segment", seg.ID())
	return nil
}

// NewRawSegment builds a segment file and writer without publishing it or
// deciding its CDC state; factories finish initialization. The segment
// joins the live set here, before any CDC accounting runs, so a recalc
// observing the directory also observes the segment's reservation.
// Factories that fail must call OnSegmentDiscarded to back it out.
func (m *Manager) NewRawSegment() (*Segment, error) {
	id := m.nextID.Add(1)
	name := SegmentFileName(id)
	logPath := m.fs.PathJoin(m.cfg.CommitLogDirectory, name)
	writer, err := newFileSegmentWriter(m.fs, logPath, id, m.cfg.SegmentBytes())
	if err != nil {
		return nil, err
	}
	seg := &Segment{
		id:      id,
		logPath: logPath,
		writer:  writer,
	}
	if m.cfg.CDCRawDirectory != "" {
		seg.cdcLinkPath = m.fs.PathJoin(m.cfg.CDCRawDirectory, name)
		seg.cdcIndexPath = m.fs.PathJoin(m.cfg.CDCRawDirectory, CDCIndexFileName(name))
	}
	m.liveMu.Lock()
	m.liveMu.segments[id] = seg
	m.liveMu.Unlock()
	return seg, nil
}

// OnSegmentDiscarded drops the segment from the live set.
func (m *Manager) OnSegmentDiscarded(seg *Segment) {
	m.liveMu.Lock()
	delete(m.liveMu.segments, seg.ID())
	m.liveMu.Unlock()
}

// Live returns the unflushed (not yet discarded) segments.
func (m *Manager) Live() []*Segment {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	segs := make([]*Segment, 0, len(m.liveMu.segments))
	for _, seg := range m.liveMu.segments {
		segs = append(segs, seg)
	}
	return segs
}

// AddDiskSize adjusts the global commit-log on-disk counter.
func (m *Manager) AddDiskSize(delta int64) {
	m.diskSize.Add(delta)
}

// OnDiskSize returns the global commit-log on-disk counter plus the bytes
// of live segments.
func (m *Manager) OnDiskSize() int64 {
	total := m.diskSize.Load()
	for _, seg := range m.Live() {
		total += seg.Writer().OnDiskSize()
	}
	return total
}
