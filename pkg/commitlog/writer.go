// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
)

// Reservation is an allotted span of a segment, promising space the caller
// will fill.
type Reservation struct {
	SegmentID uint64
	Offset    int64
	Length    int64
}

// SegmentWriter is the append-only file capability backing a segment.
//
// Allocate never blocks: when the segment cannot fit the requested bytes it
// returns ok=false and the caller is expected to switch segments. Within
// one segment, reservations are handed out in offset order.
type SegmentWriter interface {
	io.WriterAt

	// Allocate reserves size bytes, returning ok=false if the segment is
	// full.
	Allocate(size int64) (_ Reservation, ok bool)

	// OnDiskSize returns the bytes consumed on disk. It grows
	// monotonically until Close.
	OnDiskSize() int64

	// Close seals the writer. Further allocations fail.
	Close() error
}

// fileSegmentWriter is a SegmentWriter over a vfs file. Reservations bump a
// bounded offset under a mutex held only for O(1) work; filling the
// reserved span happens outside the lock via WriteAt.
type fileSegmentWriter struct {
	fs        vfs.FS
	path      string
	segmentID uint64
	capacity  int64

	mu struct {
		sync.Mutex
		off    int64
		closed bool
	}
	file vfs.File
}

var _ SegmentWriter = (*fileSegmentWriter)(nil)

func newFileSegmentWriter(
	fs vfs.FS, path string, segmentID uint64, capacity int64,
) (*fileSegmentWriter, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating segment file %s", path)
	}
	return &fileSegmentWriter{
		fs:        fs,
		path:      path,
		segmentID: segmentID,
		capacity:  capacity,
		file:      f,
	}, nil
}

// Allocate implements SegmentWriter.
func (w *fileSegmentWriter) Allocate(size int64) (Reservation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mu.closed || w.mu.off+size > w.capacity {
		return Reservation{}, false
	}
	res := Reservation{SegmentID: w.segmentID, Offset: w.mu.off, Length: size}
	w.mu.off += size
	return res, true
}

// WriteAt fills previously reserved space.
func (w *fileSegmentWriter) WriteAt(p []byte, off int64) (int, error) {
	return w.file.WriteAt(p, off)
}

// OnDiskSize implements SegmentWriter. It reports the reservation
// high-water mark: space is considered consumed once promised, whether or
// not the caller has filled it yet.
func (w *fileSegmentWriter) OnDiskSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mu.off
}

// Close implements SegmentWriter.
func (w *fileSegmentWriter) Close() error {
	w.mu.Lock()
	if w.mu.closed {
		w.mu.Unlock()
		return nil
	}
	w.mu.closed = true
	w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.Wrapf(err, "syncing segment file %s", w.path)
	}
	return errors.Wrapf(w.file.Close(), "closing segment file %s", w.path)
}
