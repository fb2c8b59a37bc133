// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// segmentVersion is encoded into segment file names so that replay can
// recognize the on-disk format generation.
const segmentVersion = 1

// CDCState describes a segment's relationship to CDC.
type CDCState int32

const (
	// CDCPermitted means the segment may accept CDC-tracked mutations.
	CDCPermitted CDCState = iota
	// CDCForbidden means CDC-tracked mutations must be rejected; the CDC
	// budget was exhausted when the segment was evaluated.
	CDCForbidden
	// CDCContains means at least one CDC-tracked mutation was reserved in
	// this segment. Terminal: the segment's CDC link outlives discard.
	CDCContains
)

// String implements fmt.Stringer.
func (s CDCState) String() string {
	switch s {
	case CDCPermitted:
		return "PERMITTED"
	case CDCForbidden:
		return "FORBIDDEN"
	case CDCContains:
		return "CONTAINS"
	default:
		return fmt.Sprintf("CDCState(%d)", int32(s))
	}
}

// SegmentFileName returns the primary log file name for a segment id.
func SegmentFileName(id uint64) string {
	return fmt.Sprintf("CommitLog-%d-%d.log", segmentVersion, id)
}

// CDCIndexFileName returns the CDC index sidecar name corresponding to a
// segment log file name. The sidecar is written by the host once the
// segment is fully synced; a link without a sidecar is an orphan.
func CDCIndexFileName(logFileName string) string {
	return strings.TrimSuffix(logFileName, ".log") + "_cdc.idx"
}

// Segment is one append-only commit-log file. Data appends go through its
// SegmentWriter; the fields here cover identity, CDC paths and the CDC
// state machine.
//
// cdcState transitions are serialized by stateMu, which is dedicated to CDC
// bookkeeping so that size recalculation never contends with the writer's
// append critical section. The state value itself is published atomically,
// so State() reads without locking.
type Segment struct {
	id           uint64
	logPath      string
	cdcLinkPath  string
	cdcIndexPath string
	writer       SegmentWriter

	stateMu  sync.Mutex
	cdcState atomic.Int32
}

// ID returns the segment's unique, ascending id.
func (s *Segment) ID() uint64 { return s.id }

// LogPath returns the path of the primary log file.
func (s *Segment) LogPath() string { return s.logPath }

// CDCLinkPath returns the hard-link path in the CDC raw directory.
func (s *Segment) CDCLinkPath() string { return s.cdcLinkPath }

// CDCIndexPath returns the path of the CDC index sidecar.
func (s *Segment) CDCIndexPath() string { return s.cdcIndexPath }

// Writer returns the segment's writer.
func (s *Segment) Writer() SegmentWriter { return s.writer }

// State returns the current CDC state without locking.
func (s *Segment) State() CDCState {
	return CDCState(s.cdcState.Load())
}

// setStateLocked applies a CDC state transition. stateMu must be held.
// Transitions out of CDCContains are rejected: a segment that has admitted
// CDC data must keep its link and sidecar, and downgrading it would leak
// the flushed bytes from the accounting.
func (s *Segment) setStateLocked(next CDCState) error {
	cur := s.State()
	if cur == next {
		return nil
	}
	if cur == CDCContains {
		return errors.AssertionFailedf(
			"segment %d: illegal CDC state transition CONTAINS -> %s", s.id, next)
	}
	if cur == CDCForbidden && next == CDCContains {
		return errors.AssertionFailedf(
			"segment %d: illegal CDC state transition FORBIDDEN -> CONTAINS", s.id)
	}
	s.cdcState.Store(int32(next))
	return nil
}

// CompareAndSetState transitions the state from expected to next, returning
// whether the swap happened. Illegal transitions return an assertion
// error.
func (s *Segment) CompareAndSetState(expected, next CDCState) (bool, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.State() != expected {
		return false, nil
	}
	if err := s.setStateLocked(next); err != nil {
		return false, err
	}
	return true, nil
}

// MarkContains transitions PERMITTED -> CONTAINS after a CDC-tracked
// reservation succeeded. A no-op if the segment already contains CDC data.
// Calling this on a FORBIDDEN segment indicates an admission bug upstream:
// the reservation should never have been attempted.
func (s *Segment) MarkContains() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.State() == CDCContains {
		return nil
	}
	return s.setStateLocked(CDCContains)
}
