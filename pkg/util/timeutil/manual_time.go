// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package timeutil

import (
	"sync"
	"time"
)

// ManualTime is a TimeSource whose time is only advanced explicitly. Useful
// for tests of time-dependent behavior that must not sleep.
type ManualTime struct {
	mu struct {
		sync.Mutex
		now time.Time
	}
}

// NewManualTime constructs a ManualTime set to the given initial time.
func NewManualTime(initial time.Time) *ManualTime {
	m := &ManualTime{}
	m.mu.now = initial
	return m
}

var _ TimeSource = (*ManualTime)(nil)

// Now returns the current (manually set) time.
func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.now
}

// Advance moves the clock forward by d.
func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.now = m.mu.now.Add(d)
}
