// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"sync"
	"time"

	"github.com/cockroachdb/cdclog/pkg/util/timeutil"
)

// EveryN provides a way to rate limit spammy log messages. It tracks how
// recently a given event has occurred so that it can determine whether it's
// worth logging again.
//
// The zero value is usable and is equivalent to Every(0), meaning that all
// calls to ShouldProcess will return true.
type EveryN struct {
	// N is the minimum duration of time between log messages.
	N time.Duration

	mu            sync.Mutex
	lastProcessed time.Time
}

// Every is a convenience constructor for an EveryN object that allows a log
// message every n duration.
func Every(n time.Duration) EveryN {
	return EveryN{N: n}
}

// ShouldProcess returns whether at least N time has passed since the last
// event.
func (e *EveryN) ShouldProcess(now time.Time) bool {
	var shouldProcess bool
	e.mu.Lock()
	if now.Sub(e.lastProcessed) >= e.N {
		shouldProcess = true
		e.lastProcessed = now
	}
	e.mu.Unlock()
	return shouldProcess
}

// KeyedEveryN rate limits events independently per string key. It is the
// spam guard behind per-keyspace rejection warnings: each key may emit at
// most once per N window.
type KeyedEveryN struct {
	// N is the minimum duration of time between events for a given key.
	N time.Duration

	timeSource timeutil.TimeSource

	mu struct {
		sync.Mutex
		lastProcessed map[string]time.Time
	}
}

// EveryKeyed constructs a KeyedEveryN allowing one event per key per n
// duration, reading time from the given source.
func EveryKeyed(n time.Duration, ts timeutil.TimeSource) *KeyedEveryN {
	k := &KeyedEveryN{N: n, timeSource: ts}
	k.mu.lastProcessed = make(map[string]time.Time)
	return k
}

// ShouldProcess returns whether at least N time has passed since the last
// event for this key.
func (k *KeyedEveryN) ShouldProcess(key string) bool {
	now := k.timeSource.Now()
	k.mu.Lock()
	defer k.mu.Unlock()
	if last, ok := k.mu.lastProcessed[key]; ok && now.Sub(last) < k.N {
		return false
	}
	k.mu.lastProcessed[key] = now
	return true
}
