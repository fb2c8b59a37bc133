// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

// TrackerTestingKnobs let tests intercept the size tracker's async recalc
// without depending on timing.
type TrackerTestingKnobs struct {
	// DisableRecalcRateLimit skips the rate-limiter wait so tests can
	// drive recalcs back to back.
	DisableRecalcRateLimit bool

	// OnRecalc is called at the end of every recalc attempt with the
	// accounted size and the walk error, if any.
	OnRecalc func(size int64, err error)
}
