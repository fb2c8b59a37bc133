// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"testing"
	"time"

	"github.com/cockroachdb/cdclog/pkg/util/timeutil"
	"github.com/stretchr/testify/require"
)

func TestEveryN(t *testing.T) {
	testCases := []struct {
		t        time.Duration // time since start
		expected bool
	}{
		{0, true}, // the first attempt to log should always succeed
		{0, false},
		{time.Second, false},
		{time.Minute - 1, false},
		{time.Minute, true},
		{time.Minute, false},
		{time.Minute + 30*time.Second, false},
		{10 * time.Minute, true},
		{10 * time.Minute, false},
		{10*time.Minute + 59*time.Second, false},
		{11 * time.Minute, true},
	}
	start := timeutil.Now()
	en := Every(time.Minute)
	for _, tc := range testCases {
		require.Equal(t, tc.expected, en.ShouldProcess(start.Add(tc.t)))
	}
}

func TestKeyedEveryN(t *testing.T) {
	mt := timeutil.NewManualTime(timeutil.Now())
	k := EveryKeyed(10*time.Second, mt)

	require.True(t, k.ShouldProcess("ks1"))
	require.False(t, k.ShouldProcess("ks1"))
	// An unrelated key is limited independently.
	require.True(t, k.ShouldProcess("ks2"))

	mt.Advance(9 * time.Second)
	require.False(t, k.ShouldProcess("ks1"))
	mt.Advance(time.Second)
	require.True(t, k.ShouldProcess("ks1"))
	require.False(t, k.ShouldProcess("ks1"))
	require.True(t, k.ShouldProcess("ks2"))
}
