// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package base

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.EqualValues(t, 4096, cfg.CDCTotalSpaceMB)
	require.EqualValues(t, 250, cfg.CDCFreeSpaceCheckIntervalMS)
	require.EqualValues(t, 32, cfg.CommitLogSegmentSizeMB)
	require.EqualValues(t, 32<<20, cfg.SegmentBytes())
	require.EqualValues(t, int64(4096)<<20, cfg.CDCBudgetBytes())
}

func TestLoadConfig(t *testing.T) {
	const in = `
commitlog_directory: /data/commitlog
cdc_enabled: true
cdc_raw_directory: /data/cdc_raw
cdc_total_space_mb: 64
`
	cfg, err := LoadConfig(strings.NewReader(in))
	require.NoError(t, err)
	require.True(t, cfg.CDCEnabled)
	require.Equal(t, "/data/cdc_raw", cfg.CDCRawDirectory)
	require.EqualValues(t, 64, cfg.CDCTotalSpaceMB)
	// Unset fields keep their defaults.
	require.EqualValues(t, 250, cfg.CDCFreeSpaceCheckIntervalMS)
	require.EqualValues(t, 32, cfg.CommitLogSegmentSizeMB)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigUnknownField(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("no_such_option: 1\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mut    func(*Config)
		expErr string
	}{
		{"missing clog dir", func(c *Config) { c.CommitLogDirectory = "" }, "commitlog_directory"},
		{"zero segment size", func(c *Config) { c.CommitLogSegmentSizeMB = 0 }, "segment_size"},
		{"cdc without raw dir", func(c *Config) { c.CDCRawDirectory = "" }, "cdc_raw_directory"},
		{"negative budget", func(c *Config) { c.CDCTotalSpaceMB = -1 }, "cdc_total_space_mb"},
		{"zero interval", func(c *Config) { c.CDCFreeSpaceCheckIntervalMS = 0 }, "interval"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CommitLogDirectory = "/data/commitlog"
			cfg.CDCEnabled = true
			cfg.CDCRawDirectory = "/data/cdc_raw"
			tc.mut(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expErr)
		})
	}

	// A zero budget is legal; it forbids all CDC writes but is not a
	// configuration error.
	cfg := DefaultConfig()
	cfg.CommitLogDirectory = "/data/commitlog"
	cfg.CDCEnabled = true
	cfg.CDCRawDirectory = "/data/cdc_raw"
	cfg.CDCTotalSpaceMB = 0
	require.NoError(t, cfg.Validate())
}
