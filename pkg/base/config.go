// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package base

import (
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultCDCTotalSpaceMB is the default bound on CDC bytes on disk.
	DefaultCDCTotalSpaceMB = 4096

	// DefaultCDCFreeSpaceCheckIntervalMS is the default denominator of the
	// recalculation rate limit.
	DefaultCDCFreeSpaceCheckIntervalMS = 250

	// DefaultCommitLogSegmentSizeMB is the default nominal segment size.
	DefaultCommitLogSegmentSizeMB = 32
)

// Config collects the commit-log settings recognized by this node. It is
// populated once at startup and read-only afterwards; components receive it
// by value.
type Config struct {
	// CommitLogDirectory holds the primary commit-log segment files.
	CommitLogDirectory string `yaml:"commitlog_directory"`

	// CDCEnabled selects the CDC-aware allocator over the standard one.
	CDCEnabled bool `yaml:"cdc_enabled"`

	// CDCRawDirectory holds hard links to segments carrying CDC data,
	// consumed out-of-band by the CDC consumer.
	CDCRawDirectory string `yaml:"cdc_raw_directory"`

	// CDCTotalSpaceMB bounds the CDC bytes counted across unflushed
	// segments and the raw directory.
	CDCTotalSpaceMB int64 `yaml:"cdc_total_space_mb"`

	// CDCFreeSpaceCheckIntervalMS throttles how often the raw directory is
	// re-measured.
	CDCFreeSpaceCheckIntervalMS int64 `yaml:"cdc_free_space_check_interval_ms"`

	// CommitLogSegmentSizeMB is the nominal size of one segment.
	CommitLogSegmentSizeMB int64 `yaml:"commitlog_segment_size_mb"`
}

// DefaultConfig returns a Config with all defaults applied and no
// directories set.
func DefaultConfig() Config {
	return Config{
		CDCTotalSpaceMB:             DefaultCDCTotalSpaceMB,
		CDCFreeSpaceCheckIntervalMS: DefaultCDCFreeSpaceCheckIntervalMS,
		CommitLogSegmentSizeMB:      DefaultCommitLogSegmentSizeMB,
	}
}

// LoadConfig reads a YAML config, filling unset numeric fields with
// defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	b, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.CommitLogDirectory == "" {
		return errors.New("commitlog_directory must be set")
	}
	if c.CommitLogSegmentSizeMB <= 0 {
		return errors.Newf("commitlog_segment_size_mb must be positive, got %d", c.CommitLogSegmentSizeMB)
	}
	if c.CDCEnabled {
		if c.CDCRawDirectory == "" {
			return errors.New("cdc_raw_directory must be set when cdc_enabled")
		}
		if c.CDCTotalSpaceMB < 0 {
			return errors.Newf("cdc_total_space_mb must be non-negative, got %d", c.CDCTotalSpaceMB)
		}
		if c.CDCFreeSpaceCheckIntervalMS <= 0 {
			return errors.Newf("cdc_free_space_check_interval_ms must be positive, got %d", c.CDCFreeSpaceCheckIntervalMS)
		}
	}
	return nil
}

// CDCBudgetBytes returns the CDC budget in bytes.
func (c Config) CDCBudgetBytes() int64 {
	return c.CDCTotalSpaceMB << 20
}

// SegmentBytes returns the nominal segment size in bytes.
func (c Config) SegmentBytes() int64 {
	return c.CommitLogSegmentSizeMB << 20
}
