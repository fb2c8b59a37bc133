// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package humanizeutil

import (
	"github.com/cockroachdb/redact"
	"github.com/dustin/go-humanize"
)

// IBytes formats a byte count with IEC units (e.g. "32 MiB"). Negative
// values are rendered with a leading minus.
func IBytes(value int64) redact.SafeString {
	if value < 0 {
		return redact.SafeString("-" + humanize.IBytes(uint64(-value)))
	}
	return redact.SafeString(humanize.IBytes(uint64(value)))
}
