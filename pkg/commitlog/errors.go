// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// ErrCDCWriteRejected is the reference error marking rejections of
// CDC-tracked mutations while the CDC budget is exhausted. Soft: the write
// is not durable and the client may retry once the consumer drains the raw
// directory.
var ErrCDCWriteRejected = errors.New("CDC write rejected")

func newCDCWriteRejectedError(keyspace, cdcDir string) error {
	return errors.Mark(
		errors.Newf("rejecting mutation to keyspace %s; free up space in %s by processing CDC logs",
			keyspace, redact.Safe(cdcDir)),
		ErrCDCWriteRejected)
}

// IsCDCWriteRejected reports whether err is a CDC admission rejection.
func IsCDCWriteRejected(err error) bool {
	return errors.Is(err, ErrCDCWriteRejected)
}
