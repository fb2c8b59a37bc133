// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/pebble/vfs"
)

// CDCLinkManager maintains the hard links from active segments into the
// CDC raw directory. Linking (rather than copying) lets the consumer watch
// segment growth in real time while the primary log keeps writing.
type CDCLinkManager struct {
	fs     vfs.FS
	cdcDir string
}

// MakeCDCLinkManager returns a link manager rooted at the CDC raw
// directory.
func MakeCDCLinkManager(fs vfs.FS, cdcDir string) CDCLinkManager {
	return CDCLinkManager{fs: fs, cdcDir: cdcDir}
}

// CreateLink hard-links the segment's log file into the CDC raw directory.
// Failure here is fatal to segment creation: without the link the node
// cannot honor the CDC contract for data written to this segment.
func (lm CDCLinkManager) CreateLink(seg *Segment) error {
	if err := lm.fs.Link(seg.LogPath(), seg.CDCLinkPath()); err != nil {
		return errors.Wrapf(err, "hard-linking segment %d into %s", seg.ID(), lm.cdcDir)
	}
	return nil
}

// RemoveLink deletes the segment's CDC link, tolerating absence (the file
// may never have existed when processing a discard during startup).
func (lm CDCLinkManager) RemoveLink(seg *Segment) error {
	return lm.removeIfExists(seg.CDCLinkPath())
}

// RemoveIndex deletes the segment's CDC index sidecar, tolerating absence.
func (lm CDCLinkManager) RemoveIndex(seg *Segment) error {
	return lm.removeIfExists(seg.CDCIndexPath())
}

func (lm CDCLinkManager) removeIfExists(path string) error {
	if err := lm.fs.Remove(path); err != nil && !oserror.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

// exists reports whether path exists.
func (lm CDCLinkManager) exists(path string) (bool, error) {
	if _, err := lm.fs.Stat(path); err != nil {
		if oserror.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
