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

// DirectorySizer measures the total byte size of regular files under a
// directory. The accumulator lives on the walk's stack; callers publish the
// returned total themselves, so concurrent walks (which the size tracker's
// single-slot executor rules out anyway) could not corrupt shared state.
type DirectorySizer struct {
	fs  vfs.FS
	dir string
}

// MakeDirectorySizer returns a sizer rooted at dir.
func MakeDirectorySizer(fs vfs.FS, dir string) DirectorySizer {
	return DirectorySizer{fs: fs, dir: dir}
}

// Walk returns the summed size of all regular files under the root. A root
// that does not exist sizes to zero: the consumer may not have been
// provisioned yet.
func (d DirectorySizer) Walk() (int64, error) {
	return d.walk(d.dir)
}

func (d DirectorySizer) walk(dir string) (int64, error) {
	names, err := d.fs.List(dir)
	if err != nil {
		if oserror.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "listing %s", dir)
	}
	var total int64
	for _, name := range names {
		path := d.fs.PathJoin(dir, name)
		fi, err := d.fs.Stat(path)
		if err != nil {
			// A consumer may unlink files mid-walk; skip and keep
			// summing.
			if oserror.IsNotExist(err) {
				continue
			}
			return 0, errors.Wrapf(err, "stat %s", path)
		}
		if fi.IsDir() {
			sub, err := d.walk(path)
			if err != nil {
				return 0, err
			}
			total += sub
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		total += fi.Size()
	}
	return total, nil
}
