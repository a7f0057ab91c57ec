/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 13:02:10 2018 mstenber
 * Last modified: Thu Apr  5 14:40:27 2018 mstenber
 * Edit time:     14 min
 *
 */

package fs

import (
	"errors"
	"syscall"

	"github.com/fingon/go-bwfs/bitmap"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var (
	ErrNotFound    = errors.New("no such file or directory")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrExists      = errors.New("file exists")
	ErrDirFull     = errors.New("directory has no free slots")
	ErrTooLarge    = errors.New("file too large")
	ErrNameTooLong = errors.New("file name too long")
	ErrNotEmpty    = errors.New("directory not empty")
	ErrInvalid     = errors.New("invalid argument")
	ErrCorrupt     = errors.New("corrupt filesystem structure")
)

var errorStatuses = []struct {
	err    error
	status fuse.Status
}{
	{ErrNotFound, fuse.Status(syscall.ENOENT)},
	{ErrNotDir, fuse.Status(syscall.ENOTDIR)},
	{ErrIsDir, fuse.Status(syscall.EISDIR)},
	{ErrExists, fuse.Status(syscall.EEXIST)},
	{ErrDirFull, fuse.Status(syscall.ENOSPC)},
	{bitmap.ErrExhausted, fuse.Status(syscall.ENOSPC)},
	{ErrTooLarge, fuse.Status(syscall.EFBIG)},
	{ErrNameTooLong, fuse.Status(syscall.ENAMETOOLONG)},
	{ErrNotEmpty, fuse.Status(syscall.ENOTEMPTY)},
	{ErrInvalid, fuse.Status(syscall.EINVAL)},
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// errorStatus maps error to what is returned to the kernel; anything
// unrecognized (device errors, corruption) is EIO.
func errorStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	for _, v := range errorStatuses {
		if errors.Is(err, v.err) {
			return v.status
		}
	}
	mlog.Printf2("fs/errors", "I/O error: %v", err)
	return fuse.EIO
}
