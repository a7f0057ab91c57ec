/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 15:44:41 2018 mstenber
 * Last modified: Thu Apr  5 17:02:35 2018 mstenber
 * Edit time:     96 min
 *
 */

package file

import (
	"os"
	"path/filepath"

	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
)

// fileDevice is the image as a plain host file, byte for byte.
type fileDevice struct {
	f *os.File
}

var _ storage.Device = &fileDevice{}

// NewFileDevice opens (or creates) the image file at path.
func NewFileDevice(path string) (storage.Device, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	mlog.Printf2("storage/file/file", "NewFileDevice %s", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	return &fileDevice{f: f}, nil
}

func (self *fileDevice) ReadAt(b []byte, off int64) (int, error) {
	return self.f.ReadAt(b, off)
}

func (self *fileDevice) WriteAt(b []byte, off int64) (int, error) {
	return self.f.WriteAt(b, off)
}

func (self *fileDevice) Size() int64 {
	fi, err := self.f.Stat()
	if err != nil {
		mlog.Printf2("storage/file/file", "fd.Size stat failed: %v", err)
		return 0
	}
	return fi.Size()
}

func (self *fileDevice) Truncate(size int64) error {
	return self.f.Truncate(size)
}

func (self *fileDevice) Sync() error {
	return self.f.Sync()
}

func (self *fileDevice) Close() error {
	return self.f.Close()
}
