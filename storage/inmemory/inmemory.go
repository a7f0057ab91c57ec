/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sun Dec 17 22:20:08 2017 mstenber
 * Last modified: Thu Apr  5 16:40:12 2018 mstenber
 * Edit time:     81 min
 *
 */

package inmemory

import (
	"fmt"
	"io"

	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/util"
)

// inMemoryDevice keeps the whole image in a byte slice; it is lost on
// Close.
type inMemoryDevice struct {
	data []byte
	lock util.MutexLocked
}

var _ storage.Device = &inMemoryDevice{}

func NewInMemoryDevice() storage.Device {
	return &inMemoryDevice{}
}

func (self *inMemoryDevice) ReadAt(b []byte, off int64) (int, error) {
	defer self.lock.Locked()()
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(self.data)) {
		return 0, io.EOF
	}
	n := copy(b, self.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (self *inMemoryDevice) WriteAt(b []byte, off int64) (int, error) {
	defer self.lock.Locked()()
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if end := off + int64(len(b)); end > int64(len(self.data)) {
		self.resize(end)
	}
	return copy(self.data[off:], b), nil
}

func (self *inMemoryDevice) resize(size int64) {
	if size <= int64(cap(self.data)) {
		old := len(self.data)
		self.data = self.data[:size]
		for i := old; i < len(self.data); i++ {
			self.data[i] = 0
		}
		return
	}
	nd := make([]byte, size)
	copy(nd, self.data)
	self.data = nd
}

func (self *inMemoryDevice) Size() int64 {
	defer self.lock.Locked()()
	return int64(len(self.data))
}

func (self *inMemoryDevice) Truncate(size int64) error {
	defer self.lock.Locked()()
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	mlog.Printf2("storage/inmemory/inmemory", "im.Truncate %d", size)
	if size < int64(len(self.data)) {
		self.data = self.data[:size]
	} else {
		self.resize(size)
	}
	return nil
}

func (self *inMemoryDevice) Sync() error {
	return nil
}

func (self *inMemoryDevice) Close() error {
	return nil
}

// inMemoryPageStore provides a PageStore that just stores pages in a
// map.
type inMemoryPageStore struct {
	pages map[uint64][]byte
	meta  []byte
	lock  util.MutexLocked
}

var _ storage.PageStore = &inMemoryPageStore{}

func NewInMemoryPageStore() storage.PageStore {
	return &inMemoryPageStore{pages: make(map[uint64][]byte)}
}

func (self *inMemoryPageStore) GetPage(n uint64) ([]byte, error) {
	defer self.lock.Locked()()
	b := self.pages[n]
	if b == nil {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

func (self *inMemoryPageStore) SetPage(n uint64, data []byte) error {
	defer self.lock.Locked()()
	mlog.Printf2("storage/inmemory/inmemory", "im.SetPage %d (%d b)", n, len(data))
	self.pages[n] = append([]byte(nil), data...)
	return nil
}

func (self *inMemoryPageStore) DeletePage(n uint64) error {
	defer self.lock.Locked()()
	delete(self.pages, n)
	return nil
}

func (self *inMemoryPageStore) GetMeta() ([]byte, error) {
	defer self.lock.Locked()()
	return self.meta, nil
}

func (self *inMemoryPageStore) SetMeta(data []byte) error {
	defer self.lock.Locked()()
	self.meta = append([]byte(nil), data...)
	return nil
}

// PageCount is the number of pages actually stored.
func (self *inMemoryPageStore) PageCount() int {
	defer self.lock.Locked()()
	return len(self.pages)
}

func (self *inMemoryPageStore) Sync() error {
	return nil
}

func (self *inMemoryPageStore) Close() error {
	return nil
}
