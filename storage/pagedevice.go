/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 10:05:11 2018 mstenber
 * Last modified: Fri Apr  6 10:44:30 2018 mstenber
 * Edit time:     118 min
 *
 */

package storage

import (
	"fmt"
	"io"

	"github.com/bluele/gcache"
	"github.com/fingon/go-bwfs/codec"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/util"
	ugcodec "github.com/ugorji/go/codec"
)

// deviceMeta is stored (as CBOR) under MetaKey.
type deviceMeta struct {
	PageSize int64 `codec:"p"`
	Size     int64 `codec:"s"`
}

var cborHandle ugcodec.CborHandle

// PageDevice implements Device on top of a PageStore. Pages that are
// all zeros are not stored at all, so sparse images stay small.
type PageDevice struct {
	store    PageStore
	codec    codec.Codec
	cache    gcache.Cache
	pageSize int64
	size     int64
	closed   bool
	lock     util.MutexLocked
}

var _ Device = &PageDevice{}

func NewPageDevice(store PageStore, config BackendConfiguration) (*PageDevice, error) {
	self := &PageDevice{store: store, codec: config.Codec}
	if self.codec == nil {
		self.codec = &codec.CodecChain{}
	}
	cacheSize := config.CacheSize
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	if cacheSize > 0 {
		self.cache = gcache.New(cacheSize).
			ARC().
			Build()
	}
	b, err := store.GetMeta()
	if err != nil {
		return nil, err
	}
	if b == nil {
		self.pageSize = int64(config.PageSize)
		if self.pageSize <= 0 {
			self.pageSize = DefaultPageSize
		}
		if err = self.writeMeta(); err != nil {
			return nil, err
		}
		return self, nil
	}
	var meta deviceMeta
	dec := ugcodec.NewDecoderBytes(b, &cborHandle)
	if err = dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding device metadata: %w", err)
	}
	if meta.PageSize <= 0 || meta.Size < 0 {
		return nil, fmt.Errorf("invalid device metadata %+v", meta)
	}
	if config.PageSize != 0 && int64(config.PageSize) != meta.PageSize {
		mlog.Printf2("storage/pagedevice", "pd.NewPageDevice - using stored page size %d instead of %d", meta.PageSize, config.PageSize)
	}
	self.pageSize = meta.PageSize
	self.size = meta.Size
	return self, nil
}

func (self *PageDevice) writeMeta() error {
	var b []byte
	enc := ugcodec.NewEncoderBytes(&b, &cborHandle)
	meta := deviceMeta{PageSize: self.pageSize, Size: self.size}
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return self.store.SetMeta(b)
}

func (self *PageDevice) PageSize() int64 {
	return self.pageSize
}

func (self *PageDevice) Size() int64 {
	defer self.lock.Locked()()
	return self.size
}

// getPage returns a copy of page n; missing pages are zeros.
func (self *PageDevice) getPage(n uint64) ([]byte, error) {
	if self.cache != nil {
		v, err := self.cache.Get(n)
		if err == nil {
			return append([]byte(nil), v.([]byte)...), nil
		}
	}
	data := make([]byte, self.pageSize)
	b, err := self.store.GetPage(n)
	if err != nil {
		return nil, err
	}
	if b != nil {
		dec, err := self.codec.DecodeBytes(b, PageKey(n))
		if err != nil {
			return nil, fmt.Errorf("decoding page %d: %w", n, err)
		}
		if int64(len(dec)) != self.pageSize {
			return nil, fmt.Errorf("page %d has %d bytes, expected %d",
				n, len(dec), self.pageSize)
		}
		copy(data, dec)
	}
	self.cachePage(n, data)
	return data, nil
}

func (self *PageDevice) cachePage(n uint64, data []byte) {
	if self.cache == nil {
		return
	}
	self.cache.Set(n, append([]byte(nil), data...))
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func (self *PageDevice) setPage(n uint64, data []byte) error {
	mlog.Printf2("storage/pagedevice", "pd.setPage %d", n)
	if isZero(data) {
		if err := self.store.DeletePage(n); err != nil {
			return err
		}
	} else {
		enc, err := self.codec.EncodeBytes(data, PageKey(n))
		if err != nil {
			return fmt.Errorf("encoding page %d: %w", n, err)
		}
		if err = self.store.SetPage(n, enc); err != nil {
			if self.cache != nil {
				self.cache.Remove(n)
			}
			return err
		}
	}
	self.cachePage(n, data)
	return nil
}

func (self *PageDevice) ReadAt(b []byte, off int64) (n int, err error) {
	defer self.lock.Locked()()
	if self.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= self.size {
		return 0, io.EOF
	}
	want := b
	if int64(len(want)) > self.size-off {
		want = want[:self.size-off]
	}
	for n < len(want) {
		pos := off + int64(n)
		page, err := self.getPage(uint64(pos / self.pageSize))
		if err != nil {
			return n, err
		}
		n += copy(want[n:], page[pos%self.pageSize:])
	}
	if n < len(b) {
		err = io.EOF
	}
	return
}

func (self *PageDevice) WriteAt(b []byte, off int64) (n int, err error) {
	defer self.lock.Locked()()
	if self.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	for n < len(b) {
		pos := off + int64(n)
		pn := uint64(pos / self.pageSize)
		page, err := self.getPage(pn)
		if err != nil {
			return n, err
		}
		got := copy(page[pos%self.pageSize:], b[n:])
		if err = self.setPage(pn, page); err != nil {
			return n, err
		}
		n += got
	}
	if end := off + int64(n); end > self.size {
		self.size = end
		err = self.writeMeta()
	}
	return
}

func (self *PageDevice) Truncate(size int64) error {
	defer self.lock.Locked()()
	if self.closed {
		return ErrClosed
	}
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	mlog.Printf2("storage/pagedevice", "pd.Truncate %d => %d", self.size, size)
	if size < self.size {
		// Zero the tail of the last partial page, and drop the rest
		if rem := size % self.pageSize; rem != 0 {
			pn := uint64(size / self.pageSize)
			page, err := self.getPage(pn)
			if err != nil {
				return err
			}
			for i := rem; i < self.pageSize; i++ {
				page[i] = 0
			}
			if err = self.setPage(pn, page); err != nil {
				return err
			}
		}
		first := uint64((size + self.pageSize - 1) / self.pageSize)
		last := uint64((self.size + self.pageSize - 1) / self.pageSize)
		for pn := first; pn < last; pn++ {
			if err := self.store.DeletePage(pn); err != nil {
				return err
			}
			if self.cache != nil {
				self.cache.Remove(pn)
			}
		}
	}
	self.size = size
	return self.writeMeta()
}

func (self *PageDevice) Sync() error {
	defer self.lock.Locked()()
	if self.closed {
		return ErrClosed
	}
	return self.store.Sync()
}

func (self *PageDevice) Close() error {
	defer self.lock.Locked()()
	if self.closed {
		return nil
	}
	self.closed = true
	if self.cache != nil {
		self.cache.Purge()
	}
	return self.store.Close()
}
