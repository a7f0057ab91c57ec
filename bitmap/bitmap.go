/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  2 13:02:55 2018 mstenber
 * Last modified: Thu Apr  5 10:31:08 2018 mstenber
 * Edit time:     52 min
 *
 */

// bitmap package provides the free-lists of inodes and blocks.
//
// Bit i lives in byte i/8 (least significant bit first). Every
// mutation writes the whole buffer back to its region of the image
// before returning; there is no batching.
package bitmap

import (
	"errors"
	"fmt"
	"io"

	"github.com/fingon/go-bwfs/mlog"
)

var ErrExhausted = errors.New("no free entries left")
var ErrOutOfRange = errors.New("bitmap index out of range")

// firstIndex is the first index handed out by Allocate; index 0 is
// reserved as the 'no inode'/'no block' marker.
const firstIndex = 1

type Bitmap struct {
	name   string
	bits   []byte
	count  uint64
	w      io.WriterAt
	offset int64
}

// New wraps bits (which must hold at least count bits) that are
// persisted to w at offset.
func New(name string, bits []byte, count uint64, w io.WriterAt, offset int64) (*Bitmap, error) {
	if uint64(len(bits))*8 < count {
		return nil, fmt.Errorf("%s bitmap: %d bytes cannot hold %d bits",
			name, len(bits), count)
	}
	return &Bitmap{name: name, bits: bits, count: count, w: w,
		offset: offset}, nil
}

// Load reads the bitmap region of count bits at offset.
func Load(name string, rw ReaderWriterAt, count uint64, offset int64) (*Bitmap, error) {
	bits := make([]byte, (count+7)/8)
	_, err := rw.ReadAt(bits, offset)
	if err != nil {
		return nil, fmt.Errorf("reading %s bitmap: %w", name, err)
	}
	return New(name, bits, count, rw, offset)
}

type ReaderWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

func (self *Bitmap) Count() uint64 {
	return self.count
}

func (self *Bitmap) Bytes() []byte {
	return self.bits
}

func (self *Bitmap) IsSet(i uint64) bool {
	if i >= self.count {
		return false
	}
	return self.bits[i/8]&(1<<(i%8)) != 0
}

func (self *Bitmap) set(i uint64, value bool) {
	if value {
		self.bits[i/8] |= 1 << (i % 8)
	} else {
		self.bits[i/8] &^= 1 << (i % 8)
	}
}

// update flips bit i to value and persists; on write failure the
// in-memory bit is restored.
func (self *Bitmap) update(i uint64, value bool) error {
	old := self.IsSet(i)
	self.set(i, value)
	if err := self.Flush(); err != nil {
		self.set(i, old)
		return err
	}
	return nil
}

// Flush writes the whole buffer to its region.
func (self *Bitmap) Flush() error {
	_, err := self.w.WriteAt(self.bits, self.offset)
	if err != nil {
		return fmt.Errorf("writing %s bitmap: %w", self.name, err)
	}
	return nil
}

// Allocate returns the lowest clear index >= 1 after marking it used.
func (self *Bitmap) Allocate() (uint64, error) {
	for i := uint64(firstIndex); i < self.count; i++ {
		if self.bits[i/8] == 0xff {
			i |= 7
			continue
		}
		if self.IsSet(i) {
			continue
		}
		if err := self.update(i, true); err != nil {
			return 0, err
		}
		mlog.Printf2("bitmap/bitmap", "%s.Allocate => %d", self.name, i)
		return i, nil
	}
	return 0, fmt.Errorf("%s: %w", self.name, ErrExhausted)
}

// Reserve marks index used regardless of its current state.
func (self *Bitmap) Reserve(i uint64) error {
	if i >= self.count {
		return fmt.Errorf("%s %d: %w", self.name, i, ErrOutOfRange)
	}
	if self.IsSet(i) {
		return nil
	}
	return self.update(i, true)
}

// Free clears index; freeing a free index changes nothing.
func (self *Bitmap) Free(i uint64) error {
	mlog.Printf2("bitmap/bitmap", "%s.Free %d", self.name, i)
	if i >= self.count {
		return fmt.Errorf("%s %d: %w", self.name, i, ErrOutOfRange)
	}
	if !self.IsSet(i) {
		return nil
	}
	return self.update(i, false)
}

// CountFree sums the clear bits over the whole index range.
func (self *Bitmap) CountFree() (n uint64) {
	for i := uint64(0); i < self.count; i++ {
		if !self.IsSet(i) {
			n++
		}
	}
	return
}
