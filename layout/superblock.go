/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  2 10:12:40 2018 mstenber
 * Last modified: Wed Apr  4 15:02:11 2018 mstenber
 * Edit time:     96 min
 *
 */

// layout package describes the on-disk format of bwfs images: the
// superblock, inode and directory entry records, and the arithmetic
// that maps indexes to byte offsets within the image.
//
// Records are encoded explicitly field by field in little-endian
// order, which is what the C-style struct overlay of the formatter
// produces on every host we care about. Images are therefore not
// portable to big-endian machines.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
)

const (
	// Version of the format written by mkfs.
	Version = 1

	// SuperblockRegionSize is the space reserved at the start of
	// the image for the superblock.
	SuperblockRegionSize = 4096

	// Alignment of the bitmap regions.
	Alignment = 4096

	// SuperblockSize is the encoded size of Superblock.
	SuperblockSize = 64

	// RootIno is the inode number of the root directory; inode 0
	// (and block 0) is never handed out.
	RootIno = 1

	// RootBlock is the data block of the root directory.
	RootBlock = 1
)

var Magic = [4]byte{'B', 'W', 'F', 'S'}

var ErrShortBuffer = errors.New("buffer shorter than record")
var ErrBadMagic = errors.New("invalid bwfs magic")
var ErrCorrupt = errors.New("corrupt bwfs image")
var ErrGeometry = errors.New("invalid filesystem geometry")

// Geometry is what the formatter needs to lay out an image.
type Geometry struct {
	BlockSize   uint64
	TotalBlocks uint64
	InodeCount  uint64
}

func (self Geometry) Validate() error {
	if self.BlockSize < 2*DirEntrySize {
		return fmt.Errorf("%w: block size %d cannot hold . and ..",
			ErrGeometry, self.BlockSize)
	}
	if self.TotalBlocks < 2 {
		return fmt.Errorf("%w: need at least 2 blocks, got %d",
			ErrGeometry, self.TotalBlocks)
	}
	if self.InodeCount < 2 {
		return fmt.Errorf("%w: need at least 2 inodes, got %d",
			ErrGeometry, self.InodeCount)
	}
	if _, ok := self.imageSize(); !ok {
		return fmt.Errorf("%w: image of %d x %d bytes with %d inodes is too large",
			ErrGeometry, self.TotalBlocks, self.BlockSize, self.InodeCount)
	}
	return nil
}

// imageSize sums the regions of the image; ok is false if the total
// does not fit in int64.
func (self Geometry) imageSize() (size uint64, ok bool) {
	hi, table := bits.Mul64(self.InodeCount, InodeSize)
	if hi != 0 {
		return 0, false
	}
	hi, data := bits.Mul64(self.TotalBlocks, self.BlockSize)
	if hi != 0 {
		return 0, false
	}
	size = SuperblockRegionSize
	for _, v := range []uint64{
		alignUp(BitmapBytes(self.InodeCount), Alignment),
		alignUp(BitmapBytes(self.TotalBlocks), Alignment),
		table, data} {
		var carry uint64
		size, carry = bits.Add64(size, v, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return size, size <= math.MaxInt64
}

type Superblock struct {
	Magic            [4]byte
	Version          uint32
	BlockSize        uint64
	TotalBlocks      uint64
	InodeCount       uint64
	InodeBitmapStart uint64
	BlockBitmapStart uint64
	InodeTableStart  uint64
	DataAreaStart    uint64
}

// BitmapBytes is number of bytes needed to store count bits.
func BitmapBytes(count uint64) uint64 {
	return (count + 7) / 8
}

func alignUp(n, alignment uint64) uint64 {
	return (n + alignment - 1) / alignment * alignment
}

// NewSuperblock computes the region offsets for the given geometry.
func NewSuperblock(geo Geometry) *Superblock {
	sb := &Superblock{Magic: Magic,
		Version:     Version,
		BlockSize:   geo.BlockSize,
		TotalBlocks: geo.TotalBlocks,
		InodeCount:  geo.InodeCount}
	sb.InodeBitmapStart = SuperblockRegionSize
	sb.BlockBitmapStart = sb.InodeBitmapStart +
		alignUp(BitmapBytes(geo.InodeCount), Alignment)
	sb.InodeTableStart = sb.BlockBitmapStart +
		alignUp(BitmapBytes(geo.TotalBlocks), Alignment)
	sb.DataAreaStart = sb.InodeTableStart + geo.InodeCount*InodeSize
	return sb
}

func (self *Superblock) Geometry() Geometry {
	return Geometry{BlockSize: self.BlockSize,
		TotalBlocks: self.TotalBlocks,
		InodeCount:  self.InodeCount}
}

// Validate checks the magic and that the regions are where the
// formatter would have put them.
func (self *Superblock) Validate() error {
	if self.Magic != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, self.Magic[:])
	}
	if err := self.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	exp := NewSuperblock(self.Geometry())
	if exp.InodeBitmapStart != self.InodeBitmapStart ||
		exp.BlockBitmapStart != self.BlockBitmapStart ||
		exp.InodeTableStart != self.InodeTableStart ||
		exp.DataAreaStart != self.DataAreaStart {
		return fmt.Errorf("%w: region offsets do not match geometry",
			ErrCorrupt)
	}
	return nil
}

func (self *Superblock) ImageSize() uint64 {
	return self.DataAreaStart + self.TotalBlocks*self.BlockSize
}

func (self *Superblock) InodeOffset(ino uint64) int64 {
	return int64(self.InodeTableStart + ino*InodeSize)
}

func (self *Superblock) BlockOffset(block uint64) int64 {
	return int64(self.DataAreaStart + block*self.BlockSize)
}

func (self *Superblock) EntriesPerBlock() uint64 {
	return self.BlockSize / DirEntrySize
}

// MaxFileSize is the capacity of the direct block array.
func (self *Superblock) MaxFileSize() uint64 {
	return DirectBlocks * self.BlockSize
}

func (self *Superblock) Encode() []byte {
	b := make([]byte, SuperblockSize)
	copy(b[0:4], self.Magic[:])
	le := binary.LittleEndian
	le.PutUint32(b[4:], self.Version)
	le.PutUint64(b[8:], self.BlockSize)
	le.PutUint64(b[16:], self.TotalBlocks)
	le.PutUint64(b[24:], self.InodeCount)
	le.PutUint64(b[32:], self.InodeBitmapStart)
	le.PutUint64(b[40:], self.BlockBitmapStart)
	le.PutUint64(b[48:], self.InodeTableStart)
	le.PutUint64(b[56:], self.DataAreaStart)
	return b
}

func DecodeSuperblock(b []byte) (sb *Superblock, err error) {
	if len(b) < SuperblockSize {
		err = fmt.Errorf("%w: superblock needs %d, got %d",
			ErrShortBuffer, SuperblockSize, len(b))
		return
	}
	le := binary.LittleEndian
	sb = &Superblock{}
	copy(sb.Magic[:], b[0:4])
	sb.Version = le.Uint32(b[4:])
	sb.BlockSize = le.Uint64(b[8:])
	sb.TotalBlocks = le.Uint64(b[16:])
	sb.InodeCount = le.Uint64(b[24:])
	sb.InodeBitmapStart = le.Uint64(b[32:])
	sb.BlockBitmapStart = le.Uint64(b[40:])
	sb.InodeTableStart = le.Uint64(b[48:])
	sb.DataAreaStart = le.Uint64(b[56:])
	return
}
