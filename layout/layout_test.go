/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  2 12:30:11 2018 mstenber
 * Last modified: Wed Apr  4 15:10:52 2018 mstenber
 * Edit time:     28 min
 *
 */

package layout

import (
	"errors"
	"testing"

	"github.com/stvp/assert"
)

func TestSuperblock(t *testing.T) {
	t.Parallel()
	geo := Geometry{BlockSize: 4096, TotalBlocks: 100000, InodeCount: 1000}
	sb := NewSuperblock(geo)
	assert.Nil(t, sb.Validate())
	assert.Equal(t, sb.InodeBitmapStart, uint64(4096))
	// 125 bytes of inode bits round up to one aligned region
	assert.Equal(t, sb.BlockBitmapStart, uint64(8192))
	// 12500 bytes of block bits need 4 regions
	assert.Equal(t, sb.InodeTableStart, uint64(8192+16384))
	assert.Equal(t, sb.DataAreaStart, sb.InodeTableStart+1000*InodeSize)
	assert.Equal(t, sb.ImageSize(), sb.DataAreaStart+100000*4096)
	assert.Equal(t, sb.EntriesPerBlock(), uint64(51))
	assert.Equal(t, sb.MaxFileSize(), uint64(12*4096))

	b := sb.Encode()
	assert.Equal(t, len(b), SuperblockSize)
	assert.Equal(t, string(b[:4]), "BWFS")
	sb2, err := DecodeSuperblock(b)
	assert.Nil(t, err)
	assert.Equal(t, *sb2, *sb)

	_, err = DecodeSuperblock(b[:SuperblockSize-1])
	assert.True(t, errors.Is(err, ErrShortBuffer))

	sb2.Magic[0] = 'X'
	assert.True(t, errors.Is(sb2.Validate(), ErrBadMagic))

	sb2 = NewSuperblock(geo)
	sb2.DataAreaStart++
	assert.True(t, errors.Is(sb2.Validate(), ErrCorrupt))

	// offsets consistent with a geometry whose image size overflows
	sb2 = NewSuperblock(Geometry{BlockSize: 1 << 62, TotalBlocks: 8, InodeCount: 2})
	assert.True(t, errors.Is(sb2.Validate(), ErrCorrupt))
	sb2, err = DecodeSuperblock(sb2.Encode())
	assert.Nil(t, err)
	assert.True(t, errors.Is(sb2.Validate(), ErrCorrupt))
}

func TestGeometry(t *testing.T) {
	t.Parallel()
	ok := Geometry{BlockSize: 512, TotalBlocks: 2, InodeCount: 2}
	assert.Nil(t, ok.Validate())

	bad := []Geometry{
		Geometry{BlockSize: 100, TotalBlocks: 10, InodeCount: 10},
		Geometry{BlockSize: 512, TotalBlocks: 1, InodeCount: 10},
		Geometry{BlockSize: 512, TotalBlocks: 10, InodeCount: 1},
		// sizes that wrap around uint64 / int64
		Geometry{BlockSize: 1 << 62, TotalBlocks: 8, InodeCount: 2},
		Geometry{BlockSize: 512, TotalBlocks: 2, InodeCount: 1 << 60},
		Geometry{BlockSize: 1 << 32, TotalBlocks: 1 << 31, InodeCount: 2},
	}
	for _, geo := range bad {
		assert.True(t, errors.Is(geo.Validate(), ErrGeometry))
	}
}

func TestInode(t *testing.T) {
	t.Parallel()
	inode := Inode{Mode: S_IFDIR | 0755, Size: 1234567}
	for i := range inode.Direct {
		inode.Direct[i] = uint64(i * 1000)
	}
	assert.True(t, inode.IsDir())
	assert.Equal(t, inode.Perm(), uint16(0755))
	assert.Equal(t, inode.BlockCount(), DirectBlocks-1)

	b := inode.Encode()
	assert.Equal(t, len(b), InodeSize)
	// mode + padding, then size at offset 8
	assert.Equal(t, b[0:8], []byte{0xed, 0x41, 0, 0, 0, 0, 0, 0})
	inode2, err := DecodeInode(b)
	assert.Nil(t, err)
	assert.Equal(t, inode2, inode)

	_, err = DecodeInode(b[:InodeSize-1])
	assert.True(t, errors.Is(err, ErrShortBuffer))

	file := Inode{Mode: S_IFREG | 0644}
	assert.True(t, !file.IsDir())
}

func TestDirEntry(t *testing.T) {
	t.Parallel()
	e, err := NewDirEntry(42, "foo", false)
	assert.Nil(t, err)
	assert.Equal(t, e.FileType, uint8(DirTypeFile))
	assert.True(t, e.Matches("foo"))
	assert.True(t, !e.Matches("fo"))
	assert.True(t, !e.Matches("foox"))
	assert.True(t, !e.IsFree())

	b := e.Encode()
	assert.Equal(t, len(b), DirEntrySize)
	assert.Equal(t, b[8], uint8(3))
	assert.Equal(t, string(b[16:19]), "foo")
	e2, err := DecodeDirEntry(b)
	assert.Nil(t, err)
	assert.Equal(t, e2, e)
	assert.Equal(t, e2.NameString(), "foo")

	d, err := NewDirEntry(7, "dir", true)
	assert.Nil(t, err)
	assert.True(t, d.IsDir())

	long := make([]byte, DirNameMax)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewDirEntry(1, string(long), false)
	assert.Nil(t, err)
	_, err = NewDirEntry(1, string(long)+"y", false)
	assert.True(t, err != nil)

	_, err = DecodeDirEntry(b[:10])
	assert.True(t, errors.Is(err, ErrShortBuffer))

	var free DirEntry
	assert.True(t, free.IsFree())
}
