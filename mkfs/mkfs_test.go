/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 12:01:44 2018 mstenber
 * Last modified: Thu Apr  5 11:20:03 2018 mstenber
 * Edit time:     17 min
 *
 */

package mkfs

import (
	"errors"
	"testing"

	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/storage/inmemory"
	"github.com/stvp/assert"
)

func TestFormat(t *testing.T) {
	t.Parallel()
	dev := inmemory.NewInMemoryDevice()
	// Old garbage must not survive
	dev.WriteAt([]byte{0xff, 0xff, 0xff}, 4096)
	geo := layout.Geometry{BlockSize: 512, TotalBlocks: 64, InodeCount: 16}
	sb, err := Format(dev, geo)
	assert.Nil(t, err)
	assert.Equal(t, dev.Size(), int64(sb.ImageSize()))

	b := make([]byte, layout.SuperblockSize)
	assert.Nil(t, storage.ReadFull(dev, b, 0))
	sb2, err := layout.DecodeSuperblock(b)
	assert.Nil(t, err)
	assert.Nil(t, sb2.Validate())
	assert.Equal(t, *sb2, *sb)

	// only index 1 set in both bitmaps
	b = make([]byte, 2)
	assert.Nil(t, storage.ReadFull(dev, b, int64(sb.InodeBitmapStart)))
	assert.Equal(t, b, []byte{2, 0})
	assert.Nil(t, storage.ReadFull(dev, b, int64(sb.BlockBitmapStart)))
	assert.Equal(t, b, []byte{2, 0})

	b = make([]byte, layout.InodeSize)
	assert.Nil(t, storage.ReadFull(dev, b, sb.InodeOffset(layout.RootIno)))
	root, err := layout.DecodeInode(b)
	assert.Nil(t, err)
	assert.True(t, root.IsDir())
	assert.Equal(t, root.Perm(), uint16(0755))
	assert.Equal(t, root.Size, uint64(2*layout.DirEntrySize))
	assert.Equal(t, root.Direct[0], uint64(layout.RootBlock))
	assert.Equal(t, root.BlockCount(), 1)

	b = make([]byte, 3*layout.DirEntrySize)
	assert.Nil(t, storage.ReadFull(dev, b, sb.BlockOffset(layout.RootBlock)))
	for i, name := range []string{".", ".."} {
		e, err := layout.DecodeDirEntry(b[i*layout.DirEntrySize:])
		assert.Nil(t, err)
		assert.True(t, e.Matches(name))
		assert.Equal(t, e.Inode, uint64(layout.RootIno))
		assert.True(t, e.IsDir())
	}
	e, err := layout.DecodeDirEntry(b[2*layout.DirEntrySize:])
	assert.Nil(t, err)
	assert.True(t, e.IsFree())
}

func TestFormatBadGeometry(t *testing.T) {
	t.Parallel()
	dev := inmemory.NewInMemoryDevice()
	_, err := Format(dev, layout.Geometry{BlockSize: 512, TotalBlocks: 64, InodeCount: 1})
	assert.True(t, errors.Is(err, layout.ErrGeometry))
	assert.Equal(t, dev.Size(), int64(0))
}
