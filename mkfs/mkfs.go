/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 11:30:05 2018 mstenber
 * Last modified: Thu Apr  5 11:12:47 2018 mstenber
 * Edit time:     38 min
 *
 */

// mkfs package writes a fresh, empty bwfs image onto a device.
package mkfs

import (
	"fmt"

	"github.com/fingon/go-bwfs/bitmap"
	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
)

// Format destroys whatever dev contains and lays out an empty
// filesystem of the given geometry: inode 1 is the root directory,
// stored in block 1, with '.' and '..' both pointing at itself.
func Format(dev storage.Device, geo layout.Geometry) (*layout.Superblock, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	sb := layout.NewSuperblock(geo)
	mlog.Printf2("mkfs/mkfs", "Format %+v => %d bytes", geo, sb.ImageSize())

	// Truncating to zero first guarantees the regions read as zeros
	if err := dev.Truncate(0); err != nil {
		return nil, err
	}
	if err := dev.Truncate(int64(sb.ImageSize())); err != nil {
		return nil, err
	}
	if _, err := dev.WriteAt(sb.Encode(), 0); err != nil {
		return nil, fmt.Errorf("writing superblock: %w", err)
	}

	inodes, err := bitmap.New("inode",
		make([]byte, layout.BitmapBytes(geo.InodeCount)),
		geo.InodeCount, dev, int64(sb.InodeBitmapStart))
	if err != nil {
		return nil, err
	}
	if err = inodes.Reserve(layout.RootIno); err != nil {
		return nil, err
	}
	blocks, err := bitmap.New("block",
		make([]byte, layout.BitmapBytes(geo.TotalBlocks)),
		geo.TotalBlocks, dev, int64(sb.BlockBitmapStart))
	if err != nil {
		return nil, err
	}
	if err = blocks.Reserve(layout.RootBlock); err != nil {
		return nil, err
	}

	root := layout.Inode{Mode: layout.S_IFDIR | 0755,
		Size: 2 * layout.DirEntrySize}
	root.Direct[0] = layout.RootBlock
	if _, err = dev.WriteAt(root.Encode(), sb.InodeOffset(layout.RootIno)); err != nil {
		return nil, fmt.Errorf("writing root inode: %w", err)
	}

	block := make([]byte, geo.BlockSize)
	for i, name := range []string{".", ".."} {
		e, err := layout.NewDirEntry(layout.RootIno, name, true)
		if err != nil {
			return nil, err
		}
		e.EncodeTo(block[i*layout.DirEntrySize:])
	}
	if _, err = dev.WriteAt(block, sb.BlockOffset(layout.RootBlock)); err != nil {
		return nil, fmt.Errorf("writing root directory: %w", err)
	}
	if err = dev.Sync(); err != nil {
		return nil, err
	}
	return sb, nil
}
