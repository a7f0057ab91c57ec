/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 11:20:29 2017 mstenber
 * Last modified: Fri Apr  6 10:51:32 2018 mstenber
 * Edit time:     402 min
 *
 */

// fs package implements fuse.RawFileSystem on top of a bwfs image.
//
// The superblock, both bitmaps and the whole inode table are read
// into memory when the filesystem is opened; every change is written
// through to the device before the operation returns. All operations
// are serialized by a single lock.
package fs

import (
	"fmt"
	"os"
	"time"

	"github.com/fingon/go-bwfs/bitmap"
	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/storage/file"
	"github.com/fingon/go-bwfs/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

type Fs struct {
	Ops fsOps

	dev         storage.Device
	sb          *layout.Superblock
	inodeBitmap *bitmap.Bitmap
	blockBitmap *bitmap.Bitmap
	inodes      []layout.Inode

	uid, gid  uint32
	mountTime time.Time

	lock util.MutexLocked
}

// NewFs mounts the image on dev. Only a bad superblock is reported
// here; anything else wrong with the image surfaces as errors of the
// individual operations.
func NewFs(dev storage.Device) (*Fs, error) {
	b := make([]byte, layout.SuperblockSize)
	if err := storage.ReadFull(dev, b, 0); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb, err := layout.DecodeSuperblock(b)
	if err != nil {
		return nil, err
	}
	if err = sb.Validate(); err != nil {
		return nil, err
	}
	if size := dev.Size(); size < int64(sb.ImageSize()) {
		return nil, fmt.Errorf("%w: image is %d bytes, expected %d",
			layout.ErrCorrupt, size, sb.ImageSize())
	}
	self := &Fs{dev: dev, sb: sb,
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
		mountTime: time.Now()}
	self.Ops.fs = self
	self.Ops.RawFileSystem = fuse.NewDefaultRawFileSystem()
	self.inodeBitmap, err = bitmap.Load("inode", dev, sb.InodeCount,
		int64(sb.InodeBitmapStart))
	if err != nil {
		return nil, err
	}
	self.blockBitmap, err = bitmap.Load("block", dev, sb.TotalBlocks,
		int64(sb.BlockBitmapStart))
	if err != nil {
		return nil, err
	}
	table := make([]byte, sb.InodeCount*layout.InodeSize)
	if err = storage.ReadFull(dev, table, int64(sb.InodeTableStart)); err != nil {
		return nil, fmt.Errorf("reading inode table: %w", err)
	}
	self.inodes = make([]layout.Inode, sb.InodeCount)
	for i := range self.inodes {
		self.inodes[i], err = layout.DecodeInode(table[i*layout.InodeSize:])
		if err != nil {
			return nil, err
		}
	}
	if !self.validIno(layout.RootIno) || !self.inodes[layout.RootIno].IsDir() {
		return nil, fmt.Errorf("%w: root directory missing", layout.ErrCorrupt)
	}
	mlog.Printf2("fs/fs", "NewFs %+v", sb.Geometry())
	return self, nil
}

// Open mounts the image file at path.
func Open(path string) (*Fs, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	dev, err := file.NewFileDevice(path)
	if err != nil {
		return nil, err
	}
	fs, err := NewFs(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fs, nil
}

func (self *Fs) Close() error {
	defer self.lock.Locked()()
	mlog.Printf2("fs/fs", "fs.Close")
	if err := self.dev.Sync(); err != nil {
		self.dev.Close()
		return err
	}
	return self.dev.Close()
}

func (self *Fs) Superblock() layout.Superblock {
	return *self.sb
}

// RawFileSystem returns the FUSE operations of the filesystem.
func (self *Fs) RawFileSystem() fuse.RawFileSystem {
	return &self.Ops
}

// Usage returns the number of free blocks and inodes.
func (self *Fs) Usage() (freeBlocks, freeInodes uint64) {
	defer self.lock.Locked()()
	return self.blockBitmap.CountFree(), self.inodeBitmap.CountFree()
}

func (self *Fs) validIno(ino uint64) bool {
	return ino >= layout.RootIno && ino < self.sb.InodeCount &&
		self.inodeBitmap.IsSet(ino)
}

// inode returns pointer to the in-memory copy of inode ino. Changes
// must be persisted with writeInode.
func (self *Fs) inode(ino uint64) (*layout.Inode, error) {
	if !self.validIno(ino) {
		return nil, fmt.Errorf("inode %d: %w", ino, ErrNotFound)
	}
	inode := &self.inodes[ino]
	if inode.Size > self.sb.MaxFileSize() {
		return nil, fmt.Errorf("%w: inode %d size %d exceeds %d",
			ErrCorrupt, ino, inode.Size, self.sb.MaxFileSize())
	}
	return inode, nil
}

// dirInode is inode that must be a directory.
func (self *Fs) dirInode(ino uint64) (*layout.Inode, error) {
	inode, err := self.inode(ino)
	if err != nil {
		return nil, err
	}
	if !inode.IsDir() {
		return nil, fmt.Errorf("inode %d: %w", ino, ErrNotDir)
	}
	return inode, nil
}

func (self *Fs) writeInode(ino uint64, inode *layout.Inode) error {
	_, err := self.dev.WriteAt(inode.Encode(), self.sb.InodeOffset(ino))
	if err != nil {
		return fmt.Errorf("writing inode %d: %w", ino, err)
	}
	self.inodes[ino] = *inode
	return nil
}

// allocInode reserves a fresh inode with no data.
func (self *Fs) allocInode(mode uint16) (uint64, error) {
	ino, err := self.inodeBitmap.Allocate()
	if err != nil {
		return 0, err
	}
	inode := layout.Inode{Mode: mode}
	if err = self.writeInode(ino, &inode); err != nil {
		self.inodeBitmap.Free(ino)
		return 0, err
	}
	mlog.Printf2("fs/fs", "allocInode %o => #%d", mode, ino)
	return ino, nil
}

// freeInode releases the data blocks and then the inode itself.
func (self *Fs) freeInode(ino uint64) error {
	mlog.Printf2("fs/fs", "freeInode #%d", ino)
	inode := self.inodes[ino]
	for _, b := range inode.Direct {
		if b == 0 {
			continue
		}
		if err := self.blockBitmap.Free(b); err != nil {
			return err
		}
	}
	if err := self.writeInode(ino, &layout.Inode{}); err != nil {
		return err
	}
	return self.inodeBitmap.Free(ino)
}

func (self *Fs) checkBlock(b uint64) error {
	if b == 0 || b >= self.sb.TotalBlocks {
		return fmt.Errorf("%w: block index %d", ErrCorrupt, b)
	}
	return nil
}

// allocBlock returns new block that has been zeroed on disk.
func (self *Fs) allocBlock() (uint64, error) {
	b, err := self.blockBitmap.Allocate()
	if err != nil {
		return 0, err
	}
	if err = self.zeroBlock(b); err != nil {
		self.blockBitmap.Free(b)
		return 0, err
	}
	return b, nil
}

func (self *Fs) zeroBlock(b uint64) error {
	return self.writeBlock(b, make([]byte, self.sb.BlockSize))
}

func (self *Fs) readBlock(b uint64) ([]byte, error) {
	if err := self.checkBlock(b); err != nil {
		return nil, err
	}
	data := make([]byte, self.sb.BlockSize)
	if err := storage.ReadFull(self.dev, data, self.sb.BlockOffset(b)); err != nil {
		return nil, fmt.Errorf("reading block %d: %w", b, err)
	}
	return data, nil
}

// writeBlock writes data (at most one block) to start of block b.
func (self *Fs) writeBlock(b uint64, data []byte) error {
	return self.writeBlockAt(b, data, 0)
}

func (self *Fs) writeBlockAt(b uint64, data []byte, ofs uint64) error {
	if err := self.checkBlock(b); err != nil {
		return err
	}
	if ofs+uint64(len(data)) > self.sb.BlockSize {
		return fmt.Errorf("%w: write past end of block %d", ErrInvalid, b)
	}
	_, err := self.dev.WriteAt(data, self.sb.BlockOffset(b)+int64(ofs))
	if err != nil {
		return fmt.Errorf("writing block %d: %w", b, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalid)
	}
	if len(name) > layout.DirNameMax {
		return fmt.Errorf("%q: %w", name, ErrNameTooLong)
	}
	return nil
}

// ListDir provides testing utility as output of ReadDir/ReadDirPlus
// is binary garbage and I am too lazy to write a decoder for it.
func (self *Fs) ListDir(ino uint64) (ret []string) {
	defer self.lock.Locked()()
	mlog.Printf2("fs/fs", "Fs.ListDir #%d", ino)
	entries, err := self.dirEntries(ino)
	if err != nil {
		return nil
	}
	for _, e := range entries[2:] {
		ret = append(ret, e.NameString())
	}
	return
}

// Inode returns copy of inode ino.
func (self *Fs) Inode(ino uint64) (layout.Inode, error) {
	defer self.lock.Locked()()
	inode, err := self.inode(ino)
	if err != nil {
		return layout.Inode{}, err
	}
	return *inode, nil
}

// DirEntries returns the entries of directory ino, starting with '.'
// and '..'.
func (self *Fs) DirEntries(ino uint64) ([]layout.DirEntry, error) {
	defer self.lock.Locked()()
	return self.dirEntries(ino)
}
