/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 14:11:50 2018 mstenber
 * Last modified: Fri Apr  6 09:30:12 2018 mstenber
 * Edit time:     97 min
 *
 */

package fs

import (
	"fmt"

	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/mlog"
)

// Directory contents are arrays of fixed size entries in the direct
// blocks of the directory inode. Removed entries become tombstones
// (inode 0) that later inserts reuse; scans always cover every slot
// of every allocated block.

// entryCallback returns false to stop the iteration.
type entryCallback func(b uint64, slot uint64, e *layout.DirEntry) bool

func (self *Fs) iterateEntries(dir *layout.Inode, cb entryCallback) error {
	per := self.sb.EntriesPerBlock()
	for _, b := range dir.Direct {
		if b == 0 {
			continue
		}
		data, err := self.readBlock(b)
		if err != nil {
			return err
		}
		for slot := uint64(0); slot < per; slot++ {
			e, err := layout.DecodeDirEntry(data[slot*layout.DirEntrySize:])
			if err != nil {
				return err
			}
			if e.IsFree() {
				continue
			}
			if !cb(b, slot, &e) {
				return nil
			}
		}
	}
	return nil
}

func (self *Fs) findEntry(dir *layout.Inode, name string) (found layout.DirEntry, err error) {
	ok := false
	err = self.iterateEntries(dir, func(b, slot uint64, e *layout.DirEntry) bool {
		if e.Matches(name) {
			found = *e
			ok = true
			return false
		}
		return true
	})
	if err == nil && !ok {
		err = fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return
}

// dirEntries returns '.' and '..' followed by the other live entries
// in slot order.
func (self *Fs) dirEntries(ino uint64) (ret []layout.DirEntry, err error) {
	dir, err := self.dirInode(ino)
	if err != nil {
		return
	}
	dot, _ := layout.NewDirEntry(ino, ".", true)
	dotdot, _ := layout.NewDirEntry(ino, "..", true)
	ret = []layout.DirEntry{dot, dotdot}
	err = self.iterateEntries(dir, func(b, slot uint64, e *layout.DirEntry) bool {
		switch {
		case e.Matches("."):
		case e.Matches(".."):
			ret[1].Inode = e.Inode
		default:
			ret = append(ret, *e)
		}
		return true
	})
	return
}

// isEmptyDir is true if there is nothing but '.' and '..'.
func (self *Fs) isEmptyDir(dir *layout.Inode) (empty bool, err error) {
	empty = true
	err = self.iterateEntries(dir, func(b, slot uint64, e *layout.DirEntry) bool {
		if !e.Matches(".") && !e.Matches("..") {
			empty = false
			return false
		}
		return true
	})
	return
}

func (self *Fs) writeEntry(b, slot uint64, e *layout.DirEntry) error {
	return self.writeBlockAt(b, e.Encode(), slot*layout.DirEntrySize)
}

// insertEntry puts e into the first free slot of directory ino,
// growing the directory by a block if needed.
func (self *Fs) insertEntry(ino uint64, e layout.DirEntry) error {
	mlog.Printf2("fs/dir", "insertEntry #%d %s => #%d", ino, e.NameString(), e.Inode)
	p, err := self.dirInode(ino)
	if err != nil {
		return err
	}
	dir := *p
	per := self.sb.EntriesPerBlock()
	for _, b := range dir.Direct {
		if b == 0 {
			continue
		}
		data, err := self.readBlock(b)
		if err != nil {
			return err
		}
		for slot := uint64(0); slot < per; slot++ {
			old, err := layout.DecodeDirEntry(data[slot*layout.DirEntrySize:])
			if err != nil {
				return err
			}
			if !old.IsFree() {
				continue
			}
			if err = self.writeEntry(b, slot, &e); err != nil {
				return err
			}
			dir.Size += layout.DirEntrySize
			return self.writeInode(ino, &dir)
		}
	}
	for i, b := range dir.Direct {
		if b != 0 {
			continue
		}
		nb, err := self.allocBlock()
		if err != nil {
			return err
		}
		if err = self.writeEntry(nb, 0, &e); err != nil {
			self.blockBitmap.Free(nb)
			return err
		}
		dir.Direct[i] = nb
		dir.Size += layout.DirEntrySize
		if err = self.writeInode(ino, &dir); err != nil {
			self.blockBitmap.Free(nb)
			return err
		}
		mlog.Printf2("fs/dir", " added block %d", nb)
		return nil
	}
	return fmt.Errorf("directory #%d: %w", ino, ErrDirFull)
}

// removeEntry tombstones the entry called name in directory ino and
// returns what it was.
func (self *Fs) removeEntry(ino uint64, name string) (removed layout.DirEntry, err error) {
	mlog.Printf2("fs/dir", "removeEntry #%d %s", ino, name)
	p, err := self.dirInode(ino)
	if err != nil {
		return
	}
	dir := *p
	var fb, fslot uint64
	ok := false
	err = self.iterateEntries(&dir, func(b, slot uint64, e *layout.DirEntry) bool {
		if e.Matches(name) {
			removed = *e
			fb, fslot, ok = b, slot, true
			return false
		}
		return true
	})
	if err != nil {
		return
	}
	if !ok {
		err = fmt.Errorf("%q: %w", name, ErrNotFound)
		return
	}
	if err = self.writeEntry(fb, fslot, &layout.DirEntry{}); err != nil {
		return
	}
	if dir.Size >= layout.DirEntrySize {
		dir.Size -= layout.DirEntrySize
	}
	err = self.writeInode(ino, &dir)
	return
}

// setEntryInode points existing entry name of directory ino at
// target, keeping everything else.
func (self *Fs) setEntryInode(ino uint64, name string, target uint64) error {
	dir, err := self.dirInode(ino)
	if err != nil {
		return err
	}
	var fb, fslot uint64
	var found layout.DirEntry
	ok := false
	err = self.iterateEntries(dir, func(b, slot uint64, e *layout.DirEntry) bool {
		if e.Matches(name) {
			found = *e
			fb, fslot, ok = b, slot, true
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	found.Inode = target
	return self.writeEntry(fb, fslot, &found)
}
