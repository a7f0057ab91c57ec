/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  2 11:05:19 2018 mstenber
 * Last modified: Wed Apr  4 09:47:30 2018 mstenber
 * Edit time:     41 min
 *
 */

package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	DirTypeFile = 1
	DirTypeDir  = 2

	DirNameMax = 60

	// DirEntrySize is u64 inode, u8 name length, u8 type, 6 bytes
	// of padding, the name buffer and 4 bytes of tail padding up
	// to 8 byte alignment.
	DirEntrySize = 80

	direntNameOffset = 16
)

// DirEntry is a directory slot. Inode 0 marks a free slot.
type DirEntry struct {
	Inode    uint64
	NameLen  uint8
	FileType uint8
	Name     [DirNameMax]byte
}

// NewDirEntry returns entry for name; names longer than DirNameMax
// are refused.
func NewDirEntry(ino uint64, name string, isDir bool) (e DirEntry, err error) {
	if len(name) > DirNameMax {
		err = fmt.Errorf("name of %d bytes exceeds %d", len(name), DirNameMax)
		return
	}
	e.Inode = ino
	e.NameLen = uint8(len(name))
	e.FileType = DirTypeFile
	if isDir {
		e.FileType = DirTypeDir
	}
	copy(e.Name[:], name)
	return
}

func (self *DirEntry) IsFree() bool {
	return self.Inode == 0
}

func (self *DirEntry) IsDir() bool {
	return self.FileType == DirTypeDir
}

func (self *DirEntry) NameBytes() []byte {
	n := int(self.NameLen)
	if n > DirNameMax {
		n = DirNameMax
	}
	return self.Name[:n]
}

func (self *DirEntry) NameString() string {
	return string(self.NameBytes())
}

// Matches compares length and content of the name exactly.
func (self *DirEntry) Matches(name string) bool {
	return int(self.NameLen) == len(name) &&
		bytes.Equal(self.NameBytes(), []byte(name))
}

func (self *DirEntry) Encode() []byte {
	b := make([]byte, DirEntrySize)
	self.EncodeTo(b)
	return b
}

func (self *DirEntry) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint64(b[0:], self.Inode)
	b[8] = self.NameLen
	b[9] = self.FileType
	for i := 10; i < direntNameOffset; i++ {
		b[i] = 0
	}
	copy(b[direntNameOffset:], self.Name[:])
	for i := direntNameOffset + DirNameMax; i < DirEntrySize; i++ {
		b[i] = 0
	}
}

func DecodeDirEntry(b []byte) (e DirEntry, err error) {
	if len(b) < DirEntrySize {
		err = fmt.Errorf("%w: dirent needs %d, got %d",
			ErrShortBuffer, DirEntrySize, len(b))
		return
	}
	e.Inode = binary.LittleEndian.Uint64(b[0:])
	e.NameLen = b[8]
	e.FileType = b[9]
	copy(e.Name[:], b[direntNameOffset:direntNameOffset+DirNameMax])
	return
}
