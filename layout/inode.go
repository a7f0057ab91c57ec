/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  2 10:40:02 2018 mstenber
 * Last modified: Tue Apr  3 18:21:45 2018 mstenber
 * Edit time:     34 min
 *
 */

package layout

import (
	"encoding/binary"
	"fmt"
)

const (
	DirectBlocks = 12

	// InodeSize includes the alignment padding between mode and
	// size: u16 mode, u16 pad, 4 bytes of implicit padding, u64
	// size and 12 u64 block indexes.
	InodeSize = 112

	S_IFMT   = 0170000
	S_IFDIR  = 0040000
	S_IFREG  = 0100000
	PermMask = 07777
)

type Inode struct {
	Mode   uint16
	Size   uint64
	Direct [DirectBlocks]uint64
}

func (self *Inode) IsDir() bool {
	return self.Mode&S_IFDIR != 0
}

func (self *Inode) Perm() uint16 {
	return self.Mode & PermMask
}

// BlockCount returns the number of allocated direct blocks.
func (self *Inode) BlockCount() (n int) {
	for _, b := range self.Direct {
		if b != 0 {
			n++
		}
	}
	return
}

func (self *Inode) Encode() []byte {
	b := make([]byte, InodeSize)
	self.EncodeTo(b)
	return b
}

// EncodeTo writes the record to the start of b, which must be at
// least InodeSize long.
func (self *Inode) EncodeTo(b []byte) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], self.Mode)
	le.PutUint16(b[2:], 0)
	le.PutUint32(b[4:], 0)
	le.PutUint64(b[8:], self.Size)
	for i, v := range self.Direct {
		le.PutUint64(b[16+8*i:], v)
	}
}

func DecodeInode(b []byte) (inode Inode, err error) {
	if len(b) < InodeSize {
		err = fmt.Errorf("%w: inode needs %d, got %d",
			ErrShortBuffer, InodeSize, len(b))
		return
	}
	le := binary.LittleEndian
	inode.Mode = le.Uint16(b[0:])
	inode.Size = le.Uint64(b[8:])
	for i := range inode.Direct {
		inode.Direct[i] = le.Uint64(b[16+8*i:])
	}
	return
}
