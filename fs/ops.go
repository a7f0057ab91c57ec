/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Thu Dec 28 12:52:43 2017 mstenber
 * Last modified: Fri Apr  6 11:02:40 2018 mstenber
 * Edit time:     455 min
 *
 */

package fs

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/util"
	. "github.com/hanwen/go-fuse/v2/fuse"
)

// fsOps is the FUSE face of Fs. Every handler holds the Fs lock for
// its whole duration; what is not implemented here is ENOSYS from
// the embedded default implementation.
type fsOps struct {
	RawFileSystem
	fs *Fs
}

var _ RawFileSystem = &fsOps{}

func (self *fsOps) String() string {
	return os.Args[0]
}

func (self *fsOps) fillAttr(ino uint64, inode *layout.Inode, out *Attr) {
	fs := self.fs
	*out = Attr{}
	out.Ino = ino
	out.Size = inode.Size
	out.Blocks = util.CeilDiv(inode.Size, statBlockSize)
	out.Blksize = uint32(fs.sb.BlockSize)
	out.Mode = uint32(inode.Perm())
	if inode.IsDir() {
		out.Mode |= syscall.S_IFDIR
		out.Nlink = 2
	} else {
		out.Mode |= syscall.S_IFREG
		out.Nlink = 1
	}
	out.Owner = Owner{Uid: fs.uid, Gid: fs.gid}
	t := uint64(fs.mountTime.Unix())
	out.Atime = t
	out.Mtime = t
	out.Ctime = t
}

func (self *fsOps) fillEntryOut(ino uint64, inode *layout.Inode, out *EntryOut) {
	out.NodeId = ino
	out.Generation = 0
	self.fillAttr(ino, inode, &out.Attr)
	out.SetEntryTimeout(entryValidity)
	out.SetAttrTimeout(attrValidity)
}

func (self *fsOps) lookup(parent uint64, name string) (ino uint64, inode *layout.Inode, err error) {
	dir, err := self.fs.dirInode(parent)
	if err != nil {
		return
	}
	if len(name) > layout.DirNameMax {
		err = ErrNameTooLong
		return
	}
	e, err := self.fs.findEntry(dir, name)
	if err != nil {
		return
	}
	ino = e.Inode
	inode, err = self.fs.inode(ino)
	if err != nil {
		err = fmt.Errorf("%w: dangling entry %q", ErrCorrupt, name)
	}
	return
}

func (self *fsOps) Lookup(cancel <-chan struct{}, input *InHeader, name string, out *EntryOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Lookup #%d %s", input.NodeId, name)
	ino, inode, err := self.lookup(input.NodeId, name)
	if err != nil {
		return errorStatus(err)
	}
	self.fillEntryOut(ino, inode, out)
	return OK
}

func (self *fsOps) GetAttr(cancel <-chan struct{}, input *GetAttrIn, out *AttrOut) (code Status) {
	defer self.fs.lock.Locked()()
	inode, err := self.fs.inode(input.NodeId)
	if err != nil {
		return errorStatus(err)
	}
	self.fillAttr(input.NodeId, inode, &out.Attr)
	out.SetTimeout(attrValidity)
	return OK
}

// truncate changes file size to size; blocks past the new end are
// released and the tail of the last block zeroed, so growing the
// file later exposes only zeros.
func (self *Fs) truncate(ino uint64, inode *layout.Inode, size uint64) error {
	mlog.Printf2("fs/ops", "truncate #%d %d => %d", ino, inode.Size, size)
	if inode.IsDir() {
		return ErrIsDir
	}
	if size > self.sb.MaxFileSize() {
		return ErrTooLarge
	}
	bs := self.sb.BlockSize
	keep := util.CeilDiv(size, bs)
	for i := keep; i < layout.DirectBlocks; i++ {
		if b := inode.Direct[i]; b != 0 {
			if err := self.blockBitmap.Free(b); err != nil {
				return err
			}
			inode.Direct[i] = 0
		}
	}
	if rem := size % bs; rem != 0 && size < inode.Size {
		if b := inode.Direct[size/bs]; b != 0 {
			if err := self.writeBlockAt(b, make([]byte, bs-rem), rem); err != nil {
				return err
			}
		}
	}
	inode.Size = size
	return self.writeInode(ino, inode)
}

func (self *fsOps) SetAttr(cancel <-chan struct{}, input *SetAttrIn, out *AttrOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "SetAttr #%d valid:%x", input.NodeId, input.Valid)
	p, err := self.fs.inode(input.NodeId)
	if err != nil {
		return errorStatus(err)
	}
	inode := *p
	if mode, ok := input.GetMode(); ok {
		inode.Mode = inode.Mode&layout.S_IFMT | uint16(mode&layout.PermMask)
		if err = self.fs.writeInode(input.NodeId, &inode); err != nil {
			return errorStatus(err)
		}
	}
	if size, ok := input.GetSize(); ok && size != inode.Size {
		if err = self.fs.truncate(input.NodeId, &inode, size); err != nil {
			return errorStatus(err)
		}
	}
	// Owner and times are not stored
	self.fillAttr(input.NodeId, &inode, &out.Attr)
	out.SetTimeout(attrValidity)
	return OK
}

// create adds new inode called name to directory parent. On failure
// nothing is left allocated.
func (self *Fs) create(parent uint64, name string, mode uint16) (ino uint64, err error) {
	dir, err := self.dirInode(parent)
	if err != nil {
		return
	}
	if err = checkName(name); err != nil {
		return
	}
	_, err = self.findEntry(dir, name)
	if err == nil {
		err = fmt.Errorf("%q: %w", name, ErrExists)
		return
	}
	if !isNotFound(err) {
		return
	}
	isDir := mode&layout.S_IFMT == layout.S_IFDIR
	e, err := layout.NewDirEntry(0, name, isDir)
	if err != nil {
		return
	}
	ino, err = self.allocInode(mode)
	if err != nil {
		return
	}
	e.Inode = ino
	if isDir {
		err = self.initDir(ino, parent)
	}
	if err == nil {
		err = self.insertEntry(parent, e)
	}
	if err != nil {
		self.freeInode(ino)
		ino = 0
	}
	return
}

// initDir gives fresh directory inode its first block with '.' and
// '..'.
func (self *Fs) initDir(ino, parent uint64) error {
	b, err := self.allocBlock()
	if err != nil {
		return err
	}
	inode := self.inodes[ino]
	inode.Direct[0] = b
	dots := []struct {
		name string
		ino  uint64
	}{{".", ino}, {"..", parent}}
	for i, v := range dots {
		e, _ := layout.NewDirEntry(v.ino, v.name, true)
		if err = self.writeEntry(b, uint64(i), &e); err != nil {
			self.blockBitmap.Free(b)
			return err
		}
	}
	inode.Size = 2 * layout.DirEntrySize
	if err = self.writeInode(ino, &inode); err != nil {
		self.blockBitmap.Free(b)
	}
	return err
}

func (self *fsOps) Mkdir(cancel <-chan struct{}, input *MkdirIn, name string, out *EntryOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Mkdir #%d %s %o", input.NodeId, name, input.Mode)
	mode := layout.S_IFDIR | uint16(input.Mode&layout.PermMask)
	ino, err := self.fs.create(input.NodeId, name, mode)
	if err != nil {
		return errorStatus(err)
	}
	self.fillEntryOut(ino, &self.fs.inodes[ino], out)
	return OK
}

func (self *fsOps) Mknod(cancel <-chan struct{}, input *MknodIn, name string, out *EntryOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Mknod #%d %s %o", input.NodeId, name, input.Mode)
	if t := input.Mode & syscall.S_IFMT; t != 0 && t != syscall.S_IFREG {
		return EPERM
	}
	mode := layout.S_IFREG | uint16(input.Mode&layout.PermMask)
	ino, err := self.fs.create(input.NodeId, name, mode)
	if err != nil {
		return errorStatus(err)
	}
	self.fillEntryOut(ino, &self.fs.inodes[ino], out)
	return OK
}

func (self *fsOps) Create(cancel <-chan struct{}, input *CreateIn, name string, out *CreateOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Create #%d %s %o", input.NodeId, name, input.Mode)
	mode := layout.S_IFREG | uint16(input.Mode&layout.PermMask)
	ino, err := self.fs.create(input.NodeId, name, mode)
	if err != nil {
		return errorStatus(err)
	}
	self.fillEntryOut(ino, &self.fs.inodes[ino], &out.EntryOut)
	out.OpenOut.Fh = ino
	return OK
}

func (self *fsOps) Open(cancel <-chan struct{}, input *OpenIn, out *OpenOut) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Open #%d flags:%x", input.NodeId, input.Flags)
	p, err := self.fs.inode(input.NodeId)
	if err != nil {
		return errorStatus(err)
	}
	if p.IsDir() {
		if input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY {
			return errorStatus(ErrIsDir)
		}
	} else if input.Flags&syscall.O_TRUNC != 0 && p.Size != 0 {
		inode := *p
		if err = self.fs.truncate(input.NodeId, &inode, 0); err != nil {
			return errorStatus(err)
		}
	}
	out.Fh = input.NodeId
	return OK
}

func (self *fsOps) OpenDir(cancel <-chan struct{}, input *OpenIn, out *OpenOut) (code Status) {
	defer self.fs.lock.Locked()()
	if _, err := self.fs.dirInode(input.NodeId); err != nil {
		return errorStatus(err)
	}
	out.Fh = input.NodeId
	return OK
}

func (self *fsOps) Read(cancel <-chan struct{}, input *ReadIn, buf []byte) (ReadResult, Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Read #%d %d@%d", input.NodeId, len(buf), input.Offset)
	n, err := self.fs.read(input.NodeId, buf, input.Offset)
	if err != nil {
		return nil, errorStatus(err)
	}
	return ReadResultData(buf[:n]), OK
}

// read fills buf from offset ofs; holes read as zeros and nothing is
// read past the end of the file.
func (self *Fs) read(ino uint64, buf []byte, ofs uint64) (n int, err error) {
	inode, err := self.inode(ino)
	if err != nil {
		return
	}
	if inode.IsDir() {
		return 0, ErrIsDir
	}
	if ofs >= inode.Size {
		return 0, nil
	}
	want := int(util.UMin(uint64(len(buf)), inode.Size-ofs))
	bs := self.sb.BlockSize
	for n < want {
		pos := ofs + uint64(n)
		bofs := pos % bs
		chunk := int(util.UMin(bs-bofs, uint64(want-n)))
		b := inode.Direct[pos/bs]
		if b == 0 {
			for i := n; i < n+chunk; i++ {
				buf[i] = 0
			}
		} else {
			data, err := self.readBlock(b)
			if err != nil {
				return n, err
			}
			copy(buf[n:n+chunk], data[bofs:])
		}
		n += chunk
	}
	return
}

func (self *fsOps) Write(cancel <-chan struct{}, input *WriteIn, data []byte) (written uint32, code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Write #%d %d@%d", input.NodeId, len(data), input.Offset)
	if err := self.fs.write(input.NodeId, data, input.Offset); err != nil {
		return 0, errorStatus(err)
	}
	return uint32(len(data)), OK
}

// write stores all of data at ofs or nothing at all: blocks
// allocated for a failed write are released again.
func (self *Fs) write(ino uint64, data []byte, ofs uint64) (err error) {
	p, err := self.inode(ino)
	if err != nil {
		return
	}
	if p.IsDir() {
		return ErrIsDir
	}
	end := ofs + uint64(len(data))
	if end > self.sb.MaxFileSize() || end < ofs {
		return fmt.Errorf("write ending at %d: %w", end, ErrTooLarge)
	}
	if len(data) == 0 {
		return nil
	}
	inode := *p
	bs := self.sb.BlockSize
	var allocated []uint64
	defer func() {
		if err == nil {
			return
		}
		for _, b := range allocated {
			self.blockBitmap.Free(b)
		}
	}()
	for i := ofs / bs; i <= (end-1)/bs; i++ {
		if inode.Direct[i] != 0 {
			continue
		}
		b, err := self.allocBlock()
		if err != nil {
			return err
		}
		allocated = append(allocated, b)
		inode.Direct[i] = b
	}
	for n := 0; n < len(data); {
		pos := ofs + uint64(n)
		bofs := pos % bs
		chunk := int(util.UMin(bs-bofs, uint64(len(data)-n)))
		err = self.writeBlockAt(inode.Direct[pos/bs], data[n:n+chunk], bofs)
		if err != nil {
			return
		}
		n += chunk
	}
	inode.Size = util.UMax(inode.Size, end)
	return self.writeInode(ino, &inode)
}

func (self *fsOps) Unlink(cancel <-chan struct{}, input *InHeader, name string) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Unlink #%d %s", input.NodeId, name)
	return errorStatus(self.fs.unlink(input.NodeId, name, false))
}

func (self *fsOps) Rmdir(cancel <-chan struct{}, input *InHeader, name string) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Rmdir #%d %s", input.NodeId, name)
	return errorStatus(self.fs.unlink(input.NodeId, name, true))
}

func (self *Fs) unlink(parent uint64, name string, isDir bool) error {
	dir, err := self.dirInode(parent)
	if err != nil {
		return err
	}
	if isDir && (name == "." || name == "..") {
		if name == "." {
			return ErrInvalid
		}
		return ErrNotEmpty
	}
	e, err := self.findEntry(dir, name)
	if err != nil {
		return err
	}
	child, err := self.inode(e.Inode)
	if err != nil {
		return fmt.Errorf("%w: dangling entry %q", ErrCorrupt, name)
	}
	if child.IsDir() != isDir {
		if isDir {
			return ErrNotDir
		}
		return ErrIsDir
	}
	if isDir {
		empty, err := self.isEmptyDir(child)
		if err != nil {
			return err
		}
		if !empty {
			return ErrNotEmpty
		}
	}
	if _, err = self.removeEntry(parent, name); err != nil {
		return err
	}
	return self.freeInode(e.Inode)
}

func (self *fsOps) Rename(cancel <-chan struct{}, input *RenameIn, oldName string, newName string) (code Status) {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "Rename #%d %s => #%d %s", input.NodeId, oldName, input.Newdir, newName)
	return errorStatus(self.fs.rename(input.NodeId, oldName, input.Newdir, newName, input.Flags))
}

// isAncestor is true if dir a is dir b or one of its parents.
func (self *Fs) isAncestor(a, b uint64) (bool, error) {
	seen := make(map[uint64]bool)
	for !seen[b] {
		if b == a {
			return true, nil
		}
		seen[b] = true
		if b == layout.RootIno {
			return false, nil
		}
		dir, err := self.dirInode(b)
		if err != nil {
			return false, err
		}
		e, err := self.findEntry(dir, "..")
		if err != nil {
			return false, err
		}
		b = e.Inode
	}
	return false, fmt.Errorf("%w: directory loop at #%d", ErrCorrupt, b)
}

func (self *Fs) rename(oldParent uint64, oldName string, newParent uint64, newName string, flags uint32) error {
	if flags&^renameNoReplace != 0 {
		return ErrInvalid
	}
	odir, err := self.dirInode(oldParent)
	if err != nil {
		return err
	}
	ndir, err := self.dirInode(newParent)
	if err != nil {
		return err
	}
	if oldName == "." || oldName == ".." || newName == "." || newName == ".." {
		return ErrInvalid
	}
	if err = checkName(newName); err != nil {
		return err
	}
	src, err := self.findEntry(odir, oldName)
	if err != nil {
		return err
	}
	if oldParent == newParent && oldName == newName {
		return nil
	}
	if src.IsDir() {
		inside, err := self.isAncestor(src.Inode, newParent)
		if err != nil {
			return err
		}
		if inside {
			return ErrInvalid
		}
	}
	dst, err := self.findEntry(ndir, newName)
	replacing := err == nil
	if err != nil && !isNotFound(err) {
		return err
	}
	if replacing {
		if flags&renameNoReplace != 0 {
			return ErrExists
		}
		if dst.Inode == src.Inode {
			return nil
		}
		dinode, err := self.inode(dst.Inode)
		if err != nil {
			return fmt.Errorf("%w: dangling entry %q", ErrCorrupt, newName)
		}
		if dinode.IsDir() {
			if !src.IsDir() {
				return ErrIsDir
			}
			empty, err := self.isEmptyDir(dinode)
			if err != nil {
				return err
			}
			if !empty {
				return ErrNotEmpty
			}
		} else if src.IsDir() {
			return ErrNotDir
		}
		// The freed slot guarantees room for the insert below
		if _, err = self.removeEntry(newParent, newName); err != nil {
			return err
		}
	}
	ne, err := layout.NewDirEntry(src.Inode, newName, src.IsDir())
	if err != nil {
		return err
	}
	if err = self.insertEntry(newParent, ne); err != nil {
		return err
	}
	if _, err = self.removeEntry(oldParent, oldName); err != nil {
		return err
	}
	if replacing {
		if err = self.freeInode(dst.Inode); err != nil {
			return err
		}
	}
	if src.IsDir() && oldParent != newParent {
		return self.setEntryInode(src.Inode, "..", newParent)
	}
	return nil
}

func (self *fsOps) ReadDir(cancel <-chan struct{}, input *ReadIn, l *DirEntryList) Status {
	return self.readDir(input, l, false)
}

func (self *fsOps) ReadDirPlus(cancel <-chan struct{}, input *ReadIn, l *DirEntryList) Status {
	return self.readDir(input, l, true)
}

// readDir lists '.', '..' and then the live entries; offset n
// resumes at the n-th of those.
func (self *fsOps) readDir(input *ReadIn, l *DirEntryList, plus bool) Status {
	defer self.fs.lock.Locked()()
	mlog.Printf2("fs/ops", "ReadDir #%d @%d plus:%v", input.NodeId, input.Offset, plus)
	entries, err := self.fs.dirEntries(input.NodeId)
	if err != nil {
		return errorStatus(err)
	}
	for i := input.Offset; i < uint64(len(entries)); i++ {
		e := &entries[i]
		var mode uint32 = syscall.S_IFREG
		if e.IsDir() {
			mode = syscall.S_IFDIR
		}
		de := DirEntry{Mode: mode, Name: e.NameString(), Ino: e.Inode}
		if !plus {
			if !l.AddDirEntry(de) {
				break
			}
			continue
		}
		out := l.AddDirLookupEntry(de)
		if out == nil {
			break
		}
		*out = EntryOut{}
		if i < 2 {
			// kernel does not look up '.' and '..'
			continue
		}
		inode, err := self.fs.inode(e.Inode)
		if err != nil {
			return errorStatus(fmt.Errorf("%w: dangling entry %q", ErrCorrupt, de.Name))
		}
		self.fillEntryOut(e.Inode, inode, out)
	}
	return OK
}

func (self *fsOps) StatFs(cancel <-chan struct{}, input *InHeader, out *StatfsOut) Status {
	defer self.fs.lock.Locked()()
	sb := self.fs.sb
	out.Blocks = sb.TotalBlocks
	out.Bfree = self.fs.blockBitmap.CountFree()
	out.Bavail = out.Bfree
	out.Files = sb.InodeCount
	out.Ffree = self.fs.inodeBitmap.CountFree()
	out.Bsize = uint32(sb.BlockSize)
	out.Frsize = uint32(sb.BlockSize)
	out.NameLen = layout.DirNameMax
	return OK
}

func (self *fsOps) Access(cancel <-chan struct{}, input *AccessIn) (code Status) {
	defer self.fs.lock.Locked()()
	_, err := self.fs.inode(input.NodeId)
	return errorStatus(err)
}

func (self *fsOps) Flush(cancel <-chan struct{}, input *FlushIn) Status {
	return OK
}

func (self *fsOps) sync() Status {
	defer self.fs.lock.Locked()()
	if err := self.fs.dev.Sync(); err != nil {
		return errorStatus(err)
	}
	return OK
}

func (self *fsOps) Fsync(cancel <-chan struct{}, input *FsyncIn) (code Status) {
	return self.sync()
}

func (self *fsOps) FsyncDir(cancel <-chan struct{}, input *FsyncIn) (code Status) {
	return self.sync()
}

const (
	seekData = 3
	seekHole = 4
)

func (self *fsOps) Lseek(cancel <-chan struct{}, input *LseekIn, out *LseekOut) Status {
	defer self.fs.lock.Locked()()
	inode, err := self.fs.inode(input.NodeId)
	if err != nil {
		return errorStatus(err)
	}
	ofs := int64(input.Offset)
	size := int64(inode.Size)
	switch input.Whence {
	case io.SeekStart, io.SeekCurrent:
	case io.SeekEnd:
		ofs += size
	case seekData, seekHole:
		if ofs < 0 {
			return EINVAL
		}
		if ofs >= size {
			return Status(syscall.ENXIO)
		}
		// Holes inside the file are not reported; the only hole
		// is at the end
		if input.Whence == seekHole {
			ofs = size
		}
	default:
		return EINVAL
	}
	if ofs < 0 {
		return EINVAL
	}
	out.Offset = uint64(ofs)
	return OK
}
