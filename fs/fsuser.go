/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 15:39:36 2017 mstenber
 * Last modified: Fri Apr  6 09:12:55 2018 mstenber
 * Edit time:     171 min
 *
 */

package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fingon/go-bwfs/mlog"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FSUser provides ~os module functionality across the raw fuse
// APIs, without actually mounting the filesystem. Errors are
// syscall.Errno values so they can be compared directly.
//
// A FSUser must not be shared between goroutines.
type FSUser struct {
	fuse.InHeader
	fs *Fs
}

func s2e(status fuse.Status) error {
	if !status.Ok() {
		return syscall.Errno(status)
	}
	return nil
}

type fileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
	ino   uint64
}

func (self *fileInfo) Name() string {
	return self.name
}

func (self *fileInfo) Size() int64 {
	return self.size
}

func (self *fileInfo) Mode() os.FileMode {
	return self.mode
}

func (self *fileInfo) ModTime() time.Time {
	return self.mtime
}

func (self *fileInfo) IsDir() bool {
	return self.Mode().IsDir()
}

// Sys returns the inode number.
func (self *fileInfo) Sys() interface{} {
	return self.ino
}

func fileModeFromFuse(mode uint32) os.FileMode {
	r := os.FileMode(mode) & os.ModePerm
	if mode&syscall.S_IFMT == syscall.S_IFDIR {
		r |= os.ModeDir
	}
	return r
}

func NewFSUser(fs *Fs) *FSUser {
	return &FSUser{fs: fs}
}

var cancel = make(chan struct{})

func (self *FSUser) lookup(path string, eo *fuse.EntryOut) (err error) {
	self.NodeId = fuse.FUSE_ROOT_ID
	walked := false
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		err = s2e(self.fs.Ops.Lookup(cancel, &self.InHeader, name, eo))
		if err != nil {
			return
		}
		self.NodeId = eo.Ino
		walked = true
	}
	if !walked {
		// root has no parent entry to look it up from
		err = s2e(self.fs.Ops.Lookup(cancel, &self.InHeader, ".", eo))
	}
	return
}

// lookupParent leaves NodeId pointing at the directory of path and
// returns the last path component.
func (self *FSUser) lookupParent(path string) (basename string, err error) {
	dirname, basename := filepath.Split(path)
	var eo fuse.EntryOut
	err = self.lookup(dirname, &eo)
	return
}

func (self *FSUser) ListDir(name string) (ret []string, err error) {
	var eo fuse.EntryOut
	err = self.lookup(name, &eo)
	if err != nil {
		return
	}
	var oo fuse.OpenOut
	err = s2e(self.fs.Ops.OpenDir(cancel, &fuse.OpenIn{InHeader: self.InHeader}, &oo))
	if err != nil {
		return
	}
	del := fuse.NewDirEntryList(make([]byte, 1000), 0)
	err = s2e(self.fs.Ops.ReadDir(cancel, &fuse.ReadIn{Fh: oo.Fh,
		InHeader: self.InHeader}, del))
	if err != nil {
		return
	}
	del = fuse.NewDirEntryList(make([]byte, 1000), 0)
	err = s2e(self.fs.Ops.ReadDirPlus(cancel, &fuse.ReadIn{Fh: oo.Fh,
		InHeader: self.InHeader}, del))
	if err != nil {
		return
	}
	// We got _something_. No way to make sure it was fine. Oh well.
	// Cheat using backdoor API.
	ret = self.fs.ListDir(eo.Ino)
	self.fs.Ops.ReleaseDir(&fuse.ReleaseIn{Fh: oo.Fh, InHeader: self.InHeader})
	return
}

// ReadDir is clone of ioutil.ReadDir (without the sorting)
func (self *FSUser) ReadDir(dirname string) (ret []os.FileInfo, err error) {
	mlog.Printf2("fs/fsuser", "ReadDir %s", dirname)
	l, err := self.ListDir(dirname)
	if err != nil {
		return
	}
	mlog.Printf2("fs/fsuser", " ListDir:%v", l)
	ret = make([]os.FileInfo, len(l))
	for i, n := range l {
		ret[i], err = self.Stat(fmt.Sprintf("%s/%s", dirname, n))
		if err != nil {
			return
		}
	}
	return
}

// Mkdir is clone of os.Mkdir
func (self *FSUser) Mkdir(path string, perm os.FileMode) (err error) {
	basename, err := self.lookupParent(path)
	if err != nil {
		return
	}
	var eo fuse.EntryOut
	return s2e(self.fs.Ops.Mkdir(cancel, &fuse.MkdirIn{InHeader: self.InHeader,
		Mode: uint32(perm)}, basename, &eo))
}

// Create makes new empty file at path; it must not exist yet.
func (self *FSUser) Create(path string, perm os.FileMode) (err error) {
	basename, err := self.lookupParent(path)
	if err != nil {
		return
	}
	var co fuse.CreateOut
	return s2e(self.fs.Ops.Create(cancel, &fuse.CreateIn{InHeader: self.InHeader,
		Flags: uint32(os.O_RDWR | os.O_CREATE | os.O_EXCL),
		Mode:  uint32(perm)}, basename, &co))
}

// Mknod is Create through the mknod call.
func (self *FSUser) Mknod(path string, mode uint32) (err error) {
	basename, err := self.lookupParent(path)
	if err != nil {
		return
	}
	var eo fuse.EntryOut
	return s2e(self.fs.Ops.Mknod(cancel, &fuse.MknodIn{InHeader: self.InHeader,
		Mode: mode}, basename, &eo))
}

// Stat is clone of os.Stat
func (self *FSUser) Stat(path string) (fi os.FileInfo, err error) {
	var eo fuse.EntryOut
	err = self.lookup(path, &eo)
	if err != nil {
		return
	}
	var ao fuse.AttrOut
	err = s2e(self.fs.Ops.GetAttr(cancel, &fuse.GetAttrIn{InHeader: self.InHeader}, &ao))
	if err != nil {
		return
	}
	_, basename := filepath.Split(path)
	fi = &fileInfo{name: basename,
		size:  int64(ao.Size),
		mode:  fileModeFromFuse(ao.Mode),
		mtime: time.Unix(int64(ao.Mtime), int64(ao.Mtimensec)),
		ino:   ao.Ino}
	return
}

// Remove is clone of os.Remove
func (self *FSUser) Remove(path string) (err error) {
	fi, err := self.Stat(path)
	if err != nil {
		return
	}
	basename, err := self.lookupParent(path)
	if err != nil {
		return
	}
	if fi.IsDir() {
		err = s2e(self.fs.Ops.Rmdir(cancel, &self.InHeader, basename))
	} else {
		err = s2e(self.fs.Ops.Unlink(cancel, &self.InHeader, basename))
	}
	return
}

// Unlink calls unlink regardless of what path is.
func (self *FSUser) Unlink(path string) (err error) {
	basename, err := self.lookupParent(path)
	if err != nil {
		return
	}
	return s2e(self.fs.Ops.Unlink(cancel, &self.InHeader, basename))
}

// Rename is clone of os.Rename
func (self *FSUser) Rename(oldpath, newpath string) (err error) {
	newbase, err := self.lookupParent(newpath)
	if err != nil {
		return
	}
	newdir := self.NodeId
	oldbase, err := self.lookupParent(oldpath)
	if err != nil {
		return
	}
	return s2e(self.fs.Ops.Rename(cancel, &fuse.RenameIn{InHeader: self.InHeader,
		Newdir: newdir}, oldbase, newbase))
}

// open returns the handle of path, like os.OpenFile minus the file
// object.
func (self *FSUser) open(path string, flags int) (fh uint64, err error) {
	var eo fuse.EntryOut
	err = self.lookup(path, &eo)
	if err != nil {
		return
	}
	var oo fuse.OpenOut
	err = s2e(self.fs.Ops.Open(cancel, &fuse.OpenIn{InHeader: self.InHeader,
		Flags: uint32(flags)}, &oo))
	return oo.Fh, err
}

func (self *FSUser) WriteAt(path string, data []byte, off int64) (n int, err error) {
	fh, err := self.open(path, os.O_WRONLY)
	if err != nil {
		return
	}
	written, code := self.fs.Ops.Write(cancel, &fuse.WriteIn{InHeader: self.InHeader,
		Fh: fh, Offset: uint64(off), Size: uint32(len(data))}, data)
	return int(written), s2e(code)
}

func (self *FSUser) ReadAt(path string, buf []byte, off int64) (n int, err error) {
	fh, err := self.open(path, os.O_RDONLY)
	if err != nil {
		return
	}
	rr, code := self.fs.Ops.Read(cancel, &fuse.ReadIn{InHeader: self.InHeader,
		Fh: fh, Offset: uint64(off), Size: uint32(len(buf))}, buf)
	if err = s2e(code); err != nil {
		return
	}
	b, code := rr.Bytes(buf)
	if err = s2e(code); err != nil {
		return
	}
	return copy(buf, b), nil
}

// WriteFile is clone of ioutil.WriteFile
func (self *FSUser) WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	_, err = self.Stat(path)
	if err == syscall.ENOENT {
		err = self.Create(path, perm)
	} else if err == nil {
		_, err = self.open(path, os.O_WRONLY|os.O_TRUNC)
	}
	if err != nil {
		return
	}
	_, err = self.WriteAt(path, data, 0)
	return
}

// ReadFile is clone of ioutil.ReadFile
func (self *FSUser) ReadFile(path string) (b []byte, err error) {
	fi, err := self.Stat(path)
	if err != nil {
		return
	}
	b = make([]byte, fi.Size())
	n, err := self.ReadAt(path, b, 0)
	return b[:n], err
}

func (self *FSUser) setAttr(path string, in *fuse.SetAttrIn) (err error) {
	var eo fuse.EntryOut
	err = self.lookup(path, &eo)
	if err != nil {
		return
	}
	in.InHeader = self.InHeader
	var ao fuse.AttrOut
	return s2e(self.fs.Ops.SetAttr(cancel, in, &ao))
}

// Truncate is clone of os.Truncate
func (self *FSUser) Truncate(path string, size int64) error {
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_SIZE
	in.Size = uint64(size)
	return self.setAttr(path, in)
}

// Chmod is clone of os.Chmod
func (self *FSUser) Chmod(path string, mode os.FileMode) error {
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_MODE
	in.Mode = uint32(mode.Perm())
	return self.setAttr(path, in)
}

func (self *FSUser) Seek(path string, off int64, whence int) (ret int64, err error) {
	fh, err := self.open(path, os.O_RDONLY)
	if err != nil {
		return
	}
	var lo fuse.LseekOut
	err = s2e(self.fs.Ops.Lseek(cancel, &fuse.LseekIn{InHeader: self.InHeader,
		Fh: fh, Offset: uint64(off), Whence: uint32(whence)}, &lo))
	return int64(lo.Offset), err
}

func (self *FSUser) Statfs() (out fuse.StatfsOut, err error) {
	self.NodeId = fuse.FUSE_ROOT_ID
	err = s2e(self.fs.Ops.StatFs(cancel, &self.InHeader, &out))
	return
}

func (self *FSUser) Fsync(path string) (err error) {
	fh, err := self.open(path, os.O_RDONLY)
	if err != nil {
		return
	}
	return s2e(self.fs.Ops.Fsync(cancel, &fuse.FsyncIn{InHeader: self.InHeader, Fh: fh}))
}
