/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr  6 15:01:33 2018 mstenber
 * Last modified: Fri Apr  6 15:19:48 2018 mstenber
 * Edit time:     9 min
 *
 */

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fingon/go-bwfs/fs"
	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/mkfs"
	"github.com/fingon/go-bwfs/storage/inmemory"
	"github.com/stvp/assert"
	ugcodec "github.com/ugorji/go/codec"
)

func TestReport(t *testing.T) {
	dev := inmemory.NewInMemoryDevice()
	geo := layout.Geometry{BlockSize: 1024, TotalBlocks: 32, InodeCount: 16}
	_, err := mkfs.Format(dev, geo)
	assert.Nil(t, err)
	myfs, err := fs.NewFs(dev)
	assert.Nil(t, err)
	assert.Nil(t, fs.NewFSUser(myfs).Mkdir("/sub", 0755))

	r, err := newReport(myfs)
	assert.Nil(t, err)
	assert.Equal(t, r.Magic, "BWFS")
	assert.Equal(t, r.FreeInodes, uint64(14))
	assert.Equal(t, r.FreeBlocks, uint64(30))
	assert.Equal(t, r.RootBlock, uint64(1))
	assert.Equal(t, len(r.Root), 3)
	assert.Equal(t, r.Root[2], entryInfo{Inode: 2, Name: "sub", Type: "dir"})

	var b bytes.Buffer
	r.Print(&b)
	assert.True(t, strings.Contains(b.String(), "- inode 1 : .. (dir)"))
	assert.True(t, strings.Contains(b.String(), "- inode 2 : sub (dir)"))

	var jh ugcodec.JsonHandle
	var out []byte
	assert.Nil(t, ugcodec.NewEncoderBytes(&out, &jh).Encode(&r))
	var r2 report
	assert.Nil(t, ugcodec.NewDecoderBytes(out, &jh).Decode(&r2))
	assert.Equal(t, r2, r)
	assert.True(t, bytes.Contains(out, []byte(`"free_blocks":30`)))
}
