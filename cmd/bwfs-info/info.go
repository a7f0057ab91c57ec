/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr  6 14:35:02 2018 mstenber
 * Last modified: Fri Apr  6 15:20:11 2018 mstenber
 * Edit time:     33 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fingon/go-bwfs/config"
	"github.com/fingon/go-bwfs/fs"
	"github.com/fingon/go-bwfs/layout"
	ugcodec "github.com/ugorji/go/codec"
)

type entryInfo struct {
	Inode uint64 `codec:"inode"`
	Name  string `codec:"name"`
	Type  string `codec:"type"`
}

type report struct {
	Magic            string      `codec:"magic"`
	Version          uint32      `codec:"version"`
	BlockSize        uint64      `codec:"block_size"`
	TotalBlocks      uint64      `codec:"total_blocks"`
	InodeCount       uint64      `codec:"inode_count"`
	InodeBitmapStart uint64      `codec:"inode_bitmap_start"`
	BlockBitmapStart uint64      `codec:"block_bitmap_start"`
	InodeTableStart  uint64      `codec:"inode_table_start"`
	DataAreaStart    uint64      `codec:"data_area_start"`
	FreeBlocks       uint64      `codec:"free_blocks"`
	FreeInodes       uint64      `codec:"free_inodes"`
	RootMode         uint16      `codec:"root_mode"`
	RootSize         uint64      `codec:"root_size"`
	RootBlock        uint64      `codec:"root_block"`
	Root             []entryInfo `codec:"root"`
}

func newReport(myfs *fs.Fs) (r report, err error) {
	sb := myfs.Superblock()
	r = report{Magic: string(sb.Magic[:]),
		Version:          sb.Version,
		BlockSize:        sb.BlockSize,
		TotalBlocks:      sb.TotalBlocks,
		InodeCount:       sb.InodeCount,
		InodeBitmapStart: sb.InodeBitmapStart,
		BlockBitmapStart: sb.BlockBitmapStart,
		InodeTableStart:  sb.InodeTableStart,
		DataAreaStart:    sb.DataAreaStart}
	r.FreeBlocks, r.FreeInodes = myfs.Usage()
	root, err := myfs.Inode(layout.RootIno)
	if err != nil {
		return
	}
	r.RootMode = root.Mode
	r.RootSize = root.Size
	r.RootBlock = root.Direct[0]
	entries, err := myfs.DirEntries(layout.RootIno)
	if err != nil {
		return
	}
	for _, e := range entries {
		t := "file"
		if e.IsDir() {
			t = "dir"
		}
		r.Root = append(r.Root, entryInfo{Inode: e.Inode,
			Name: e.NameString(), Type: t})
	}
	return
}

func (self *report) Print(w io.Writer) {
	fmt.Fprintf(w, "====== BWFS SUPERBLOCK ======\n")
	fmt.Fprintf(w, "Magic:           %q\n", self.Magic)
	fmt.Fprintf(w, "Version:         %d\n", self.Version)
	fmt.Fprintf(w, "Block size:      %d bytes\n", self.BlockSize)
	fmt.Fprintf(w, "Total blocks:    %d (%d free)\n", self.TotalBlocks, self.FreeBlocks)
	fmt.Fprintf(w, "Inode count:     %d (%d free)\n", self.InodeCount, self.FreeInodes)
	fmt.Fprintf(w, "Inode bitmap @   %d bytes\n", self.InodeBitmapStart)
	fmt.Fprintf(w, "Block bitmap @   %d bytes\n", self.BlockBitmapStart)
	fmt.Fprintf(w, "Inode table @    %d bytes\n", self.InodeTableStart)
	fmt.Fprintf(w, "Data area @      %d bytes\n", self.DataAreaStart)
	fmt.Fprintf(w, "\n====== ROOT INODE (/) ======\n")
	fmt.Fprintf(w, "Mode:            0%o\n", self.RootMode)
	fmt.Fprintf(w, "Size:            %d\n", self.RootSize)
	fmt.Fprintf(w, "Direct block[0]: %d\n", self.RootBlock)
	fmt.Fprintf(w, "\n====== ROOT DIRECTORY CONTENT ======\n")
	for _, e := range self.Root {
		fmt.Fprintf(w, "- inode %d : %s (%s)\n", e.Inode, e.Name, e.Type)
	}
}

func openConfigured(configPath string) (*fs.Fs, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err = os.Stat(cfg.ImagePath()); err != nil {
		return nil, err
	}
	dev, err := cfg.OpenDevice()
	if err != nil {
		return nil, err
	}
	myfs, err := fs.NewFs(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return myfs, nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n\n%s [-config FILE | -image FILE] [-json]\n", os.Args[0])
		flag.PrintDefaults()
	}
	configp := flag.String("config", "", "YAML configuration file")
	imagep := flag.String("image", "", "Image file to inspect, instead of the configured storage")
	jsonp := flag.Bool("json", false, "Produce JSON output")
	flag.Parse()

	var err error
	var myfs *fs.Fs
	if *imagep != "" {
		myfs, err = fs.Open(*imagep)
	} else {
		myfs, err = openConfigured(*configp)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer myfs.Close()

	r, err := newReport(myfs)
	if err != nil {
		log.Fatal(err)
	}
	if !*jsonp {
		r.Print(os.Stdout)
		return
	}
	var jh ugcodec.JsonHandle
	jh.Indent = 2
	if err = ugcodec.NewEncoder(os.Stdout, &jh).Encode(&r); err != nil {
		log.Fatal(err)
	}
	fmt.Println()
}
