/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 13:18:26 2017 mstenber
 * Last modified: Fri Apr  6 14:31:50 2018 mstenber
 * Edit time:     91 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/fingon/go-bwfs/config"
	"github.com/fingon/go-bwfs/fs"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// openFs mounts image if given, and the configured storage otherwise.
func openFs(cfg *config.Config, image string) (myfs *fs.Fs, path string, err error) {
	if image != "" {
		myfs, err = fs.Open(image)
		return myfs, image, err
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	path = cfg.ImagePath()
	if _, err = os.Stat(path); err != nil {
		err = fmt.Errorf("filesystem image not found (run mkfs.bwfs first): %w", err)
		return
	}
	dev, err := cfg.OpenDevice()
	if err != nil {
		return
	}
	myfs, err = fs.NewFs(dev)
	if err != nil {
		dev.Close()
	}
	return
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n\n%s [-config FILE | -image FILE] MOUNTDIR\n", os.Args[0])
		flag.PrintDefaults()
	}
	configp := flag.String("config", "", "YAML configuration file")
	imagep := flag.String("image", "", "Image file to mount, instead of the configured storage")
	allowOther := flag.Bool("allow-other", false, "Allow other users to access the filesystem")
	cpuprofile := flag.String("cpuprofile", "", "CPU profile file")
	memprofile := flag.String("memprofile", "", "Memory profile file")

	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	mountpoint := flag.Arg(0)
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(mountpoint); err != nil {
		log.Fatalf("mount point: %v", err)
	}

	cfg, err := config.Load(*configp)
	if err != nil {
		log.Fatal(err)
	}
	myfs, path, err := openFs(cfg, *imagep)
	if err != nil {
		log.Fatal(err)
	}

	opts := &fuse.MountOptions{AllowOther: *allowOther,
		FsName: cfg.Name,
		Name:   "bwfs"}
	if mlog.IsEnabled() {
		opts.Debug = true
	}
	server, err := fuse.NewServer(myfs.RawFileSystem(), mountpoint, opts)
	if err != nil {
		myfs.Close()
		log.Panic(err)
	}
	log.Printf("Mounted %s at %s (Ctrl-C to unmount)", path, mountpoint)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("Got %v, unmounting", sig)
		if err := server.Unmount(); err != nil {
			log.Printf("Unmount failed: %v", err)
		}
	}()

	// loop is here
	server.Serve()

	if err = myfs.Close(); err != nil {
		log.Print(err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
