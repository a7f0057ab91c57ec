/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr  6 13:20:44 2018 mstenber
 * Last modified: Fri Apr  6 14:02:19 2018 mstenber
 * Edit time:     24 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fingon/go-bwfs/config"
	"github.com/fingon/go-bwfs/mkfs"
	"github.com/fingon/go-bwfs/storage/factory"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n\n%s [-config FILE]\n", os.Args[0])
		flag.PrintDefaults()
	}
	configp := flag.String("config", "", "YAML configuration file")
	backendp := flag.String("backend", "",
		fmt.Sprintf("Backend to use, overriding configuration (possible: %v)", factory.List()))
	force := flag.Bool("force", false, "Overwrite existing image")
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configp)
	if err != nil {
		log.Fatal(err)
	}
	if *backendp != "" {
		cfg.Backend = *backendp
	}
	if err = cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	path := cfg.ImagePath()
	if _, err = os.Stat(path); err == nil && !*force {
		log.Fatalf("%s already exists (use -force to overwrite)", path)
	}
	if err = os.MkdirAll(cfg.DataDir, 0700); err != nil {
		log.Fatal(err)
	}

	dev, err := cfg.OpenDevice()
	if err != nil {
		log.Fatal(err)
	}
	sb, err := mkfs.Format(dev, cfg.Geometry())
	if err != nil {
		dev.Close()
		log.Fatal(err)
	}
	if err = dev.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created %s filesystem %q at %s\n", cfg.Backend, cfg.Name, path)
	fmt.Printf("  Block size:   %d bytes\n", sb.BlockSize)
	fmt.Printf("  Total blocks: %d\n", sb.TotalBlocks)
	fmt.Printf("  Inode count:  %d\n", sb.InodeCount)
	fmt.Printf("  Image size:   %d bytes\n", sb.ImageSize())
}
