/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr  6 12:40:03 2018 mstenber
 * Last modified: Fri Apr  6 13:16:22 2018 mstenber
 * Edit time:     17 min
 *
 */

package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/fingon/go-bwfs/layout"
	"github.com/stvp/assert"
)

func writeConfig(t *testing.T, dir, data string) string {
	path := filepath.Join(dir, "bwfs.yaml")
	err := ioutil.WriteFile(path, []byte(data), 0600)
	assert.Nil(t, err)
	return path
}

func TestDefault(t *testing.T) {
	c, err := Load("")
	assert.Nil(t, err)
	assert.Nil(t, c.Validate())
	assert.Equal(t, c.ImagePath(), "bwfs.img")
	assert.Equal(t, c.BackendConfiguration().BackendName, "file")

	c.Backend = "inmemory"
	dev, err := c.OpenDevice()
	assert.Nil(t, err)
	assert.Equal(t, dev.Size(), int64(0))
	assert.Nil(t, dev.Close())
}

func TestLoad(t *testing.T) {
	dir, _ := ioutil.TempDir("", "bwfsconfig")
	defer os.RemoveAll(dir)

	path := writeConfig(t, dir, `
name: test
block_size: 1024
total_blocks: 100
inode_count: 10
data_dir: /tmp/x
image_prefix: disk
backend: bolt
password: secret
`)
	c, err := Load(path)
	assert.Nil(t, err)
	assert.Nil(t, c.Validate())
	assert.Equal(t, c.Name, "test")
	assert.Equal(t, c.Geometry(), layout.Geometry{BlockSize: 1024,
		TotalBlocks: 100, InodeCount: 10})
	assert.Equal(t, c.ImagePath(), "/tmp/x/disk.img")
	bc := c.BackendConfiguration()
	assert.Equal(t, bc.Path, "/tmp/x/disk.img")
	assert.Equal(t, bc.Password, "secret")
	// untouched default
	assert.Equal(t, c.PageSize, 4096)

	// environment wins over the file
	os.Setenv("BWFS_BLOCK_SIZE", "2048")
	defer os.Unsetenv("BWFS_BLOCK_SIZE")
	c, err = Load(path)
	assert.Nil(t, err)
	assert.Equal(t, c.BlockSize, uint64(2048))

	_, err = Load(writeConfig(t, dir, "blocksize: 1024\n"))
	assert.True(t, err != nil)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, err != nil)
}

func TestValidate(t *testing.T) {
	bad := []func(c *Config){
		func(c *Config) { c.Name = "" },
		func(c *Config) { c.DataDir = "" },
		func(c *Config) { c.Backend = "tape" },
		func(c *Config) { c.Password = "x" },
		func(c *Config) { c.BlockSize = 100 },
		func(c *Config) { c.InodeCount = 1 },
		func(c *Config) { c.PageSize = -1 },
	}
	for _, f := range bad {
		c := Default()
		f(c)
		assert.True(t, errors.Is(c.Validate(), ErrInvalid))
	}
	c := Default()
	c.Backend = "badger"
	c.Password = "x"
	assert.Nil(t, c.Validate())
}
