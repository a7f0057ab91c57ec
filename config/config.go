/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr  6 12:02:17 2018 mstenber
 * Last modified: Fri Apr  6 13:15:40 2018 mstenber
 * Edit time:     38 min
 *
 */

// config package loads the settings shared by the bwfs tools.
//
// Values come from the built-in defaults, then the optional YAML file,
// and finally BWFS_* environment variables (e.g. BWFS_BLOCK_SIZE).
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/fingon/go-bwfs/layout"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/storage/factory"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "BWFS"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Name        string `yaml:"name"         envconfig:"name"`
	BlockSize   uint64 `yaml:"block_size"   envconfig:"block_size"`
	TotalBlocks uint64 `yaml:"total_blocks" envconfig:"total_blocks"`
	InodeCount  uint64 `yaml:"inode_count"  envconfig:"inode_count"`

	DataDir     string `yaml:"data_dir"     envconfig:"data_dir"`
	ImagePrefix string `yaml:"image_prefix" envconfig:"image_prefix"`

	// Backend is one of factory.List().
	Backend   string `yaml:"backend"    envconfig:"backend"`
	Password  string `yaml:"password"   envconfig:"password"`
	CacheSize int    `yaml:"cache_size" envconfig:"cache_size"`
	PageSize  int    `yaml:"page_size"  envconfig:"page_size"`
}

func Default() *Config {
	return &Config{
		Name:        "bwfs",
		BlockSize:   4096,
		TotalBlocks: 1024,
		InodeCount:  128,
		DataDir:     ".",
		ImagePrefix: "bwfs",
		Backend:     "file",
		CacheSize:   storage.DefaultCacheSize,
		PageSize:    storage.DefaultPageSize,
	}
}

// Load returns the configuration from path (if not empty) and the
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err = yaml.UnmarshalStrict(data, c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}
	if err := envconfig.Process(envVarPrefix, c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return c, nil
}

func (self *Config) Validate() error {
	if y, e := func() (string, string) {
		if self.Name == "" {
			return "name", "NAME"
		}
		if self.DataDir == "" {
			return "data_dir", "DATA_DIR"
		}
		if self.ImagePrefix == "" {
			return "image_prefix", "IMAGE_PREFIX"
		}
		if self.Backend == "" {
			return "backend", "BACKEND"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf("%w: missing %s / %s_%s", ErrInvalid, y,
			envVarPrefix, e)
	}
	known := false
	for _, v := range factory.List() {
		known = known || v == self.Backend
	}
	if !known {
		return fmt.Errorf("%w: unknown backend %q (available: %v)",
			ErrInvalid, self.Backend, factory.List())
	}
	if self.Password != "" && !factory.SupportsCodec(self.Backend) {
		return fmt.Errorf("%w: backend %q cannot encrypt", ErrInvalid,
			self.Backend)
	}
	if self.PageSize < 0 {
		return fmt.Errorf("%w: page_size %d", ErrInvalid, self.PageSize)
	}
	if err := self.Geometry().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ImagePath is where the image (or its page store) lives.
func (self *Config) ImagePath() string {
	return filepath.Join(self.DataDir, self.ImagePrefix+".img")
}

func (self *Config) Geometry() layout.Geometry {
	return layout.Geometry{BlockSize: self.BlockSize,
		TotalBlocks: self.TotalBlocks,
		InodeCount:  self.InodeCount}
}

func (self *Config) BackendConfiguration() factory.CryptoStorageConfiguration {
	return factory.CryptoStorageConfiguration{
		BackendConfiguration: storage.BackendConfiguration{
			Path:      self.ImagePath(),
			PageSize:  self.PageSize,
			CacheSize: self.CacheSize,
		},
		BackendName: self.Backend,
		Password:    self.Password,
	}
}

// OpenDevice opens (or creates) the configured storage device.
func (self *Config) OpenDevice() (storage.Device, error) {
	return factory.NewCryptoDevice(self.BackendConfiguration())
}
