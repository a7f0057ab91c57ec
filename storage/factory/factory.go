/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 12:22:52 2018 mstenber
 * Last modified: Fri Apr  6 09:46:50 2018 mstenber
 * Edit time:     51 min
 *
 */

package factory

import (
	"fmt"
	"sort"

	"github.com/fingon/go-bwfs/codec"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/storage/badger"
	"github.com/fingon/go-bwfs/storage/bolt"
	"github.com/fingon/go-bwfs/storage/file"
	"github.com/fingon/go-bwfs/storage/inmemory"
	"github.com/fingon/go-bwfs/util"
)

type factoryCallback func(config storage.BackendConfiguration) (storage.Device, error)

var backendFactories = map[string]factoryCallback{
	"inmemory": func(config storage.BackendConfiguration) (storage.Device, error) {
		return inmemory.NewInMemoryDevice(), nil
	},
	"badger": badger.NewBadgerDevice,
	"bolt":   bolt.NewBoltDevice,
	"file": func(config storage.BackendConfiguration) (storage.Device, error) {
		if config.Codec != nil {
			return nil, fmt.Errorf("file backend does not support codecs")
		}
		return file.NewFileDevice(config.Path)
	}}

// List returns the backend names in sorted order.
func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SupportsCodec is true for the backends that store pages.
func SupportsCodec(name string) bool {
	return name == "bolt" || name == "badger"
}

func New(name string, config storage.BackendConfiguration) (storage.Device, error) {
	mlog.Printf2("storage/factory/factory", "f.New %v %v", name, config.Path)
	cb, ok := backendFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, List())
	}
	return cb(config)
}

const (
	defaultIterations = 12345
	defaultSalt       = "asdf"
)

type CryptoStorageConfiguration struct {
	storage.BackendConfiguration
	BackendName string

	// Password enables encryption. Page stores always compress.
	Password   string
	Salt       string
	Iterations int
}

// NewCryptoDevice is New with the codec chain derived from the
// configuration.
func NewCryptoDevice(config CryptoStorageConfiguration) (storage.Device, error) {
	mlog.Printf2("storage/factory/factory", "f.NewCryptoDevice %v", config.BackendName)
	beconfig := config.BackendConfiguration
	if !SupportsCodec(config.BackendName) {
		if config.Password != "" {
			return nil, fmt.Errorf("backend %q cannot encrypt", config.BackendName)
		}
		return New(config.BackendName, beconfig)
	}
	iterations := config.Iterations
	if iterations == 0 {
		iterations = defaultIterations
	}
	salt := util.SOr(config.Salt, defaultSalt)
	c2 := &codec.CompressingCodec{}
	if config.Password != "" {
		mlog.Printf2("storage/factory/factory", " with encryption + compression")
		c1, err := codec.EncryptingCodec{}.Init([]byte(config.Password), []byte(salt), iterations)
		if err != nil {
			return nil, err
		}
		beconfig.Codec = codec.CodecChain{}.Init(c1, c2)
	} else {
		mlog.Printf2("storage/factory/factory", " only compression")
		beconfig.Codec = codec.CodecChain{}.Init(c2)
	}
	return New(config.BackendName, beconfig)
}
