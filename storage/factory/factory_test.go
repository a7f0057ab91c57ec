/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Jan  5 16:28:57 2018 mstenber
 * Last modified: Fri Apr  6 09:58:20 2018 mstenber
 * Edit time:     36 min
 *
 */

package factory

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/fingon/go-bwfs/storage"
	"github.com/stvp/assert"
)

func TestList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, len(List()), len(backendFactories))
	assert.Equal(t, List(), []string{"badger", "bolt", "file", "inmemory"})
	_, err := New("nope", storage.BackendConfiguration{})
	assert.True(t, err != nil)
}

func ProdDevice(t *testing.T, dev storage.Device) {
	assert.Equal(t, dev.Size(), int64(0))
	b := make([]byte, 10)
	n, err := dev.ReadAt(b, 0)
	assert.Equal(t, n, 0)
	assert.Equal(t, err, io.EOF)

	assert.Nil(t, dev.Truncate(10000))
	assert.Equal(t, dev.Size(), int64(10000))
	n, err = dev.ReadAt(b, 5000)
	assert.Nil(t, err)
	assert.Equal(t, b, make([]byte, 10))

	// write across page boundary
	data := []byte("hello page boundary")
	n, err = dev.WriteAt(data, 4090)
	assert.Nil(t, err)
	assert.Equal(t, n, len(data))
	got := make([]byte, len(data))
	assert.Nil(t, storage.ReadFull(dev, got, 4090))
	assert.Equal(t, got, data)

	// write beyond end grows
	n, err = dev.WriteAt([]byte("tail"), 12000)
	assert.Nil(t, err)
	assert.Equal(t, dev.Size(), int64(12004))

	// short read at end
	n, err = dev.ReadAt(b, 12000)
	assert.Equal(t, n, 4)
	assert.Equal(t, err, io.EOF)
	assert.Equal(t, string(b[:4]), "tail")

	// shrink then grow: the dropped area reads as zeros
	assert.Nil(t, dev.Truncate(4095))
	assert.Nil(t, dev.Truncate(12004))
	assert.Nil(t, storage.ReadFull(dev, got, 4090))
	assert.Equal(t, got[:5], data[:5])
	assert.Equal(t, got[5:], make([]byte, len(data)-5))

	assert.Nil(t, dev.Sync())
}

func TestBackends(t *testing.T) {
	for _, name := range List() {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir, _ := ioutil.TempDir("", name)
			defer os.RemoveAll(dir)
			config := storage.BackendConfiguration{Path: filepath.Join(dir, "image")}
			dev, err := New(name, config)
			assert.Nil(t, err)
			ProdDevice(t, dev)
			assert.Nil(t, dev.Close())

			if name == "inmemory" {
				return
			}
			// contents survive reopen
			dev, err = New(name, config)
			assert.Nil(t, err)
			defer dev.Close()
			assert.Equal(t, dev.Size(), int64(12004))
			b := make([]byte, 5)
			assert.Nil(t, storage.ReadFull(dev, b, 4090))
			assert.Equal(t, string(b), "hello")
		})
	}
}

func TestCryptoDevice(t *testing.T) {
	for _, name := range []string{"bolt", "badger"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir, _ := ioutil.TempDir("", fmt.Sprintf("crypto-%s", name))
			defer os.RemoveAll(dir)
			config := CryptoStorageConfiguration{BackendName: name,
				Password: "secret"}
			config.Path = filepath.Join(dir, "image")
			dev, err := NewCryptoDevice(config)
			assert.Nil(t, err)
			ProdDevice(t, dev)
			assert.Nil(t, dev.Close())

			dev, err = NewCryptoDevice(config)
			assert.Nil(t, err)
			b := make([]byte, 5)
			assert.Nil(t, storage.ReadFull(dev, b, 4090))
			assert.Equal(t, string(b), "hello")
			assert.Nil(t, dev.Close())

			// wrong password cannot read the pages
			config.Password = "other"
			dev, err = NewCryptoDevice(config)
			assert.Nil(t, err)
			defer dev.Close()
			assert.True(t, storage.ReadFull(dev, b, 4090) != nil)
		})
	}
}

func TestCryptoUnsupported(t *testing.T) {
	t.Parallel()
	config := CryptoStorageConfiguration{BackendName: "inmemory",
		Password: "secret"}
	_, err := NewCryptoDevice(config)
	assert.True(t, err != nil)

	config.Password = ""
	dev, err := NewCryptoDevice(config)
	assert.Nil(t, err)
	dev.Close()
}
