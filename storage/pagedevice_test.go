/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 14:50:30 2018 mstenber
 * Last modified: Thu Apr  5 16:52:11 2018 mstenber
 * Edit time:     27 min
 *
 */

package storage_test

import (
	"testing"

	"github.com/fingon/go-bwfs/codec"
	"github.com/fingon/go-bwfs/storage"
	"github.com/fingon/go-bwfs/storage/inmemory"
	"github.com/stvp/assert"
)

type pageCounter interface {
	PageCount() int
}

func TestPageDeviceSparse(t *testing.T) {
	t.Parallel()
	ps := inmemory.NewInMemoryPageStore()
	dev, err := storage.NewPageDevice(ps, storage.BackendConfiguration{PageSize: 512})
	assert.Nil(t, err)
	assert.Equal(t, dev.PageSize(), int64(512))
	assert.Nil(t, dev.Truncate(1<<20))
	assert.Equal(t, ps.(pageCounter).PageCount(), 0)

	_, err = dev.WriteAt([]byte{1}, 1000)
	assert.Nil(t, err)
	assert.Equal(t, ps.(pageCounter).PageCount(), 1)

	// zeroing the page again removes it
	_, err = dev.WriteAt([]byte{0}, 1000)
	assert.Nil(t, err)
	assert.Equal(t, ps.(pageCounter).PageCount(), 0)

	// metadata is persisted
	dev2, err := storage.NewPageDevice(ps, storage.BackendConfiguration{PageSize: 4096, CacheSize: -1})
	assert.Nil(t, err)
	assert.Equal(t, dev2.PageSize(), int64(512))
	assert.Equal(t, dev2.Size(), int64(1<<20))
}

func TestPageDeviceCodec(t *testing.T) {
	t.Parallel()
	ps := inmemory.NewInMemoryPageStore()
	c := codec.CodecChain{}.Init(&codec.CompressingCodec{})
	config := storage.BackendConfiguration{Codec: c, CacheSize: -1}
	dev, err := storage.NewPageDevice(ps, config)
	assert.Nil(t, err)
	_, err = dev.WriteAt([]byte("compressme compressme compressme"), 10)
	assert.Nil(t, err)

	raw, err := ps.GetPage(0)
	assert.Nil(t, err)
	assert.True(t, len(raw) < storage.DefaultPageSize)

	b := make([]byte, 10)
	assert.Nil(t, storage.ReadFull(dev, b, 10))
	assert.Equal(t, string(b), "compressme")

	// garbage in the store is reported, not returned
	assert.Nil(t, ps.SetPage(0, []byte{42}))
	assert.True(t, storage.ReadFull(dev, b, 10) != nil)
}

func TestPageDeviceClosed(t *testing.T) {
	t.Parallel()
	dev, err := storage.NewPageDevice(inmemory.NewInMemoryPageStore(), storage.BackendConfiguration{})
	assert.Nil(t, err)
	assert.Nil(t, dev.Close())
	assert.Nil(t, dev.Close())
	_, err = dev.WriteAt([]byte{1}, 0)
	assert.Equal(t, err, storage.ErrClosed)
}
