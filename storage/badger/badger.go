/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 23 15:10:01 2017 mstenber
 * Last modified: Thu Apr  5 17:31:56 2018 mstenber
 * Edit time:     171 min
 *
 */

package badger

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
)

// badgerPageStore provides on-disk page storage in a badger
// directory.
//
// - storage.PageKey(n) -> (encoded) page
// - storage.MetaKey() -> device metadata
type badgerPageStore struct {
	db *badger.DB
}

var _ storage.PageStore = &badgerPageStore{}

func NewBadgerPageStore(dir string) (storage.PageStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerPageStore{db: db}, nil
}

// NewBadgerDevice returns a page device stored in badger directory
// config.Path.
func NewBadgerDevice(config storage.BackendConfiguration) (storage.Device, error) {
	ps, err := NewBadgerPageStore(config.Path)
	if err != nil {
		return nil, err
	}
	dev, err := storage.NewPageDevice(ps, config)
	if err != nil {
		ps.Close()
		return nil, err
	}
	return dev, nil
}

func (self *badgerPageStore) get(k []byte) (v []byte, err error) {
	err = self.db.View(func(txn *badger.Txn) error {
		i, err := txn.Get(k)
		if err == nil {
			v, err = i.ValueCopy(nil)
		}
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return
}

func (self *badgerPageStore) set(k, v []byte) error {
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
}

func (self *badgerPageStore) GetPage(n uint64) ([]byte, error) {
	return self.get(storage.PageKey(n))
}

func (self *badgerPageStore) SetPage(n uint64, data []byte) error {
	mlog.Printf2("storage/badger/badger", "bad.SetPage %d (%d b)", n, len(data))
	return self.set(storage.PageKey(n), data)
}

func (self *badgerPageStore) DeletePage(n uint64) error {
	mlog.Printf2("storage/badger/badger", "bad.DeletePage %d", n)
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storage.PageKey(n))
	})
}

func (self *badgerPageStore) GetMeta() ([]byte, error) {
	return self.get(storage.MetaKey())
}

func (self *badgerPageStore) SetMeta(data []byte) error {
	return self.set(storage.MetaKey(), data)
}

// Sync is a no-op; default options write synchronously already.
func (self *badgerPageStore) Sync() error {
	return nil
}

func (self *badgerPageStore) Close() error {
	return self.db.Close()
}
