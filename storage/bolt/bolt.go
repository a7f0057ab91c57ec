/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Jan  3 22:49:15 2018 mstenber
 * Last modified: Thu Apr  5 17:20:34 2018 mstenber
 * Edit time:     58 min
 *
 */

package bolt

import (
	"os"
	"path/filepath"

	"github.com/fingon/go-bwfs/mlog"
	"github.com/fingon/go-bwfs/storage"
	bbolt "go.etcd.io/bbolt"
)

var pageBucket = []byte("pages")
var metaBucket = []byte("meta")

// boltPageStore provides on-disk page storage in a single bbolt
// file.
//
// - pages bucket: storage.PageKey(n) -> (encoded) page
// - meta bucket: storage.MetaKey() -> device metadata
type boltPageStore struct {
	db *bbolt.DB
}

var _ storage.PageStore = &boltPageStore{}

func NewBoltPageStore(path string) (storage.PageStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(pageBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltPageStore{db: db}, nil
}

// NewBoltDevice returns a page device stored in bbolt file at
// config.Path.
func NewBoltDevice(config storage.BackendConfiguration) (storage.Device, error) {
	ps, err := NewBoltPageStore(config.Path)
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

func (self *boltPageStore) get(bucket, key []byte) (v []byte, err error) {
	err = self.db.View(func(tx *bbolt.Tx) error {
		// bolt values are valid only within the transaction
		if b := tx.Bucket(bucket).Get(key); b != nil {
			v = append([]byte(nil), b...)
		}
		return nil
	})
	return
}

func (self *boltPageStore) put(bucket, key, value []byte) error {
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

func (self *boltPageStore) GetPage(n uint64) ([]byte, error) {
	return self.get(pageBucket, storage.PageKey(n))
}

func (self *boltPageStore) SetPage(n uint64, data []byte) error {
	mlog.Printf2("storage/bolt/bolt", "bbolt.SetPage %d (%d b)", n, len(data))
	return self.put(pageBucket, storage.PageKey(n), data)
}

func (self *boltPageStore) DeletePage(n uint64) error {
	mlog.Printf2("storage/bolt/bolt", "bbolt.DeletePage %d", n)
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(pageBucket).Delete(storage.PageKey(n))
	})
}

func (self *boltPageStore) GetMeta() ([]byte, error) {
	return self.get(metaBucket, storage.MetaKey())
}

func (self *boltPageStore) SetMeta(data []byte) error {
	return self.put(metaBucket, storage.MetaKey(), data)
}

func (self *boltPageStore) Sync() error {
	return self.db.Sync()
}

func (self *boltPageStore) Close() error {
	return self.db.Close()
}
