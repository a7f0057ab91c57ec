/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 09:40:02 2018 mstenber
 * Last modified: Thu Apr  5 16:21:48 2018 mstenber
 * Edit time:     11 min
 *
 */

package storage

import "encoding/binary"

// PageStore is the key-value database underneath PageDevice. It does
// not know anything about page contents; they may be encoded.
type PageStore interface {
	// GetPage returns the stored page or nil if there is none.
	GetPage(n uint64) ([]byte, error)

	SetPage(n uint64, data []byte) error

	// DeletePage removes the page; missing pages are not an error.
	DeletePage(n uint64) error

	// GetMeta returns the device metadata record or nil.
	GetMeta() ([]byte, error)

	SetMeta(data []byte) error

	Sync() error

	Close() error
}

var metaKey = []byte("m")

// PageKey is the database key of page n. Big-endian numbering keeps
// pages in order within the database.
func PageKey(n uint64) []byte {
	k := make([]byte, 9)
	k[0] = 'p'
	binary.BigEndian.PutUint64(k[1:], n)
	return k
}

// MetaKey is the database key of the device metadata record.
func MetaKey() []byte {
	return metaKey
}
