/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr  3 09:12:40 2018 mstenber
 * Last modified: Fri Apr  6 10:02:19 2018 mstenber
 * Edit time:     22 min
 *
 */

// storage package provides the byte-addressed devices a bwfs image
// lives on.
//
// The plain file device maps the image 1:1 onto a host file. The
// page devices split it into fixed size pages stored in a key-value
// database, optionally compressed and encrypted by a codec chain.
package storage

import (
	"errors"
	"io"

	"github.com/fingon/go-bwfs/codec"
)

var ErrClosed = errors.New("device closed")

// Device is the image as seen by the filesystem. Reads beyond Size
// return io.EOF for the missing part; writes beyond Size grow the
// device.
type Device interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the current size in bytes.
	Size() int64

	// Truncate sets the size; new space reads as zeros.
	Truncate(size int64) error

	// Sync flushes everything written so far to stable storage.
	Sync() error

	Close() error
}

type BackendConfiguration struct {
	// Path is the image file, or the database file / directory
	// for the page stores.
	Path string

	// PageSize of the page devices; zero means DefaultPageSize.
	// Ignored if the store already has its page size recorded.
	PageSize int

	// CacheSize is the number of decoded pages kept around; zero
	// means DefaultCacheSize and negative disables caching.
	CacheSize int

	// Codec is applied to each stored page. Nil stores pages as is.
	Codec codec.Codec
}

const (
	DefaultPageSize  = 4096
	DefaultCacheSize = 256
)

// ReadFull reads len(b) bytes at off; short reads are errors.
func ReadFull(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
