/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Apr  4 16:20:31 2018 mstenber
 * Last modified: Wed Apr  4 16:41:07 2018 mstenber
 * Edit time:     9 min
 *
 */

// gid package extracts the current goroutine id for log prefixes.
// Do not use it for anything else.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

var stackPrefix = []byte("goroutine ")

// GetGoroutineID parses the id from the first line of the stack
// trace ("goroutine N [running]:"); 0 if that fails.
func GetGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	if !bytes.HasPrefix(b, stackPrefix) {
		return 0
	}
	b = b[len(stackPrefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
