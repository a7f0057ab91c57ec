/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Wed Apr  4 16:33:50 2018 mstenber
 * Last modified: Wed Apr  4 16:40:12 2018 mstenber
 * Edit time:     4 min
 *
 */

package gid

import (
	"testing"

	"github.com/stvp/assert"
)

func TestGetGoroutineID(t *testing.T) {
	id := GetGoroutineID()
	assert.True(t, id != 0)
	assert.Equal(t, GetGoroutineID(), id)
	ch := make(chan uint64)
	go func() {
		ch <- GetGoroutineID()
	}()
	other := <-ch
	assert.True(t, other != 0)
	assert.NotEqual(t, other, id)
}

func BenchmarkGetGoroutineID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GetGoroutineID()
	}
}
