/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:04:44 2017 mstenber
 * Last modified: Wed Apr  4 16:14:02 2018 mstenber
 * Edit time:     2 min
 *
 */

package util

import (
	"testing"

	"github.com/stvp/assert"
)

func TestMinMax(t *testing.T) {
	t.Parallel()
	assert.Equal(t, UMin(3, 1, 2), uint64(1))
	assert.Equal(t, UMax(3, 1, 7), uint64(7))
	assert.Equal(t, UMin(3), uint64(3))
}

func TestCeilDiv(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CeilDiv(0, 512), uint64(0))
	assert.Equal(t, CeilDiv(1, 512), uint64(1))
	assert.Equal(t, CeilDiv(512, 512), uint64(1))
	assert.Equal(t, CeilDiv(513, 512), uint64(2))
}

func TestSOr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SOr("", "", "b", "c"), "b")
	assert.Equal(t, SOr("a", "b"), "a")
	assert.Equal(t, SOr(""), "")
}
