/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:03:12 2017 mstenber
 * Last modified: Wed Apr  4 16:12:30 2018 mstenber
 * Edit time:     12 min
 *
 */

package util

func UMin(i uint64, ints ...uint64) uint64 {
	for _, v := range ints {
		if v < i {
			i = v
		}
	}
	return i
}

func UMax(i uint64, ints ...uint64) uint64 {
	for _, v := range ints {
		if v > i {
			i = v
		}
	}
	return i
}

// CeilDiv is a/b rounded up.
func CeilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// SOr returns the first non-empty string.
func SOr(i string, strings ...string) string {
	if i != "" {
		return i
	}
	for _, v := range strings {
		if v != "" {
			return v
		}
	}
	return ""
}
