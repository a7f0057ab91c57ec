/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 12:21:40 2018 mstenber
 * Last modified: Tue Apr  3 08:51:10 2018 mstenber
 * Edit time:     21 min
 *
 */

package util

import "sync"

// MutexLocked is sync.Mutex with convenience feature: just
// defer x.Locked()().
type MutexLocked sync.Mutex

func (self *MutexLocked) Locked() (unlock func()) {
	mut := (*sync.Mutex)(self)
	mut.Lock()
	return func() {
		mut.Unlock()
	}
}

// TryLocked returns nil if the lock is held by someone else.
func (self *MutexLocked) TryLocked() (unlock func()) {
	mut := (*sync.Mutex)(self)
	if !mut.TryLock() {
		return nil
	}
	return func() {
		mut.Unlock()
	}
}
