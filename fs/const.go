/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 09:19:42 2017 mstenber
 * Last modified: Wed Apr  4 10:21:19 2018 mstenber
 * Edit time:     4 min
 *
 */

package fs

import "time"

// Seconds the kernel may cache attributes and entries. We are the
// only writer of the image while mounted.
const attrValidity = 5 * time.Second
const entryValidity = 5 * time.Second

// st_blocks is always in 512 byte units
const statBlockSize = 512

// RENAME_NOREPLACE of renameat2
const renameNoReplace = 1
