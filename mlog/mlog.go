/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Sat Dec 30 13:41:33 2017 mstenber
 * Last modified: Tue Apr  3 09:02:44 2018 mstenber
 * Edit time:     118 min
 *
 */

// mlog is maybe-log: a small tracing wrapper around the standard
// 'log'. What to print is chosen with a regular expression matched
// against the file label given to Printf2 (or the caller's file name
// for Printf). The pattern comes from the -mlog flag, the BWFS_MLOG
// or MLOG environment variable, or SetPattern. Everything is off by
// default, and disabled calls cost only an atomic load.
//
// Call stack depth is used to indent the output, which makes nested
// filesystem operations readable.
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-bwfs/util/gid"
)

var logMode = log.Ltime | log.Lmicroseconds
var logger = log.New(os.Stderr, "", logMode)

const (
	StateUninitialized int32 = iota
	StateInitializing
	StateDisabled
	StateEnabled
)

// status is accessed atomically
var status int32 = StateUninitialized

var mutex sync.Mutex

// Everything else must be used only with mutex held
var flagPattern *string
var pattern string
var patternRegexp *regexp.Regexp
var file2Debug map[string]bool
var minDepth int
var callers []uintptr
var dumpGids bool

const maxDepth = 100

func init() {
	flagPattern = flag.String("mlog", "", "Enable logging based on the given file regular expression")
	Reset()
}

// Reset returns the module to its initial state; the next log call
// re-reads the pattern from flag and environment.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	atomic.StoreInt32(&status, StateUninitialized)
	minDepth = maxDepth
	callers = make([]uintptr, maxDepth)
}

// IsEnabled can be used to check if mlog is in use at all before
// doing something expensive.
func IsEnabled() bool {
	if atomic.LoadInt32(&status) == StateUninitialized {
		mutex.Lock()
		initialize()
		mutex.Unlock()
	}
	return atomic.LoadInt32(&status) == StateEnabled
}

// SetLogger overrides the output logger. The returned function
// restores the previous one.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	oldLogger := logger
	logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = oldLogger
	}
}

// SetPattern sets the pattern by hand, overriding flag and
// environment. The returned function restores the previous pattern.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	oldPattern := pattern
	initializeWithPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		initializeWithPattern(oldPattern)
	}
}

// SetGoroutineIDs toggles prefixing of each line with the goroutine
// id; useful when several FUSE requests are in flight.
func SetGoroutineIDs(enabled bool) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := dumpGids
	dumpGids = enabled
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		dumpGids = old
	}
}

func initializeWithPattern(p string) {
	pattern = p
	if p == "" {
		atomic.StoreInt32(&status, StateDisabled)
		return
	}
	patternRegexp = regexp.MustCompile(p)
	file2Debug = make(map[string]bool)
	atomic.StoreInt32(&status, StateEnabled)
}

func initialize() {
	if !atomic.CompareAndSwapInt32(&status, StateUninitialized, StateInitializing) {
		return
	}
	p := os.Getenv("MLOG")
	if v := os.Getenv("BWFS_MLOG"); v != "" {
		p = v
	}
	if *flagPattern != "" {
		p = *flagPattern
	}
	initializeWithPattern(p)
}

// Printf is drop-in replacement of log.Printf. It calls
// runtime.Caller() whenever mlog is enabled at all; prefer Printf2.
func Printf(format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == StateDisabled {
		return
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	Printf2(file, format, args...)
}

// Printf2 is Printf with the file label supplied by the caller, so
// non-matching calls only cost a map lookup.
func Printf2(file string, format string, args ...interface{}) {
	st := atomic.LoadInt32(&status)
	if st == StateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	if st < StateDisabled {
		initialize()
		if atomic.LoadInt32(&status) != StateEnabled {
			return
		}
	}
	debug, ok := file2Debug[file]
	if !ok {
		debug = patternRegexp.MatchString(file)
		file2Debug[file] = debug
	}
	if !debug {
		return
	}
	depth := runtime.Callers(1, callers)
	if depth < minDepth {
		minDepth = depth
	}
	depth -= minDepth
	if depth > 0 {
		format = strings.Repeat(".", depth) + format
	}
	if dumpGids {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
	}
	logger.Printf(format, args...)
}
