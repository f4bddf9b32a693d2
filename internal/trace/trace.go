// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package trace provides concurrent-safe worker/trace ID generation,
// used both for structured-log trace IDs and for the worker_name recorded
// in a job's info file.
package trace

import (
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sk-pkg/util"
)

const (
	initIndex = 10000000 // Initial sequence value for each prefix epoch.
	indexBase = 36       // Base used to encode sequence and timestamp.
)

var (
	hostnameOnce sync.Once // Ensures hostname lookup is executed once.
	hostname     string    // Cached hostname reused by all IDs.
)

// ID generates unique IDs with a host+timestamp prefix, shared by the
// logger's trace IDs and the worker runner's worker_name values.
type ID struct {
	index  uint64     // Sequence number, accessed atomically.
	prefix string     // Prefix containing hostname and timestamp.
	mu     sync.Mutex // Protects prefix refresh and reset operations.
}

// NewTraceID creates an ID generator initialized with host prefix data.
func NewTraceID() *ID {
	t := &ID{
		index: initIndex,
	}
	t.updatePrefix()
	return t
}

func (t *ID) updatePrefix() {
	var err error

	t.mu.Lock()
	defer t.mu.Unlock()

	hostnameOnce.Do(func() {
		hostname, err = os.Hostname()
		if err != nil {
			log.Printf("failed to get hostname: %v", err)
			hostname = "unknown"
		}
	})

	t.prefix = util.SpliceStr(hostname, "-", strconv.FormatInt(time.Now().UnixNano(), indexBase), "-")
	t.index = initIndex
}

// New returns a new unique ID string.
func (t *ID) New() string {
	newIndex := atomic.AddUint64(&t.index, 1)

	if newIndex == 0 {
		t.mu.Lock()
		defer t.mu.Unlock()
		if atomic.LoadUint64(&t.index) == 0 {
			t.updatePrefix()
		}
	}

	id := strconv.FormatUint(newIndex, indexBase)

	return util.SpliceStr(t.prefix, id)
}

// WorkerName derives a worker_name value for one dispatched job from a
// fresh trace ID, distinguishing concurrent local dispatches in the info
// file even though the info filename itself keeps the "x" placeholder.
func WorkerName(gen *ID) string {
	return "w-" + gen.New()
}
