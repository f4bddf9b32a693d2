// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package clock provides the process-wide "now in timezone T" + sleep
// abstraction the scheduler uses everywhere it would otherwise call
// time.Now/time.Sleep directly, so tests can drive the loop deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current instant and sleeping so production code uses
// the real wall clock and tests can inject a mock that advances on Sleep.
type Clock interface {
	Now(tz string) (time.Time, error)
	Sleep(d time.Duration)
}

// Real is the production Clock: wall-clock time, real sleeps.
type Real struct{}

// NewReal returns the production clock.
func NewReal() *Real { return &Real{} }

func (Real) Now(tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().In(loc), nil
}

func (Real) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Mock is a test clock: Now returns a stored instant, Sleep advances it
// instead of blocking.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a mock clock pinned at the given instant (any timezone;
// Now converts into the requested zone).
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Set pins the mock clock to a new instant.
func (m *Mock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Mock) Now(tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.In(loc), nil
}

func (m *Mock) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
