// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dependency implements the closed sum type of job dependencies:
// time-of-day, internal job, external job, and token. Dependencies are
// value-equal and hashable by their stable string form, since a job's
// dependency set must de-duplicate.
package dependency

import (
	"fmt"
	"time"

	"github.com/taskforest/pytf/internal/clock"
)

// World is the two-level projection family -> job -> terminal result, built
// once per tick from today's log directory. It only needs to answer
// "did (family, job) succeed today", so it is kept abstract here to avoid an
// import cycle with the jobresult package; the scheduler fills it in.
type World interface {
	Succeeded(family, job string) bool
}

// Dependency is satisfied or not against a World projection and the current
// clock. Key returns the stable string identity used for set de-duplication.
type Dependency interface {
	Met(w World, c clock.Clock) (bool, error)
	Key() string
}

// Time is satisfied once the clock reaches hh:mm today in tz. Every job
// inherits one from its family's start time, plus its own if it declares one.
type Time struct {
	HH, MM int
	TZ     string
}

func (t Time) Met(_ World, c clock.Clock) (bool, error) {
	now, err := c.Now(t.TZ)
	if err != nil {
		return false, err
	}
	then := time.Date(now.Year(), now.Month(), now.Day(), t.HH, t.MM, 0, 0, now.Location())
	return !then.After(now), nil
}

func (t Time) Key() string {
	return fmt.Sprintf("time:%02d%02d:%s", t.HH, t.MM, t.TZ)
}

// Job is satisfied when the named job in the same family has a terminal
// Success (error_code == 0) in today's projection.
type Job struct {
	Family, Job string
}

func (d Job) Met(w World, _ clock.Clock) (bool, error) {
	return w.Succeeded(d.Family, d.Job), nil
}

func (d Job) Key() string {
	return fmt.Sprintf("job:%s:%s", d.Family, d.Job)
}

// External is satisfied when the named job in a *different* family has a
// terminal Success in today's projection. No transitive implications.
type External struct {
	Family, Job string
}

func (d External) Met(w World, _ clock.Clock) (bool, error) {
	return w.Succeeded(d.Family, d.Job), nil
}

func (d External) Key() string {
	return fmt.Sprintf("ext:%s:%s", d.Family, d.Job)
}

// Token is reserved: actual token waiting is a separate pass over the
// scheduling engine's Ready set, not a dependency check, so Met always
// succeeds here.
type Token struct {
	Name string
}

func (d Token) Met(_ World, _ clock.Clock) (bool, error) {
	return true, nil
}

func (d Token) Key() string {
	return fmt.Sprintf("token:%s", d.Name)
}

// Set is a de-duplicated collection of Dependency values, keyed by Key().
type Set struct {
	m map[string]Dependency
}

// NewSet builds an empty dependency set.
func NewSet() *Set {
	return &Set{m: map[string]Dependency{}}
}

// Add inserts d, replacing any prior entry with the same Key.
func (s *Set) Add(d Dependency) {
	if s.m == nil {
		s.m = map[string]Dependency{}
	}
	s.m[d.Key()] = d
}

// AddAll merges every dependency of other into s.
func (s *Set) AddAll(other *Set) {
	if other == nil {
		return
	}
	for k, v := range other.m {
		s.m[k] = v
	}
}

// Clone returns a shallow copy of s.
func (s *Set) Clone() *Set {
	n := NewSet()
	for k, v := range s.m {
		n.m[k] = v
	}
	return n
}

// List returns the set's members in no particular order.
func (s *Set) List() []Dependency {
	out := make([]Dependency, 0, len(s.m))
	for _, v := range s.m {
		out = append(out, v)
	}
	return out
}

// Len reports the number of distinct dependencies.
func (s *Set) Len() int {
	return len(s.m)
}

// AllMet reports whether every dependency in the set is satisfied.
func (s *Set) AllMet(w World, c clock.Clock) (bool, error) {
	for _, d := range s.List() {
		ok, err := d.Met(w, c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
