// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package calendar

import "time"

// Days is the alternative to Calendar: a fixed set of weekday abbreviations
// on which a family runs. DefaultDays is used when a family specifies
// neither calendar nor days.
type Days struct {
	Names []string // three-letter abbreviations, e.g. "Mon"
}

// DefaultDays returns every day of the week.
func DefaultDays() *Days {
	return &Days{Names: []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}}
}

var dowAbbrev = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// IsDateIncluded reports whether the weekday of (y, m, d) is in Names.
func (d *Days) IsDateIncluded(y, m, day int) bool {
	wd := time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC).Weekday()
	abbrev := dowAbbrev[weekdayIndex(wd)]
	for _, n := range d.Names {
		if n == abbrev {
			return true
		}
	}
	return false
}

func weekdayIndex(wd time.Weekday) int {
	// time.Monday == 1 ... time.Sunday == 0; map to Mon=0..Sun=6
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}
