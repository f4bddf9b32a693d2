// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package calendar

import "testing"

// TestIsDateIncluded_LastMatchWins checks that when multiple rules apply to
// the same date, the last one in the list decides the verdict.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
//
// Behavior:
//   - A weekday rule includes every Monday, then an exact-date rule excludes
//     one specific Monday.
//   - Fails unless the exclusion (the later rule) wins for that date.
func TestIsDateIncluded_LastMatchWins(t *testing.T) {
	c := New("weekdays", []string{
		"every mon */*",
		"- 2024/03/18",
	})

	// 2024-03-18 is a Monday.
	included, err := c.IsDateIncluded(2024, 3, 18)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("2024/03/18 should be excluded by the later rule")
	}

	// The following Monday is untouched by the exclusion.
	included, err = c.IsDateIncluded(2024, 3, 25)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if !included {
		t.Error("2024/03/25 should still be included by 'every mon */*'")
	}
}

// TestIsDateIncluded_LastWeekdayOfMonth validates the "last" offset keyword,
// which must resolve to the final occurrence of a weekday in a month
// regardless of whether the month has four or five of that weekday.
func TestIsDateIncluded_LastWeekdayOfMonth(t *testing.T) {
	c := New("eom", []string{"last fri */*"})

	// March 2024 has five Fridays; the last is the 29th.
	included, err := c.IsDateIncluded(2024, 3, 29)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if !included {
		t.Error("2024/03/29 is the last Friday of March and should be included")
	}

	included, err = c.IsDateIncluded(2024, 3, 22)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("2024/03/22 is the fourth (not last) Friday and should not match 'last fri */*'")
	}
}

// TestIsDateIncluded_FifthWeekdayAbsent checks the "fifth" offset returns
// false (rather than matching the nearest weekday) in months that only
// have four occurrences of the requested weekday.
func TestIsDateIncluded_FifthWeekdayAbsent(t *testing.T) {
	c := New("fifth-mon", []string{"fifth mon */*"})

	// February 2024 has only four Mondays (5, 12, 19, 26).
	for day := 1; day <= 29; day++ {
		included, err := c.IsDateIncluded(2024, 2, day)
		if err != nil {
			t.Fatalf("IsDateIncluded(2024,2,%d) returned error: %v", day, err)
		}
		if included {
			t.Errorf("February 2024 has no fifth Monday, but day %d matched", day)
		}
	}
}

// TestIsDateIncluded_FifthLastWeekday validates the combined "fifth last"
// offset: counting backwards from the end of the month, in a month that has
// five of the requested weekday.
func TestIsDateIncluded_FifthLastWeekday(t *testing.T) {
	c := New("month-open", []string{"fifth last sun */*"})

	// June 2024 has five Sundays (2, 9, 16, 23, 30); the fifth-last is the 2nd.
	included, err := c.IsDateIncluded(2024, 6, 2)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if !included {
		t.Error("2024/06/02 is the fifth-last Sunday of June and should be included")
	}

	included, err = c.IsDateIncluded(2024, 6, 30)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("2024/06/30 is the last (not fifth-last) Sunday and should not match")
	}
}

// TestIsDateIncluded_LastSundayWildcardDate validates "last sun */*" against
// the month boundary: only the final Sunday of each month matches.
func TestIsDateIncluded_LastSundayWildcardDate(t *testing.T) {
	c := New("month-close", []string{"last sun */*"})

	cases := []struct {
		y, m, d  int
		included bool
	}{
		{2024, 6, 30, true},
		{2024, 6, 23, false},
		{2024, 6, 29, false},
	}
	for _, tc := range cases {
		got, err := c.IsDateIncluded(tc.y, tc.m, tc.d)
		if err != nil {
			t.Fatalf("IsDateIncluded(%d,%d,%d) returned error: %v", tc.y, tc.m, tc.d, err)
		}
		if got != tc.included {
			t.Errorf("IsDateIncluded(%d,%d,%d) = %v, want %v", tc.y, tc.m, tc.d, got, tc.included)
		}
	}
}

// TestIsDateIncluded_NthWeekdayOfMonth validates an ordinary positive nth
// weekday rule, e.g. the second Tuesday of the month.
func TestIsDateIncluded_NthWeekdayOfMonth(t *testing.T) {
	c := New("second-tue", []string{"second tue */*"})

	// 2024-03-12 is the second Tuesday of March 2024.
	included, err := c.IsDateIncluded(2024, 3, 12)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if !included {
		t.Error("2024/03/12 is the second Tuesday of March and should be included")
	}

	included, err = c.IsDateIncluded(2024, 3, 5)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("2024/03/05 is the first Tuesday, not the second, and should not match")
	}
}

// TestIsDateIncluded_ExactDate validates a fully-specified yyyy/mm/dd rule
// with no weekday offset.
func TestIsDateIncluded_ExactDate(t *testing.T) {
	c := New("holiday", []string{"2024/12/25"})

	included, err := c.IsDateIncluded(2024, 12, 25)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if !included {
		t.Error("exact date rule should include 2024/12/25")
	}

	included, err = c.IsDateIncluded(2025, 12, 25)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("exact date rule is year-pinned and should not match 2025/12/25")
	}
}

// TestIsDateIncluded_WildcardYear validates that a leading "*" component
// matches every year, letting a rule recur annually.
func TestIsDateIncluded_WildcardYear(t *testing.T) {
	c := New("recurring-holiday", []string{"*/12/25"})

	for _, year := range []int{2024, 2025, 2030} {
		included, err := c.IsDateIncluded(year, 12, 25)
		if err != nil {
			t.Fatalf("IsDateIncluded(%d,12,25) returned error: %v", year, err)
		}
		if !included {
			t.Errorf("wildcard-year rule should include Dec 25 of %d", year)
		}
	}
}

// TestIsDateIncluded_NoRuleMatchesDefaultsFalse checks the documented
// default: a date with no matching rule is excluded.
func TestIsDateIncluded_NoRuleMatchesDefaultsFalse(t *testing.T) {
	c := New("narrow", []string{"2024/01/01"})

	included, err := c.IsDateIncluded(2024, 6, 15)
	if err != nil {
		t.Fatalf("IsDateIncluded returned error: %v", err)
	}
	if included {
		t.Error("a date matching no rule should default to excluded")
	}
}

// TestIsDateIncluded_InvalidRuleErrors checks that a malformed rule surfaces
// a parse error instead of silently being ignored.
func TestIsDateIncluded_InvalidRuleErrors(t *testing.T) {
	c := New("broken", []string{"second"})

	if _, err := c.IsDateIncluded(2024, 3, 12); err == nil {
		t.Error("a dangling offset with no weekday should return a parse error")
	}
}

// TestIsDateIncluded_OffsetAndExactDateConflict checks that combining an
// nth-weekday offset with a fully-specified date is rejected, since the two
// forms of day selection cannot both apply to one rule.
func TestIsDateIncluded_OffsetAndExactDateConflict(t *testing.T) {
	c := New("conflict", []string{"second tue 2024/03/12"})

	if _, err := c.IsDateIncluded(2024, 3, 12); err == nil {
		t.Error("an nth-weekday offset combined with y/m/d should return a parse error")
	}
}
