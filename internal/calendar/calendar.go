// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package calendar implements the date-inclusion rule engine: named ordered
// lists of rules that decide whether a family runs on a given day.
package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/taskforest/pytf/internal/parseerr"
)

// Calendar is a named ordered list of rules. Rules are evaluated in order
// against a probe date; the last rule that matches wins.
type Calendar struct {
	Name  string
	Rules []string
}

// New builds a Calendar from a name and its ordered rule list.
func New(name string, rules []string) *Calendar {
	return &Calendar{Name: name, Rules: rules}
}

var offsets = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"fifth":  5,
	"last":   -1,
	"every":  0,
}

var weekdays = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// IsDateIncluded evaluates every rule in order against (y, m, d) and returns
// the final verdict (default false if no rule ever matched).
func (c *Calendar) IsDateIncluded(y, m, d int) (bool, error) {
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	dow := date.Weekday()

	result := false
	for _, rule := range c.Rules {
		match, applies, err := doesRuleMatch(date, dow, rule)
		if err != nil {
			return false, err
		}
		if applies {
			result = match
		}
	}
	return result, nil
}

// doesRuleMatch parses and evaluates one rule string. It returns (matched,
// applies, err): applies is false when the rule simply does not pertain to
// this date (so the running verdict is left unchanged).
func doesRuleMatch(date time.Time, dow time.Weekday, rule string) (matched bool, applies bool, err error) {
	plusOrMinus := "+"
	components := strings.Fields(rule)
	if len(components) == 0 {
		return false, false, parseerr.New(parseerr.MsgCalendarInvalidRule, "rule")
	}

	if len(components) > 1 && (components[0] == "+" || components[0] == "-") {
		plusOrMinus = components[0]
		components = components[1:]
	}

	var nth *int
	var ruleDow *time.Weekday

	if off, ok := offsets[strings.ToLower(components[0])]; ok {
		if len(components) < 2 {
			return false, false, parseerr.New(parseerr.MsgCalendarDanglingOffset, components[0])
		}

		n := off
		if strings.ToLower(components[1]) == "last" {
			if n > 0 {
				n = -n
			} else {
				n = -1
			}
			components = append(components[:1], components[2:]...)
		}

		if len(components) < 2 {
			return false, false, parseerr.New(parseerr.MsgCalendarDanglingOffset, components[0])
		}

		token := strings.ToLower(components[1])
		if len(token) > 3 {
			token = token[:3]
		}
		wd, ok := weekdays[token]
		if !ok {
			return false, false, parseerr.New(parseerr.MsgCalendarUnknownWeekday, components[1])
		}

		nth = &n
		ruleDow = &wd
		components = components[2:]
	}

	if len(components) == 0 || components[0] == "" {
		return false, false, parseerr.New(parseerr.MsgCalendarInvalidRule, "rule")
	}

	yyyymmdd := components[0]
	dateComponents := strings.Split(yyyymmdd, "/")
	if len(dateComponents) > 3 {
		return false, false, parseerr.New(parseerr.MsgCalendarInvalidDate, yyyymmdd)
	}

	if nth != nil && len(dateComponents) == 3 {
		return false, false, parseerr.New(parseerr.MsgCalendarOffsetAndDate, yyyymmdd)
	}

	yStr, mStr, dStr := "*", "*", "*"
	if len(dateComponents) >= 1 {
		yStr = dateComponents[0]
	}
	if len(dateComponents) >= 2 {
		mStr = dateComponents[1]
	}
	if len(dateComponents) == 3 {
		dStr = dateComponents[2]
	}

	parseComponent := func(s string) (int, bool, error) {
		if s == "*" {
			return 0, true, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, parseerr.New(parseerr.MsgCalendarInvalidDate, yyyymmdd)
		}
		return v, false, nil
	}

	year, yearWild, err := parseComponent(yStr)
	if err != nil {
		return false, false, err
	}
	month, monthWild, err := parseComponent(mStr)
	if err != nil {
		return false, false, err
	}
	day, dayWild, err := parseComponent(dStr)
	if err != nil {
		return false, false, err
	}

	if (!yearWild && year < 1970) || (!monthWild && (month < 1 || month > 12)) || (!dayWild && (day < 1 || day > 31)) {
		return false, false, parseerr.New(parseerr.MsgCalendarInvalidDate, yyyymmdd)
	}

	if !((yearWild || year == date.Year()) && (monthWild || month == int(date.Month())) && (dayWild || day == date.Day())) {
		return false, false, nil
	}

	// Date part matches. Now check the day-of-week part, if present.
	if nth == nil || ruleDow == nil {
		return plusOrMinus == "+", true, nil
	}

	if *ruleDow != dow {
		return false, false, nil
	}

	if *nth == 0 {
		return plusOrMinus == "+", true, nil
	}

	dates := findDaysOfWeek(date.Year(), int(date.Month()), *ruleDow)

	idx := *nth
	if idx > 0 {
		idx--
	}
	if idx == 4 && len(dates) < 5 {
		return false, true, nil // fifth dow does not exist this month
	}
	if idx < 0 {
		idx = len(dates) + idx
	}
	if idx < 0 || idx >= len(dates) {
		return false, true, nil
	}

	if dates[idx] == date.Day() {
		return plusOrMinus == "+", true, nil
	}
	return false, false, nil
}

// findDaysOfWeek returns the ordered mdays (4 or 5 of them) on which weekday
// dow falls in year/month.
func findDaysOfWeek(y, m int, dow time.Weekday) []int {
	firstOfMonth := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	dowOfFirst := firstOfMonth.Weekday()

	var first int
	if int(dowOfFirst) <= int(dow) {
		first = 1 + int(dow) - int(dowOfFirst)
	} else {
		first = 8 - (int(dowOfFirst) - int(dow))
	}

	daysInMonth := []int{-1, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if isLeap(y) {
		daysInMonth[2]++
	}
	daysInThisMonth := daysInMonth[m]

	result := []int{first}
	for next := first + 7; next <= daysInThisMonth; next += 7 {
		result = append(result, next)
	}
	return result
}

func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}
