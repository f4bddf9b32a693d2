// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package jobmodel implements the family/forest parser and the in-memory
// Family/Forest/Job graph the scheduling engine walks every tick.
package jobmodel

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/taskforest/pytf/internal/parseerr"
)

var trueFalsePattern = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(= *)TRUE\b`), "= true"},
	{regexp.MustCompile(`(?i)(= *)FALSE\b`), "= false"},
}

// lowerTrueFalse case-folds bareword TRUE/FALSE on the right-hand side of an
// '=' to lowercase so the line parses as TOML.
func lowerTrueFalse(line string) string {
	for _, p := range trueFalsePattern {
		line = p.re.ReplaceAllString(line, p.repl)
	}
	return line
}

// parseTime parses a "HHMM" string field into (hh, mm). Returns (0, 0,
// false, nil) when the field is absent, and a *parseerr.Error tagged with
// errMsg when the field is present but malformed.
func parseTime(raw string, present bool, parent string, errMsg string) (hh, mm int, ok bool, err error) {
	if !present {
		return 0, 0, false, nil
	}
	if len(raw) != 4 {
		return 0, 0, false, parseerr.New(errMsg, parent)
	}
	hh, errH := strconv.Atoi(raw[:2])
	mm, errM := strconv.Atoi(raw[2:])
	if errH != nil || errM != nil {
		return 0, 0, false, parseerr.New(errMsg, parent)
	}
	return hh, mm, true, nil
}

func simpleType(v interface{}) string {
	switch v.(type) {
	case string:
		return "str"
	case int64, int:
		return "int"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
