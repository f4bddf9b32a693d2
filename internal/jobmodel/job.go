// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobmodel

import (
	"fmt"
	"regexp"

	"github.com/pelletier/go-toml/v2"

	"github.com/taskforest/pytf/internal/dependency"
	"github.com/taskforest/pytf/internal/parseerr"
)

// Job is one schedulable unit parsed from a job-call expression inside a
// family file, e.g. J1(start="0330", tokens=["T1"]).
type Job struct {
	JobName    string
	FamilyName string

	StartTimeHr, StartTimeMin int
	HasStart                  bool
	TZ                        string
	Every                     int // seconds between repeats; 0 means not repeating
	HasEvery                  bool
	UntilHr, UntilMin         int
	HasUntil                  bool
	Chained                   bool
	Tokens                    []string
	NumRetries                int
	HasNumRetries             bool
	RetrySleepMin             int
	HasRetrySleepMin          bool
	Queue                     string
	Email                     string
	RetryEmail                string
	RetrySuccessEmail         string
	NoRetryEmail              bool
	NoRetrySuccessEmail       bool
	Comment                   string

	// Derived at parse time.
	Dependencies *dependency.Set
}

var jobCallPattern = regexp.MustCompile(`([0-9A-Za-z_]+)\((.*)\)`)

var jobValidKeys = map[string]bool{
	"start": true, "until": true, "tz": true, "every": true, "chained": true,
	"tokens": true, "num_retries": true, "retry_sleep_min": true, "queue": true,
	"email": true, "retry_email": true, "retry_success_email": true,
	"no_retry_email": true, "no_retry_success_email": true, "comment": true,
}

// parseJob parses one job-call expression into a Job.
func parseJob(jobString, familyName string) (*Job, error) {
	m := jobCallPattern.FindStringSubmatch(jobString)
	if m == nil {
		return nil, parseerr.New(parseerr.MsgParseException, jobString)
	}

	j := &Job{
		JobName:      m[1],
		FamilyName:   familyName,
		Queue:        "default",
		Dependencies: dependency.NewSet(),
	}

	innerData := m[2]
	if innerData == "" {
		return j, nil
	}

	d, err := parseInnerTOML(innerData)
	if err != nil {
		return nil, parseerr.New(parseerr.MsgInnerParsingFailed, "")
	}

	for key := range d {
		if !jobValidKeys[key] {
			return nil, parseerr.New(parseerr.MsgUnrecognizedParam, fmt.Sprintf("%s/%s", j.JobName, key))
		}
	}

	if err := validateJobTypes(d, j.JobName); err != nil {
		return nil, err
	}

	if raw, ok := d["start"].(string); ok {
		hh, mm, present, err := parseTime(raw, true, j.JobName, parseerr.MsgStartTimeParsingFailedJob)
		if err != nil {
			return nil, err
		}
		j.StartTimeHr, j.StartTimeMin, j.HasStart = hh, mm, present
	}
	if raw, ok := d["until"].(string); ok {
		hh, mm, present, err := parseTime(raw, true, j.JobName, parseerr.MsgUntilTimeParsingFailedJob)
		if err != nil {
			return nil, err
		}
		j.UntilHr, j.UntilMin, j.HasUntil = hh, mm, present
	}

	j.TZ, _ = d["tz"].(string)
	if ev, ok := toInt(d["every"]); ok {
		j.Every = ev
		j.HasEvery = ev != 0
	}
	if c, ok := d["chained"].(bool); ok {
		j.Chained = c
	}
	if toks, ok := d["tokens"].([]interface{}); ok {
		for _, t := range toks {
			if s, ok := t.(string); ok {
				j.Tokens = append(j.Tokens, s)
			}
		}
	}
	if nr, ok := toInt(d["num_retries"]); ok {
		j.NumRetries = nr
		j.HasNumRetries = true
	}
	if rs, ok := toInt(d["retry_sleep_min"]); ok {
		j.RetrySleepMin = rs
		j.HasRetrySleepMin = true
	}
	if q, ok := d["queue"].(string); ok {
		j.Queue = q
	}
	j.Email, _ = d["email"].(string)
	j.RetryEmail, _ = d["retry_email"].(string)
	j.RetrySuccessEmail, _ = d["retry_success_email"].(string)
	if v, ok := d["no_retry_email"].(bool); ok {
		j.NoRetryEmail = v
	}
	if v, ok := d["no_retry_success_email"].(bool); ok {
		j.NoRetrySuccessEmail = v
	}
	j.Comment, _ = d["comment"].(string)

	return j, nil
}

func validateJobTypes(d map[string]interface{}, jobName string) error {
	strs := []string{"tz", "queue", "email", "retry_email", "retry_success_email", "comment"}
	for _, k := range strs {
		if v, ok := d[k]; ok {
			if _, isStr := v.(string); !isStr {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s/%s (%v) is type %s", jobName, k, v, simpleType(v)))
			}
		}
	}
	ints := []string{"every", "num_retries", "retry_sleep_min"}
	for _, k := range ints {
		if v, ok := d[k]; ok {
			if _, isInt := toInt(v); !isInt {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s/%s (%v) is type %s", jobName, k, v, simpleType(v)))
			}
		}
	}
	bools := []string{"chained", "no_retry_email", "no_retry_success_email"}
	for _, k := range bools {
		if v, ok := d[k]; ok {
			if _, isBool := v.(bool); !isBool {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s/%s (%v) is type %s", jobName, k, v, simpleType(v)))
			}
		}
	}
	if toks, ok := d["tokens"]; ok {
		list, isList := toks.([]interface{})
		if !isList {
			return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s/tokens (%v)", jobName, toks))
		}
		for _, t := range list {
			if _, isStr := t.(string); !isStr {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s/tokens (%v :: %v)", jobName, toks, t))
			}
		}
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// parseInnerTOML parses a job/family's inner parameter list by wrapping it
// as `d = { ... }`, matching the family-file TOML dialect.
func parseInnerTOML(inner string) (map[string]interface{}, error) {
	wrapped := "d = { " + lowerTrueFalse(inner) + " }"
	var doc struct {
		D map[string]interface{} `toml:"d"`
	}
	if err := toml.Unmarshal([]byte(wrapped), &doc); err != nil {
		return nil, err
	}
	return doc.D, nil
}
