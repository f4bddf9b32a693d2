// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobmodel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taskforest/pytf/internal/calendar"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/dependency"
	"github.com/taskforest/pytf/internal/parseerr"
)

// CalendarOrDays is implemented by *calendar.Calendar and *calendar.Days.
type CalendarOrDays interface {
	IsDateIncluded(y, m, d int) (bool, error)
}

type calendarAdapter struct{ *calendar.Calendar }

func (c calendarAdapter) IsDateIncluded(y, m, d int) (bool, error) { return c.Calendar.IsDateIncluded(y, m, d) }

type daysAdapter struct{ *calendar.Days }

func (d daysAdapter) IsDateIncluded(y, m, day int) (bool, error) { return d.Days.IsDateIncluded(y, m, day), nil }

// Family is parsed from one text file: a header line of TOML-ish settings
// followed by forests of job lines.
type Family struct {
	Name string

	StartTimeHr, StartTimeMin int
	TZ                        string
	CalendarOrDays            CalendarOrDays

	Queue               string
	Email               string
	RetryEmail          string
	RetrySuccessEmail   string
	NoRetryEmail        bool
	NoRetrySuccessEmail bool
	Comment             string

	Forests []*Forest

	JobsByName map[string]*Job

	// endTimeFallbackHr/Min default a repeating job's "until" to the
	// config's end-of-day time when the job doesn't specify its own.
	endTimeFallbackHr, endTimeFallbackMin int
}

var familyValidKeys = map[string]bool{
	"start": true, "tz": true, "calendar": true, "days": true, "queue": true,
	"email": true, "retry_email": true, "retry_success_email": true,
	"no_retry_email": true, "no_retry_success_email": true, "comment": true,
}

var dashesPattern = regexp.MustCompile(`^[- ]+$`)

// ParseFamily turns a family file's text into a Family graph, expanding
// repeating jobs and compiling every job's dependency set along the way.
func ParseFamily(name, text string, cfg *config.Config) (*Family, error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil, parseerr.New(parseerr.MsgFamilyFirstLineParseFail, "")
	}

	firstLine := lowerTrueFalse(lines[0])
	lines = lines[1:]

	d, err := parseInnerTOML(firstLine)
	if err != nil {
		return nil, parseerr.New(parseerr.MsgFamilyFirstLineParseFail, firstLine)
	}

	for key := range d {
		if !familyValidKeys[key] {
			return nil, parseerr.New(parseerr.MsgUnrecognizedParam, key)
		}
	}
	if err := validateFamilyTypes(d); err != nil {
		return nil, err
	}
	if _, hasCal := d["calendar"]; hasCal {
		if _, hasDays := d["days"]; hasDays {
			return nil, parseerr.New(parseerr.MsgCalAndDays, "")
		}
	}

	fam := &Family{
		Name:               name,
		Queue:              "",
		JobsByName:         map[string]*Job{},
		endTimeFallbackHr:  cfg.EndTimeHr,
		endTimeFallbackMin: cfg.EndTimeMin,
	}

	startRaw, hasStart := d["start"].(string)
	hh, mm, present, err := parseTime(startRaw, hasStart, name, parseerr.MsgStartTimeParsingFailedFam)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, parseerr.New(parseerr.MsgStartTimeParsingFailedFam, name)
	}
	fam.StartTimeHr, fam.StartTimeMin = hh, mm

	fam.TZ, _ = d["tz"].(string)
	fam.Queue, _ = d["queue"].(string)
	fam.Email, _ = d["email"].(string)
	fam.RetryEmail, _ = d["retry_email"].(string)
	fam.RetrySuccessEmail, _ = d["retry_success_email"].(string)
	if v, ok := d["no_retry_email"].(bool); ok {
		fam.NoRetryEmail = v
	}
	if v, ok := d["no_retry_success_email"].(bool); ok {
		fam.NoRetrySuccessEmail = v
	}
	fam.Comment, _ = d["comment"].(string)

	if calName, ok := d["calendar"].(string); ok {
		rules, known := cfg.Calendars[calName]
		if !known {
			return nil, parseerr.New(parseerr.MsgUnknownCalendar, calName)
		}
		fam.CalendarOrDays = calendarAdapter{calendar.New(calName, rules)}
	} else if rawDays, ok := d["days"].([]interface{}); ok {
		names := make([]string, 0, len(rawDays))
		for _, v := range rawDays {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		fam.CalendarOrDays = daysAdapter{&calendar.Days{Names: names}}
	} else {
		fam.CalendarOrDays = daysAdapter{calendar.DefaultDays()}
	}

	if err := fam.parseBody(lines, name, cfg.PrimaryTZ); err != nil {
		return nil, err
	}

	return fam, nil
}

func validateFamilyTypes(d map[string]interface{}) error {
	strs := []string{"tz", "queue", "email", "retry_email", "retry_success_email", "comment", "calendar"}
	for _, k := range strs {
		if v, ok := d[k]; ok {
			if _, isStr := v.(string); !isStr {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s (%v) is type %s", k, v, simpleType(v)))
			}
		}
	}
	bools := []string{"no_retry_email", "no_retry_success_email"}
	for _, k := range bools {
		if v, ok := d[k]; ok {
			if _, isBool := v.(bool); !isBool {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("%s (%v) is type %s", k, v, simpleType(v)))
			}
		}
	}
	if days, ok := d["days"]; ok {
		list, isList := days.([]interface{})
		if !isList {
			return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("days (%v)", days))
		}
		for _, v := range list {
			if _, isStr := v.(string); !isStr {
				return parseerr.New(parseerr.MsgInvalidType, fmt.Sprintf("days (%v :: %v)", days, v))
			}
		}
	}
	return nil
}

// parseBody splits the remaining lines into forests, expands repeating
// jobs, rejects duplicate job names, and compiles dependencies.
func (fam *Family) parseBody(lines []string, familyName, primaryTZ string) error {
	forests := []*Forest{{}}

	for _, raw := range lines {
		line := commentPattern.ReplaceAllString(raw, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if dashesPattern.MatchString(line) {
			if len(forests[len(forests)-1].Lines) > 0 {
				forests = append(forests, &Forest{})
			}
			continue
		}

		items, err := splitJobLine(line, familyName)
		if err != nil {
			return err
		}
		cur := forests[len(forests)-1]
		cur.Lines = append(cur.Lines, items)
	}

	if len(forests[len(forests)-1].Lines) == 0 {
		forests = forests[:len(forests)-1]
	}

	for _, f := range forests {
		if err := expandRepeatingJobs(f, fam); err != nil {
			return err
		}
	}

	fam.Forests = forests

	for _, f := range fam.Forests {
		for _, job := range f.AllInternalJobs() {
			if _, dup := fam.JobsByName[job.JobName]; dup {
				return parseerr.New(parseerr.MsgJobTwice, fmt.Sprintf("%s::%s", fam.Name, job.JobName))
			}
			fam.JobsByName[job.JobName] = job
		}
	}

	for _, f := range fam.Forests {
		compileDependencies(f, fam, primaryTZ)
	}

	return nil
}

// expandRepeatingJobs enforces "repeating jobs must be alone in their
// forest" and replaces a single repeating job with its expanded slot jobs.
func expandRepeatingJobs(f *Forest, fam *Family) error {
	all := f.AllInternalJobs()
	hasRepeating := false
	for _, j := range all {
		if j.HasEvery {
			hasRepeating = true
		}
	}
	if !hasRepeating {
		return nil
	}
	if len(all) != 1 || len(f.Lines) != 1 || len(f.Lines[0]) != 1 {
		return parseerr.New(parseerr.MsgRepeatingJobsAlone, fam.Name)
	}

	base := all[0]
	untilHr, untilMin := base.UntilHr, base.UntilMin
	if !base.HasUntil {
		untilHr, untilMin = fam.endTimeFallbackHr, fam.endTimeFallbackMin
	}

	startSecs := base.StartTimeHr*3600 + base.StartTimeMin*60
	untilSecs := untilHr*3600 + untilMin*60

	var expanded []LineItem
	for t := startSecs; t <= untilSecs; t += base.Every {
		hh := (t / 3600) % 24
		mm := (t / 60) % 60
		child := *base
		child.JobName = fmt.Sprintf("%s-%02d%02d", base.JobName, hh, mm)
		child.StartTimeHr, child.StartTimeMin = hh, mm
		child.HasStart = true
		child.HasEvery = false
		child.Dependencies = dependency.NewSet()
		expanded = append(expanded, LineItem{Job: &child})
	}

	f.Lines = [][]LineItem{expanded}
	return nil
}

// compileDependencies implements the per-forest dependency compilation
// described for the parser: every internal job on line k depends on the
// JobDependency of every internal job on line k-1, plus the External
// references on line k-1 as External dependencies, plus its own family/own
// start-time TimeDependency.
func compileDependencies(f *Forest, fam *Family, primaryTZ string) {
	prevLineDeps := dependency.NewSet()

	for _, line := range f.Lines {
		for _, item := range line {
			if item.Job == nil {
				continue
			}
			job := item.Job
			job.Dependencies.AddAll(prevLineDeps)
			job.Dependencies.Add(dependency.Time{HH: fam.StartTimeHr, MM: fam.StartTimeMin, TZ: effectiveTZ(fam.TZ, primaryTZ)})
			if job.HasStart {
				job.Dependencies.Add(dependency.Time{HH: job.StartTimeHr, MM: job.StartTimeMin, TZ: effectiveTZ(job.TZ, fam.TZ, primaryTZ)})
			}
		}

		next := dependency.NewSet()
		for _, item := range line {
			switch {
			case item.Job != nil:
				next.Add(dependency.Job{Family: fam.Name, Job: item.Job.JobName})
			case item.External != nil:
				next.Add(dependency.External{Family: item.External.FamilyName, Job: item.External.JobName})
			}
		}
		prevLineDeps = next
	}
}

func effectiveTZ(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return "UTC"
}

