// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobmodel

import (
	"regexp"
	"strings"
)

// ExternalRef is a reference to a job in another family using the
// Family::Job() syntax. It is not itself a Job node; the parser turns it
// into a dependency.External for whatever follows it in the forest.
type ExternalRef struct {
	FamilyName, JobName string
}

var externalPattern = regexp.MustCompile(`([0-9A-Za-z_]+)::([0-9A-Za-z_]+)\((.*)\)`)

func parseExternalRef(s string) *ExternalRef {
	m := externalPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &ExternalRef{FamilyName: m[1], JobName: m[2]}
}

// LineItem is either a *Job or an *ExternalRef, the unit of a job line.
type LineItem struct {
	Job      *Job
	External *ExternalRef
}

// Forest is a sequence of job lines; every job on line k depends on every
// item of line k-1.
type Forest struct {
	Lines [][]LineItem
}

var commentPattern = regexp.MustCompile(`#.*`)
var jobCallSplitPattern = regexp.MustCompile(`([^(]+\([^)]*\))`)

// splitJobLine tokenises one non-dash, non-comment family line into its job
// calls / external references, in left-to-right order.
func splitJobLine(line, familyName string) ([]LineItem, error) {
	line = commentPattern.ReplaceAllString(line, "")
	matches := jobCallSplitPattern.FindAllString(line, -1)

	items := make([]LineItem, 0, len(matches))
	for _, raw := range matches {
		tok := strings.TrimSpace(raw)
		if strings.Contains(tok, "::") {
			ref := parseExternalRef(tok)
			items = append(items, LineItem{External: ref})
			continue
		}
		job, err := parseJob(tok, familyName)
		if err != nil {
			return nil, err
		}
		items = append(items, LineItem{Job: job})
	}
	return items, nil
}

// AllInternalJobs returns every Job node across every line of the forest, in
// line order.
func (f *Forest) AllInternalJobs() []*Job {
	var out []*Job
	for _, line := range f.Lines {
		for _, item := range line {
			if item.Job != nil {
				out = append(out, item.Job)
			}
		}
	}
	return out
}
