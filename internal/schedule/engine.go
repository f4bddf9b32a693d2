// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package schedule implements the scheduling state machine: it joins the
// parsed family graph with the on-disk world projection and marker files to
// produce a JobStatus per job, then runs the token pass that downgrades some
// Ready jobs to Token Wait.
package schedule

import (
	"sort"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/jobmodel"
	"github.com/taskforest/pytf/internal/jobresult"
	"github.com/taskforest/pytf/internal/token"
)

// Output is the scheduling engine's result for one tick: a stable flat list,
// a per-family grouping, and the staged (not-yet-committed) token document
// reflecting every token consumption this pass made for jobs that stayed
// Ready (jobs downgraded to TokenWait consume nothing).
type Output struct {
	Flat        []*jobresult.Result
	ByFamily    map[string][]*jobresult.Result
	StagedToken *token.Document
}

// Run evaluates every family that runs today, in family-name then job-name
// order, against world (today's log directory projection) and the hold/
// release marker sets, then performs the token pass.
func Run(cfg *config.Config, families []*jobmodel.Family, world *jobresult.World, held, released map[string]map[string]bool, clk clock.Clock, currentTokenDoc *token.Document) (*Output, error) {
	out := &Output{ByFamily: map[string][]*jobresult.Result{}}

	sorted := make([]*jobmodel.Family, len(families))
	copy(sorted, families)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	now, err := clk.Now(cfg.PrimaryTZ)
	if err != nil {
		return nil, err
	}

	for _, fam := range sorted {
		runsToday, err := fam.CalendarOrDays.IsDateIncluded(now.Year(), int(now.Month()), now.Day())
		if err != nil {
			return nil, err
		}
		if !runsToday {
			continue
		}

		names := make([]string, 0, len(fam.JobsByName))
		for name := range fam.JobsByName {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, jobName := range names {
			job := fam.JobsByName[jobName]
			result, err := projectStatus(cfg, fam, job, world, held, released, clk)
			if err != nil {
				return nil, err
			}
			out.Flat = append(out.Flat, result)
			out.ByFamily[fam.Name] = append(out.ByFamily[fam.Name], result)
		}
	}

	tokenDoc := currentTokenDoc
	if tokenDoc == nil {
		tokenDoc = &token.Document{}
	}
	for _, r := range out.Flat {
		if r.Status != jobresult.Ready || len(r.Tokens) == 0 {
			continue
		}
		if staged := token.ConsumeFromDoc(cfg, r.Tokens, tokenDoc, r.FamilyName, r.JobName); staged != nil {
			tokenDoc = staged
		} else {
			r.Status = jobresult.TokenWait
		}
	}
	out.StagedToken = tokenDoc

	return out, nil
}

// projectStatus takes the info-file status verbatim when a projection
// already exists for the job, otherwise derives Released/Hold/Waiting/Ready
// from marker files and dependency evaluation, in that priority order.
func projectStatus(cfg *config.Config, fam *jobmodel.Family, job *jobmodel.Job, world *jobresult.World, held, released map[string]map[string]bool, clk clock.Clock) (*jobresult.Result, error) {
	numRetries, retrySleep := effectiveRetry(cfg, job)

	if r, ok := world.Lookup(fam.Name, job.JobName); ok {
		r.Tokens = job.Tokens
		r.NumRetries = numRetries
		r.RetrySleep = retrySleep
		return r, nil
	}

	unmet := false
	for _, dep := range job.Dependencies.List() {
		met, err := dep.Met(world, clk)
		if err != nil {
			return nil, err
		}
		if !met {
			unmet = true
			break
		}
	}

	isReleased := released[fam.Name] != nil && released[fam.Name][job.JobName]
	isHeld := held[fam.Name] != nil && held[fam.Name][job.JobName]

	var status jobresult.Status
	switch {
	case isReleased:
		status = jobresult.Released
	case isHeld:
		status = jobresult.Hold
	case unmet:
		status = jobresult.Waiting
	default:
		status = jobresult.Ready
	}

	jobTZ := job.TZ
	if jobTZ == "" {
		jobTZ = fam.TZ
	}
	if jobTZ == "" {
		jobTZ = cfg.PrimaryTZ
	}

	return &jobresult.Result{
		FamilyName: fam.Name,
		JobName:    job.JobName,
		Status:     status,
		QueueName:  job.Queue,
		TZ:         jobTZ,
		Tokens:     job.Tokens,
		NumRetries: numRetries,
		RetrySleep: retrySleep,
	}, nil
}

// effectiveRetry merges a job's own num_retries/retry_sleep_min against
// config.num_retries/config.retry_sleep for whichever of the two keys the
// job omitted.
func effectiveRetry(cfg *config.Config, job *jobmodel.Job) (numRetries, retrySleep int) {
	numRetries = job.NumRetries
	if !job.HasNumRetries {
		numRetries = cfg.NumRetries
	}
	retrySleep = job.RetrySleepMin
	if !job.HasRetrySleepMin {
		retrySleep = cfg.RetrySleep
	}
	return numRetries, retrySleep
}
