// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package mainloop implements the scheduler's tick loop: prepare today's
// directories, then repeatedly scan families, run the scheduling engine,
// dispatch ready jobs, and sleep to the next ten-second boundary until
// end_time or, in once_only mode, after a single tick.
package mainloop

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sk-pkg/logger"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/fsutil"
	"github.com/taskforest/pytf/internal/jobmodel"
	"github.com/taskforest/pytf/internal/jobresult"
	logwire "github.com/taskforest/pytf/internal/logging"
	"github.com/taskforest/pytf/internal/metrics"
	"github.com/taskforest/pytf/internal/notify"
	"github.com/taskforest/pytf/internal/schedule"
	"github.com/taskforest/pytf/internal/token"
	"github.com/taskforest/pytf/internal/trace"
	"github.com/taskforest/pytf/internal/transport"
)

// Loop runs the scheduler's tick loop until termination.
type Loop struct {
	Config     *config.Config
	Clock      clock.Clock
	Dispatcher transport.Dispatcher
	Logger     *logger.Manager
	TraceID    *trace.ID
	Metrics    *metrics.Metrics
	Notifier   *notify.Notifier

	// notified tracks which completed runs (keyed by the identity baked into
	// their info filename) have already produced a notification, so a run
	// that stays Success/Failure across many ticks is only notified once.
	notified map[string]bool
}

// PrepareDirs resolves and creates today's log/family directories, copying
// the family definitions in on the first tick of the day so the day's
// schedule is pinned against later edits.
func (l *Loop) PrepareDirs() (time.Time, error) {
	now, err := l.Clock.Now(l.Config.PrimaryTZ)
	if err != nil {
		return time.Time{}, err
	}

	todaysFamilyDir := fsutil.DatedSubdir(l.Config.FamilyDir, now)
	if !fsutil.DirExists(todaysFamilyDir) {
		if err := fsutil.MakeDirIfNecessary(todaysFamilyDir); err != nil {
			return time.Time{}, err
		}
		if err := fsutil.CopyFilesFromDirToDir(l.Config.FamilyDir, todaysFamilyDir); err != nil {
			return time.Time{}, err
		}
	}

	todaysLogDir := fsutil.DatedSubdir(l.Config.LogDir, now)
	if err := fsutil.MakeDirIfNecessary(todaysLogDir); err != nil {
		return time.Time{}, err
	}

	l.Config.TodaysFamilyDir = todaysFamilyDir
	l.Config.TodaysLogDir = todaysLogDir

	return now, nil
}

// Run executes PrepareDirs, reconciles stale token holders, then loops
// ticks until once_only completes a single pass or wall time reaches
// end_time.
func (l *Loop) Run() error {
	if _, err := l.PrepareDirs(); err != nil {
		return err
	}
	if err := token.UpdateUsage(l.Config); err != nil {
		return err
	}

	for {
		now, err := l.Clock.Now(l.Config.PrimaryTZ)
		if err != nil {
			return err
		}
		endTime := time.Date(now.Year(), now.Month(), now.Day(),
			l.Config.EndTimeHr, l.Config.EndTimeMin, 0, 0, now.Location())
		if !now.Before(endTime) {
			return nil
		}

		if err := l.Tick(); err != nil {
			return err
		}

		if l.Config.OnceOnly {
			return nil
		}

		now, err = l.Clock.Now(l.Config.PrimaryTZ)
		if err != nil {
			return err
		}
		sleepSec := 10 - now.Second()%10
		l.Clock.Sleep(time.Duration(sleepSec) * time.Second)
	}
}

// Tick performs one scheduling pass: parse families, run the engine,
// commit the staged token document, and dispatch Ready/Released jobs.
func (l *Loop) Tick() error {
	ctx := context.Background()
	if l.TraceID != nil {
		ctx = logwire.TickContext(l.TraceID)
	}

	families, err := jobmodel.FamiliesFromDir(l.Config.TodaysFamilyDir, l.Config)
	if err != nil {
		return err
	}

	_, world, err := jobresult.ScanLogDir(l.Config.TodaysLogDir)
	if err != nil {
		return err
	}
	held, err := jobresult.HeldJobs(l.Config.TodaysLogDir)
	if err != nil {
		return err
	}
	released, err := jobresult.ReleasedJobs(l.Config.TodaysLogDir)
	if err != nil {
		return err
	}
	currentTokenDoc, err := token.Current(l.Config)
	if err != nil {
		return err
	}

	out, err := schedule.Run(l.Config, families, world, held, released, l.Clock, currentTokenDoc)
	if err != nil {
		return err
	}

	l.notifyTerminal(ctx, families, out.Flat)

	if l.Metrics != nil {
		l.Metrics.TicksTotal.Inc()
		statusCounts := map[string]int{}
		for _, r := range out.Flat {
			statusCounts[string(r.Status)]++
		}
		tokenUsage := map[string]int{}
		if out.StagedToken != nil {
			for _, h := range out.StagedToken.Token {
				tokenUsage[h.TokenName]++
			}
		}
		l.Metrics.ObserveTick(statusCounts, tokenUsage)

		for _, r := range out.Flat {
			if r.Status != jobresult.TokenWait {
				continue
			}
			for _, tok := range r.Tokens {
				l.Metrics.TokenWaitTotal.WithLabelValues(tok).Inc()
			}
		}
	}

	var selected []*jobresult.Result
	for _, r := range out.Flat {
		if r.Status == jobresult.Ready || r.Status == jobresult.Released {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	if err := token.Save(l.Config, out.StagedToken); err != nil {
		return err
	}

	for _, r := range selected {
		if err := l.dispatchOne(ctx, r); err != nil {
			if l.Logger != nil {
				l.Logger.Error(ctx, "dispatch failed",
					zap.String("family", r.FamilyName), zap.String("job", r.JobName), zap.Error(err))
			}
			continue
		}
		if l.Metrics != nil {
			l.Metrics.JobsDispatchedTotal.WithLabelValues(r.FamilyName, r.QueueName).Inc()
		}
	}

	return nil
}

// notifyTerminal sends a job-outcome notification for every result that just
// reached Success or Failure, at most once per run (keyed by the identity
// baked into its info filename: family/job/queue/worker/start_time). The
// same dedup also gates the jobs_failed_total counter, so a failure that
// stays on disk across several ticks is counted once rather than once per
// tick.
func (l *Loop) notifyTerminal(ctx context.Context, families []*jobmodel.Family, results []*jobresult.Result) {
	if l.Notifier == nil && l.Metrics == nil {
		return
	}
	if l.notified == nil {
		l.notified = map[string]bool{}
	}

	famByName := make(map[string]*jobmodel.Family, len(families))
	for _, f := range families {
		famByName[f.Name] = f
	}

	for _, r := range results {
		if r.Status != jobresult.Success && r.Status != jobresult.Failure {
			continue
		}
		if r.StartTime == "" {
			continue
		}
		key := strings.Join([]string{r.FamilyName, r.JobName, r.QueueName, r.WorkerName, r.StartTime}, ".")
		if l.notified[key] {
			continue
		}
		l.notified[key] = true

		if l.Metrics != nil && r.Status == jobresult.Failure {
			l.Metrics.JobsFailedTotal.WithLabelValues(r.FamilyName).Inc()
		}

		if l.Notifier == nil {
			continue
		}

		fam := famByName[r.FamilyName]
		var job *jobmodel.Job
		if fam != nil {
			job = fam.JobsByName[r.JobName]
		}

		l.Notifier.Notify(ctx, notify.Event{
			FamilyName: r.FamilyName,
			JobName:    r.JobName,
			Status:     string(r.Status),
			ErrorCode:  r.ErrorCode,
			Recipients: notifyRecipients(fam, job, r),
		})
	}
}

// notifyRecipients resolves which email address (if any) a terminal result
// should notify, honoring job-over-family email overrides and the
// no_retry_email/no_retry_success_email suppression flags. A job whose
// num_retries is nonzero is treated as "went through the retry path" for the
// purpose of choosing retry_email/retry_success_email over the plain email.
func notifyRecipients(fam *jobmodel.Family, job *jobmodel.Job, r *jobresult.Result) []string {
	var email, retryEmail, retrySuccessEmail string
	var noRetryEmail, noRetrySuccessEmail bool

	if fam != nil {
		email, retryEmail, retrySuccessEmail = fam.Email, fam.RetryEmail, fam.RetrySuccessEmail
		noRetryEmail, noRetrySuccessEmail = fam.NoRetryEmail, fam.NoRetrySuccessEmail
	}
	if job != nil {
		if job.Email != "" {
			email = job.Email
		}
		if job.RetryEmail != "" {
			retryEmail = job.RetryEmail
		}
		if job.RetrySuccessEmail != "" {
			retrySuccessEmail = job.RetrySuccessEmail
		}
		noRetryEmail = noRetryEmail || job.NoRetryEmail
		noRetrySuccessEmail = noRetrySuccessEmail || job.NoRetrySuccessEmail
	}

	wentThroughRetry := r.NumRetries > 0
	switch r.Status {
	case jobresult.Success:
		if wentThroughRetry && !noRetrySuccessEmail && retrySuccessEmail != "" {
			return []string{retrySuccessEmail}
		}
	case jobresult.Failure:
		if wentThroughRetry && !noRetryEmail && retryEmail != "" {
			return []string{retryEmail}
		}
	}
	if email != "" {
		return []string{email}
	}
	return nil
}

func (l *Loop) dispatchOne(ctx context.Context, r *jobresult.Result) error {
	now, err := l.Clock.Now(l.Config.PrimaryTZ)
	if err != nil {
		return err
	}
	startSmall := now.Format("20060102150405")

	infoName := jobresult.InfoFilename(r.FamilyName, r.JobName, r.QueueName, "x", startSmall)
	logName := jobresult.LogFilename(r.FamilyName, r.JobName, r.QueueName, "x", startSmall)
	infoPath := filepath.Join(l.Config.TodaysLogDir, infoName)
	logPath := filepath.Join(l.Config.TodaysLogDir, logName)

	workerName := "x"
	if l.TraceID != nil {
		workerName = trace.WorkerName(l.TraceID)
	}

	env := transport.Envelope{
		LogDir:     l.Config.TodaysLogDir,
		JobDir:     l.Config.JobDir,
		PrimaryTZ:  l.Config.PrimaryTZ,
		FamilyName: r.FamilyName,
		JobName:    r.JobName,
		TZ:         r.TZ,
		QueueName:  r.QueueName,
		NumRetries: r.NumRetries,
		RetrySleep: r.RetrySleep,
		WorkerName: workerName,
		InfoPath:   infoPath,
		JobLogFile: logPath,
	}

	if l.Logger != nil {
		l.Logger.Info(ctx, fmt.Sprintf("dispatching %s::%s", r.FamilyName, r.JobName),
			zap.String("queue", r.QueueName))
	}

	return l.Dispatcher.Dispatch(env)
}
