// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package worker implements the job runner: it spawns a job's script as a
// child process, streams its output to a per-run log file, and maintains
// the job's info file through the run/retry lifecycle.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sk-pkg/logger"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/jobresult"
)

// Spec describes one job invocation, the arguments to Run.
type Spec struct {
	LogDir     string
	JobDir     string
	PrimaryTZ  string
	FamilyName string
	JobName    string
	TZ         string
	QueueName  string
	NumRetries int
	RetrySleep int // minutes
	WorkerName string
	InfoPath   string
	JobLogFile string
}

// Run implements the worker lifecycle: up to 1+NumRetries attempts, each
// writing a fresh info file once the child process has started and adding
// error_code (or retry_wait_until) after it exits. It blocks until the job
// reaches a terminal state (success or retries exhausted).
func Run(ctx context.Context, spec Spec, clk clock.Clock, log *logger.Manager) error {
	logFile, err := os.OpenFile(spec.JobLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	runLog := newLineLogger(logFile)

	attempts := 1 + spec.NumRetries
	for attempt := 0; attempt < attempts; attempt++ {
		now, err := clk.Now(spec.PrimaryTZ)
		if err != nil {
			return err
		}

		doc := jobresult.Doc{
			"family_name":  spec.FamilyName,
			"job_name":     spec.JobName,
			"queue_name":   spec.QueueName,
			"tz":           spec.TZ,
			"num_retries":  spec.NumRetries,
			"retry_sleep":  spec.RetrySleep,
			"worker_name":  spec.WorkerName,
			"worker_pid":   os.Getpid(),
			"start_time":   now.Format("2006/01/02 15:04:05"),
			"job_log_file": spec.JobLogFile,
		}

		scriptPath := filepath.Join(spec.JobDir, spec.JobName)
		cmd := exec.Command("sh", "-c", scriptPath)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return err
		}
		doc["job_pid"] = cmd.Process.Pid
		if err := doc.Save(spec.InfoPath); err != nil {
			return err
		}

		done := make(chan struct{})
		go func() {
			drain(stderr, runLog.Error)
			close(done)
		}()
		drain(stdout, runLog.Info)
		<-done
		waitErr := cmd.Wait()

		exitCode := 0
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = 1
			}
		}

		if exitCode == 0 {
			doc["error_code"] = 0
			return doc.Save(spec.InfoPath)
		}

		retriesRemain := attempt < attempts-1
		if log != nil {
			log.Warn(ctx, "job exited nonzero",
				zap.String("family", spec.FamilyName),
				zap.String("job", spec.JobName),
				zap.Int("exit_code", exitCode),
				zap.Bool("retries_remain", retriesRemain))
		}

		if !retriesRemain {
			doc["error_code"] = exitCode
			return doc.Save(spec.InfoPath)
		}

		delete(doc, "job_pid")
		wait, err := clk.Now(spec.PrimaryTZ)
		if err != nil {
			return err
		}
		doc["retry_wait_until"] = wait.Add(time.Duration(spec.RetrySleep) * time.Minute).Unix()
		if err := doc.Save(spec.InfoPath); err != nil {
			return err
		}
		clk.Sleep(time.Duration(spec.RetrySleep) * time.Minute)
	}

	return nil
}

func drain(r io.Reader, log func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			log(line)
		}
	}
}

// lineLogger serializes interleaved stdout/stderr lines into the per-run
// log file; both pipes are drained concurrently.
type lineLogger struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newLineLogger(w io.Writer) *lineLogger {
	return &lineLogger{w: bufio.NewWriter(w)}
}

func (l *lineLogger) Info(line string)  { l.write("INFO", line) }
func (l *lineLogger) Error(line string) { l.write("ERROR", line) }

func (l *lineLogger) write(level, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s %s\n", time.Now().UTC().Format("2006-01-02T15:04:05Z0700"), level, line)
	l.w.Flush()
}
