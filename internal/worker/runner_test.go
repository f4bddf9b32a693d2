// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sk-pkg/logger"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/jobresult"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
}

func testLogger(t *testing.T) *logger.Manager {
	t.Helper()
	l, err := logger.New()
	if err != nil {
		t.Fatalf("logger.New returned error: %v", err)
	}
	return l
}

// TestRun_SuccessWritesErrorCodeZero validates that a script exiting 0
// produces an info file with error_code 0 and no retry.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestRun_SuccessWritesErrorCodeZero(t *testing.T) {
	jobDir := t.TempDir()
	logDir := t.TempDir()
	writeScript(t, jobDir, "J1", "#!/bin/sh\nexit 0\n")

	spec := Spec{
		JobDir:     jobDir,
		PrimaryTZ:  "UTC",
		FamilyName: "billing",
		JobName:    "J1",
		QueueName:  "default",
		InfoPath:   filepath.Join(logDir, "billing.J1.default.w-1.20240315.info"),
		JobLogFile: filepath.Join(logDir, "billing.J1.default.w-1.20240315.log"),
	}

	clk := clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	if err := Run(context.Background(), spec, clk, testLogger(t)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	doc, err := jobresult.LoadDoc(spec.InfoPath)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if ec, _ := doc["error_code"].(int64); ec != 0 {
		t.Errorf("error_code = %v, want 0", doc["error_code"])
	}
	if _, hasRetry := doc["retry_wait_until"]; hasRetry {
		t.Error("a successful run should not leave a retry_wait_until field")
	}
}

// TestRun_FailureWithNoRetriesWritesNonzeroErrorCode checks that a failing
// script with NumRetries=0 terminates after one attempt with the exit code
// recorded.
func TestRun_FailureWithNoRetriesWritesNonzeroErrorCode(t *testing.T) {
	jobDir := t.TempDir()
	logDir := t.TempDir()
	writeScript(t, jobDir, "J1", "#!/bin/sh\nexit 3\n")

	spec := Spec{
		JobDir:     jobDir,
		PrimaryTZ:  "UTC",
		FamilyName: "billing",
		JobName:    "J1",
		QueueName:  "default",
		NumRetries: 0,
		InfoPath:   filepath.Join(logDir, "billing.J1.default.w-1.20240315.info"),
		JobLogFile: filepath.Join(logDir, "billing.J1.default.w-1.20240315.log"),
	}

	clk := clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	if err := Run(context.Background(), spec, clk, testLogger(t)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	doc, err := jobresult.LoadDoc(spec.InfoPath)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if ec, _ := doc["error_code"].(int64); ec != 3 {
		t.Errorf("error_code = %v, want 3", doc["error_code"])
	}
}

// TestRun_RetriesThenSucceeds checks the full retry lifecycle: a script
// that fails once then succeeds must run exactly twice, sleeping the
// configured retry_sleep minutes on the mock clock in between, and the
// final info file must reflect success.
func TestRun_RetriesThenSucceeds(t *testing.T) {
	jobDir := t.TempDir()
	logDir := t.TempDir()
	marker := filepath.Join(jobDir, "ran-once")
	writeScript(t, jobDir, "J1", "#!/bin/sh\n"+
		"if [ -f "+marker+" ]; then exit 0; fi\n"+
		"touch "+marker+"\n"+
		"exit 1\n")

	spec := Spec{
		JobDir:     jobDir,
		PrimaryTZ:  "UTC",
		FamilyName: "billing",
		JobName:    "J1",
		QueueName:  "default",
		NumRetries: 1,
		RetrySleep: 2,
		InfoPath:   filepath.Join(logDir, "billing.J1.default.w-1.20240315.info"),
		JobLogFile: filepath.Join(logDir, "billing.J1.default.w-1.20240315.log"),
	}

	start := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	clk := clock.NewMock(start)
	if err := Run(context.Background(), spec, clk, testLogger(t)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	doc, err := jobresult.LoadDoc(spec.InfoPath)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if ec, _ := doc["error_code"].(int64); ec != 0 {
		t.Errorf("error_code = %v, want 0 after the retried attempt succeeds", doc["error_code"])
	}

	after, err := clk.Now("UTC")
	if err != nil {
		t.Fatalf("Now returned error: %v", err)
	}
	if !after.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("mock clock advanced to %v, want %v (one retry_sleep of 2 minutes)", after, start.Add(2*time.Minute))
	}
}

// TestRun_ExhaustsRetriesThenFails checks that a script that always fails
// runs exactly 1+NumRetries times and ends with the final exit code
// recorded as a terminal error_code.
func TestRun_ExhaustsRetriesThenFails(t *testing.T) {
	jobDir := t.TempDir()
	logDir := t.TempDir()
	counter := filepath.Join(jobDir, "count")
	writeScript(t, jobDir, "J1", "#!/bin/sh\n"+
		"n=$(cat "+counter+" 2>/dev/null || echo 0)\n"+
		"n=$((n+1))\n"+
		"echo $n > "+counter+"\n"+
		"exit 9\n")

	spec := Spec{
		JobDir:     jobDir,
		PrimaryTZ:  "UTC",
		FamilyName: "billing",
		JobName:    "J1",
		QueueName:  "default",
		NumRetries: 2,
		RetrySleep: 1,
		InfoPath:   filepath.Join(logDir, "billing.J1.default.w-1.20240315.info"),
		JobLogFile: filepath.Join(logDir, "billing.J1.default.w-1.20240315.log"),
	}

	clk := clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	if err := Run(context.Background(), spec, clk, testLogger(t)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	doc, err := jobresult.LoadDoc(spec.InfoPath)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if ec, _ := doc["error_code"].(int64); ec != 9 {
		t.Errorf("error_code = %v, want 9 (final attempt's exit code)", doc["error_code"])
	}

	raw, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if got := string(raw); got != "3\n" {
		t.Errorf("attempt count = %q, want 3 (1 initial + 2 retries)", got)
	}
}
