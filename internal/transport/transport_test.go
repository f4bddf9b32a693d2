// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sk-pkg/logger"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/jobresult"
)

// TestLocal_DispatchRunsJobSynchronously validates that the Local
// dispatcher runs the job in-process and that its info file reflects
// completion by the time Dispatch returns.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestLocal_DispatchRunsJobSynchronously(t *testing.T) {
	jobDir := t.TempDir()
	logDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(jobDir, "J1"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	log, err := logger.New()
	if err != nil {
		t.Fatalf("logger.New returned error: %v", err)
	}
	l := Local{Ctx: context.Background(), Clock: clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)), Logger: log}

	env := Envelope{
		JobDir:     jobDir,
		PrimaryTZ:  "UTC",
		FamilyName: "billing",
		JobName:    "J1",
		QueueName:  "default",
		InfoPath:   filepath.Join(logDir, "billing.J1.default.w-1.20240315.info"),
		JobLogFile: filepath.Join(logDir, "billing.J1.default.w-1.20240315.log"),
	}

	if err := l.Dispatch(env); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	doc, err := jobresult.LoadDoc(env.InfoPath)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if ec, _ := doc["error_code"].(int64); ec != 0 {
		t.Errorf("error_code = %v, want 0", doc["error_code"])
	}
}

// TestNewDispatcher_RunLocalSelectsLocal checks that NewDispatcher picks the
// in-process dispatcher when run_local is enabled.
func TestNewDispatcher_RunLocalSelectsLocal(t *testing.T) {
	cfg := &config.Config{RunLocal: true}
	d := NewDispatcher(context.Background(), cfg, clock.Real{}, nil, nil)
	if _, ok := d.(Local); !ok {
		t.Errorf("NewDispatcher with RunLocal=true returned %T, want Local", d)
	}
}

// TestNewDispatcher_RemoteSelectsRedis checks that NewDispatcher picks the
// Redis dispatcher when run_local is disabled.
func TestNewDispatcher_RemoteSelectsRedis(t *testing.T) {
	cfg := &config.Config{RunLocal: false, RedisPrefix: "pytf"}
	d := NewDispatcher(context.Background(), cfg, clock.Real{}, nil, nil)
	if _, ok := d.(Redis); !ok {
		t.Errorf("NewDispatcher with RunLocal=false returned %T, want Redis", d)
	}
}

// TestRedis_QueueKeyNamespacesByPrefixAndQueue checks the list-key naming
// convention pytf-workerd relies on to find its queue.
func TestRedis_QueueKeyNamespacesByPrefixAndQueue(t *testing.T) {
	r := Redis{Prefix: "pytf"}
	if got, want := r.queueKey("batch"), "pytf:queue:batch"; got != want {
		t.Errorf("queueKey(batch) = %q, want %q", got, want)
	}
}
