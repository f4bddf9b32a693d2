// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package transport implements job dispatch: either synchronous in-process
// execution (run_local) or enqueueing onto a Redis list consumed by a
// separate worker daemon.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/redis"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/worker"
)

// Envelope is the wire payload for a queued dispatch, encoded as JSON and
// pushed onto the Redis list of the job's queue (see Redis.queueKey).
type Envelope struct {
	LogDir     string `json:"log_dir"`
	JobDir     string `json:"job_dir"`
	PrimaryTZ  string `json:"primary_tz"`
	FamilyName string `json:"family_name"`
	JobName    string `json:"job_name"`
	TZ         string `json:"tz"`
	QueueName  string `json:"queue_name"`
	NumRetries int    `json:"num_retries"`
	RetrySleep int    `json:"retry_sleep"`
	WorkerName string `json:"worker_name"`
	InfoPath   string `json:"info_path"`
	JobLogFile string `json:"job_log_file"`
}

// Dispatcher hands one job invocation off to be run, either synchronously
// or by enqueueing it for a remote worker.
type Dispatcher interface {
	Dispatch(env Envelope) error
}

// Local runs the job synchronously in-process, matching run_local=true.
type Local struct {
	Ctx    context.Context
	Clock  clock.Clock
	Logger *logger.Manager
}

// Dispatch implements Dispatcher by invoking the worker runner directly.
func (l Local) Dispatch(env Envelope) error {
	ctx := l.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return worker.Run(ctx, worker.Spec{
		LogDir:     env.LogDir,
		JobDir:     env.JobDir,
		PrimaryTZ:  env.PrimaryTZ,
		FamilyName: env.FamilyName,
		JobName:    env.JobName,
		TZ:         env.TZ,
		QueueName:  env.QueueName,
		NumRetries: env.NumRetries,
		RetrySleep: env.RetrySleep,
		WorkerName: env.WorkerName,
		InfoPath:   env.InfoPath,
		JobLogFile: env.JobLogFile,
	}, l.Clock, l.Logger)
}

// Redis enqueues the job onto a Redis list keyed by queue name, for
// pytf-workerd to BLPOP and execute.
type Redis struct {
	Manager *redis.Manager
	Prefix  string
}

func (r Redis) queueKey(queueName string) string {
	return fmt.Sprintf("%s:queue:%s", r.Prefix, queueName)
}

// Dispatch implements Dispatcher by RPUSHing a JSON envelope onto the
// job's queue list.
func (r Redis) Dispatch(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = r.Manager.Do("RPUSH", r.queueKey(env.QueueName), string(payload))
	return err
}

// NewDispatcher builds the configured dispatcher: Local if RunLocal, else a
// Redis dispatcher against the configured queue prefix.
func NewDispatcher(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logger.Manager, manager *redis.Manager) Dispatcher {
	if cfg.RunLocal {
		return Local{Ctx: ctx, Clock: clk, Logger: log}
	}
	return Redis{Manager: manager, Prefix: cfg.RedisPrefix}
}
