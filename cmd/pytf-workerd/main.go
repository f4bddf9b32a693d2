// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package main is pytf-workerd: a daemon that BLPOPs dispatch envelopes off
// a Redis queue and runs them through the same worker lifecycle the
// in-process local dispatcher uses, for deployments with run_local=false.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sk-pkg/redis"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	logwire "github.com/taskforest/pytf/internal/logging"
	"github.com/taskforest/pytf/internal/trace"
	"github.com/taskforest/pytf/internal/transport"
	"github.com/taskforest/pytf/internal/worker"
)

func loadConfig(path string) (*config.Config, error) {
	return config.Load(path, config.Flags{})
}

func main() {
	configPath := flag.String("config", "", "path to the pytf TOML config file")
	queue := flag.String("queue", "default", "queue name this worker consumes")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	log, err := logwire.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "building logger:", err)
		os.Exit(1)
	}

	redisManager := redis.New(
		redis.WithPrefix(cfg.RedisPrefix),
		redis.WithAddress(cfg.RedisAddr),
		redis.WithPassword(cfg.RedisAuth),
	)

	traceID := trace.NewTraceID()
	ctx, cancel := signalContext()
	defer cancel()

	clk := clock.Real{}
	queueKey := fmt.Sprintf("%s:queue:%s", cfg.RedisPrefix, *queue)
	log.Info(logwire.TickContext(traceID), "pytf-workerd starting", zap.String("queue", queueKey))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		reply, err := redisManager.Do("BLPOP", queueKey, 5)
		if err != nil {
			continue
		}
		payload, ok := replyPayload(reply)
		if !ok {
			continue
		}

		var env transport.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Error(logwire.TickContext(traceID), "malformed dispatch envelope", zap.Error(err))
			continue
		}

		if env.WorkerName == "" {
			env.WorkerName = trace.WorkerName(traceID)
		}

		runCtx := logwire.TickContext(traceID)
		err = worker.Run(runCtx, worker.Spec{
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
		}, clk, log)
		if err != nil {
			log.Error(runCtx, "worker run failed",
				zap.String("family", env.FamilyName), zap.String("job", env.JobName), zap.Error(err))
		}
	}
}

// replyPayload extracts the value element of a BLPOP [key, value] reply.
func replyPayload(reply interface{}) ([]byte, bool) {
	switch v := reply.(type) {
	case []interface{}:
		if len(v) != 2 {
			return nil, false
		}
		switch val := v[1].(type) {
		case []byte:
			return val, true
		case string:
			return []byte(val), true
		}
	}
	return nil, false
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, os.Kill)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
