// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/monitor"
	"github.com/sk-pkg/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/httpapi"
	logwire "github.com/taskforest/pytf/internal/logging"
	"github.com/taskforest/pytf/internal/mainloop"
	"github.com/taskforest/pytf/internal/metrics"
	"github.com/taskforest/pytf/internal/notify"
	"github.com/taskforest/pytf/internal/trace"
	"github.com/taskforest/pytf/internal/transport"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Aliases: []string{"main"},
		Short:   "Run the scheduler's tick loop until end_time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logwire.New(cfg)
			if err != nil {
				return err
			}

			traceID := trace.NewTraceID()
			ctx := logwire.TickContext(traceID)
			log.Info(ctx, "pytf starting", zap.String("primary_tz", cfg.PrimaryTZ), zap.Bool("run_local", cfg.RunLocal))

			var redisManager *redis.Manager
			if !cfg.RunLocal {
				redisManager = redis.New(
					redis.WithPrefix(cfg.RedisPrefix),
					redis.WithAddress(cfg.RedisAddr),
					redis.WithPassword(cfg.RedisAuth),
				)
			}

			clk := clock.Real{}
			dispatcher := transport.NewDispatcher(ctx, cfg, clk, log, redisManager)

			var m *metrics.Metrics
			if cfg.MetricsAddr != "" || cfg.HTTPAddr != "" {
				m = metrics.New(nil)
			}

			if cfg.HTTPAddr != "" {
				go serveHTTPAPI(ctx, cfg, clk, log, traceID)
			}
			if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.HTTPAddr {
				go serveMetrics(ctx, cfg, log)
			}

			loop := &mainloop.Loop{
				Config:     cfg,
				Clock:      clk,
				Dispatcher: dispatcher,
				Logger:     log,
				TraceID:    traceID,
				Metrics:    m,
				Notifier:   notify.New(cfg, log),
			}

			return loop.Run()
		},
	}
}

func serveHTTPAPI(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logger.Manager, traceID *trace.ID) {
	mux := gin.New()
	mux.Use(gin.Recovery())
	loadPanicRobot(ctx, cfg, mux, log)
	httpapi.New(mux, &httpapi.Core{Config: cfg, Clock: clk, Logger: log, TraceID: traceID})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(ctx, "status API server exited", zap.Error(err))
	}
}

// serveMetrics exposes /metrics on its own listener when metrics_addr is
// set to a different address than the status API.
func serveMetrics(ctx context.Context, cfg *config.Config, log *logger.Manager) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
		log.Error(ctx, "metrics server exited", zap.Error(err))
	}
}

// loadPanicRobot registers panic-report middleware on the status API when
// configured, so a handler panic posts to Feishu instead of just 500ing.
func loadPanicRobot(ctx context.Context, cfg *config.Config, mux *gin.Engine, log *logger.Manager) {
	if !cfg.PanicRobotEnable {
		return
	}

	panicRobot, err := monitor.NewPanicRobot(
		monitor.PanicRobotEnable(cfg.PanicRobotEnable),
		monitor.PanicRobotEnv(cfg.PanicRobotEnv),
		monitor.PanicRobotFeishuEnable(cfg.PanicRobotFeishuEnable),
		monitor.PanicRobotFeishuPushUrl(cfg.PanicRobotFeishuPushURL),
	)
	if err != nil {
		log.Error(ctx, "panic robot init failed", zap.Error(err))
		return
	}

	mux.Use(panicRobot.Middleware())
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
