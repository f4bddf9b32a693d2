// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package logging wires the scheduler's structured logger: one
// logger.Manager for the process, plus a trace-aware context value key
// threading one ID per tick through every log line emitted during it.
package logging

import (
	"context"

	"github.com/sk-pkg/logger"

	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/trace"
)

// New builds a logger.Manager from the scheduler's ambient log settings.
func New(cfg *config.Config) (*logger.Manager, error) {
	return logger.New(
		logger.WithLevel(cfg.LogLevel),
		logger.WithDriver(cfg.LogDriver),
		logger.WithLogPath(cfg.LogPath),
	)
}

// TickContext returns a context carrying a fresh trace ID for one tick,
// so every log line the tick emits can be correlated afterwards.
func TickContext(gen *trace.ID) context.Context {
	return context.WithValue(context.Background(), logger.TraceIDKey, gen.New())
}
