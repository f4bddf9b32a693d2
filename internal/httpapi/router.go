// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package httpapi serves a read-only view of today's scheduling state over
// HTTP, for dashboards and operator tooling that would rather poll a JSON
// endpoint than scan the log directory themselves.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sk-pkg/logger"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/jobmodel"
	"github.com/taskforest/pytf/internal/jobresult"
	"github.com/taskforest/pytf/internal/schedule"
	"github.com/taskforest/pytf/internal/trace"
)

// Core holds the dependencies status handlers need to re-derive today's
// scheduling view on each request, plus the logger/trace generator the
// per-request middleware emits through.
type Core struct {
	Config  *config.Config
	Clock   clock.Clock
	Logger  *logger.Manager
	TraceID *trace.ID
}

// New wires the status API and /metrics endpoints onto mux. The top-level
// /status and /healthz routes are the stable contract dashboards poll; the
// /pytf/... group holds the fuller, optionally JWT-gated API.
func New(mux *gin.Engine, core *Core) *gin.Engine {
	if core.TraceID != nil {
		mux.Use(SetTraceID(core.TraceID))
		if core.Logger != nil {
			mux.Use(RequestLogger(core.Logger, core.TraceID))
		}
	}

	mux.GET("/metrics", gin.WrapH(promhttp.Handler()))
	mux.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	mux.GET("/status", core.listJobs)

	api := mux.Group("pytf")
	api.GET("ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	status := api.Group("status", RequireViewerAuth(core.Config.JWTSecret))
	status.GET("families", core.listFamilies)
	status.GET("jobs", core.listJobs)

	return mux
}

func (core *Core) listFamilies(c *gin.Context) {
	families, err := jobmodel.FamiliesFromDir(core.Config.TodaysFamilyDir, core.Config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.Name)
	}
	c.JSON(http.StatusOK, gin.H{"families": names})
}

func (core *Core) listJobs(c *gin.Context) {
	families, err := jobmodel.FamiliesFromDir(core.Config.TodaysFamilyDir, core.Config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_, world, err := jobresult.ScanLogDir(core.Config.TodaysLogDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	held, err := jobresult.HeldJobs(core.Config.TodaysLogDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	released, err := jobresult.ReleasedJobs(core.Config.TodaysLogDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out, err := schedule.Run(core.Config, families, world, held, released, core.Clock, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	flat := out.Flat
	byFamily := out.ByFamily
	if family := c.Query("family"); family != "" {
		flat = out.ByFamily[family]
		byFamily = map[string][]*jobresult.Result{family: out.ByFamily[family]}
	}

	c.JSON(http.StatusOK, gin.H{"status": gin.H{"flat_list": flat, "family": byFamily}})
}
