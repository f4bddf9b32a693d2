// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sk-pkg/logger"
	"github.com/sk-pkg/util"
	"go.uber.org/zap"

	"github.com/taskforest/pytf/internal/trace"
)

// SetTraceID returns middleware that binds a trace ID to every request.
// A client-provided X-Trace-ID is reused; otherwise a fresh ID is generated
// and echoed back in the response header.
func SetTraceID(gen *trace.ID) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = gen.New()
			c.Writer.Header().Set("X-Trace-ID", traceID)
		}

		c.Set("trace_id", traceID)

		c.Next()
	}
}

// RequestLogger returns middleware that records structured HTTP request
// logs: trace ID, status code, latency, method, URI, and source IP.
func RequestLogger(log *logger.Manager, gen *trace.ID) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latencyTime := time.Since(startTime)
		reqMethod := c.Request.Method
		reqUri := c.Request.RequestURI
		statusCode := c.Writer.Status()
		clientIP := util.GetRealIP(c)

		traceID, exists := c.Get("trace_id")
		if !exists {
			traceID = gen.New()
		}

		ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID.(string))

		log.Info(ctx,
			"Request Logs",
			zap.Int("StatusCode", statusCode),
			zap.Any("Latency", latencyTime),
			zap.String("IP", clientIP),
			zap.String("Method", reqMethod),
			zap.String("RequestPath", reqUri),
		)
	}
}

// RequireViewerAuth validates the Authorization header against secret when
// secret is non-empty. An empty secret leaves the status API open, for
// local/dev use.
func RequireViewerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseViewerToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("viewer_subject", claims.Subject)
		c.Next()
	}
}
