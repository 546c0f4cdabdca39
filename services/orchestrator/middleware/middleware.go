// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware holds request-scoped gin middleware: a request-ID
// stamp and structured access logging, the generalized counterpart to the
// teacher's auth middleware's context-key/factory shape, repurposed here
// since authentication itself is out of scope.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the gin context key holding the request's generated ID.
const RequestIDKey contextKey = "request_id"

// RequestID stamps every request with a fresh opaque ID, available to
// handlers via c.GetString(string(RequestIDKey)), and echoes it back on the
// X-Request-ID response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(string(RequestIDKey), id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog logs one structured line per completed request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"request_id", c.GetString(string(RequestIDKey)),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
