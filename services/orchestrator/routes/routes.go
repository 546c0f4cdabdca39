// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes declares the service's route table: an explicit
// method+path+handler list in the teacher's style, rather than handlers
// registering themselves.
package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jinterlante1206/ragserve/services/orchestrator/handlers"
	"github.com/jinterlante1206/ragserve/services/orchestrator/middleware"
	"github.com/jinterlante1206/ragserve/services/orchestrator/observability"
	"github.com/jinterlante1206/ragserve/services/orchestrator/pipeline"
)

// Register builds the gin engine and wires every route.
func Register(pl *pipeline.Pipeline, telemetry *observability.Telemetry, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ragserve"))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))

	query := &handlers.Query{Pipeline: pl}
	health := &handlers.Health{}
	metrics := &handlers.Metrics{Telemetry: telemetry}

	router.POST("/query", query.Handle)
	router.GET("/health", health.Handle)
	router.GET("/metrics", metrics.Handle)

	return router
}
