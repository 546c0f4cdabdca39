// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gin handlers for the service's three public
// routes: POST /query, GET /health, and GET /metrics.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
	"github.com/jinterlante1206/ragserve/services/orchestrator/pipeline"
	"github.com/jinterlante1206/ragserve/services/orchestrator/observability"
	"github.com/jinterlante1206/ragserve/pkg/validation"
)

// Query wraps the Request Pipeline for POST /query.
type Query struct {
	Pipeline *pipeline.Pipeline
}

type queryRequestBody struct {
	RAGID     string `json:"rag_id" binding:"required"`
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

// Handle processes a single POST /query request.
func (h *Query) Handle(c *gin.Context) {
	var body queryRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": datatypes.CategoryValidation.String(), "error": "invalid request body", "detail": err.Error()})
		return
	}

	if err := validation.ValidateRAGID(body.RAGID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": datatypes.CategoryValidation.String(), "error": err.Error()})
		return
	}

	req := datatypes.QueryRequest{
		RAGID:     body.RAGID,
		Question:  body.Question,
		SessionID: body.SessionID,
		TopK:      body.TopK,
	}

	resp, err := h.Pipeline.Execute(c.Request.Context(), req, clientIdentity(c))
	if err != nil {
		writePipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// clientIdentity picks the identity the admission controller buckets
// against. Per-IP is the only strategy: the Config Binder's RAG config has
// no per-user vs per-IP toggle.
func clientIdentity(c *gin.Context) string {
	return c.ClientIP()
}

func writePipelineError(c *gin.Context, err error) {
	var pipeErr *datatypes.PipelineError
	if !errors.As(err, &pipeErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": datatypes.CategoryInternal.String(), "error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch pipeErr.Category {
	case datatypes.CategoryValidation:
		status = http.StatusBadRequest
	case datatypes.CategoryRAGNotFound:
		status = http.StatusNotFound
	case datatypes.CategoryRateLimited:
		status = http.StatusTooManyRequests
	case datatypes.CategoryDependencyDown:
		status = http.StatusServiceUnavailable
	case datatypes.CategoryTimeout:
		status = http.StatusGatewayTimeout
	case datatypes.CategoryEmbeddingMisconfigured, datatypes.CategoryInternal:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"code": pipeErr.Category.String(), "error": pipeErr.Message})
}

// Health serves GET /health.
type Health struct{}

// Handle reports the service as live. Dependency health is checked at
// startup and per-request inside the pipeline's own degradation rules, not
// re-probed here.
func (h *Health) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics serves GET /metrics with the spec's authoritative JSON snapshot.
type Metrics struct {
	Telemetry *observability.Telemetry
}

// Handle returns the current telemetry snapshot.
func (h *Metrics) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, h.Telemetry.Snapshot())
}
