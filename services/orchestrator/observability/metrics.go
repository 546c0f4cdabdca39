// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Supplementary Prometheus instrumentation, registered with the default
// registry via the same promauto package-level var pattern as the teacher's
// streaming metrics; no route of this service serves that registry. These mirror Telemetry's events but are not the
// source of truth for GET /metrics.
var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_query_total",
		Help: "Total number of POST /query requests, by RAG.",
	}, []string{"rag_id"})

	cacheHitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_cache_hit_total",
		Help: "Total response cache hits, by RAG.",
	}, []string{"rag_id"})

	cacheMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_cache_miss_total",
		Help: "Total response cache misses, by RAG.",
	}, []string{"rag_id"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_rate_limited_total",
		Help: "Total requests rejected by the admission controller, by RAG.",
	}, []string{"rag_id"})

	llmFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_llm_fallback_total",
		Help: "Total times the fallback LLM model was invoked, by RAG.",
	}, []string{"rag_id"})

	llmFailureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragserve_llm_failure_total",
		Help: "Total times both primary and fallback LLM calls failed, by RAG.",
	}, []string{"rag_id"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragserve_query_duration_seconds",
		Help:    "End-to-end POST /query latency, by RAG.",
		Buckets: prometheus.DefBuckets,
	}, []string{"rag_id"})
)

// Metrics wires query-pipeline events into the Prometheus vectors above.
type Metrics struct{}

// NewMetrics returns a Metrics instance; the underlying collectors are
// package-level and registered once via promauto at import time.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveQuery records one completed query's outcome and latency.
func (m *Metrics) ObserveQuery(ragID string, cacheHit bool, latencySeconds float64) {
	queryTotal.WithLabelValues(ragID).Inc()
	if cacheHit {
		cacheHitTotal.WithLabelValues(ragID).Inc()
	} else {
		cacheMissTotal.WithLabelValues(ragID).Inc()
	}
	queryDuration.WithLabelValues(ragID).Observe(latencySeconds)
}

// ObserveRateLimited records one request rejected by the admission
// controller.
func (m *Metrics) ObserveRateLimited(ragID string) {
	rateLimitedTotal.WithLabelValues(ragID).Inc()
}

// ObserveLLMFallback records one fallback-model invocation.
func (m *Metrics) ObserveLLMFallback(ragID string) {
	llmFallbackTotal.WithLabelValues(ragID).Inc()
}

// ObserveLLMFailure records one request where both LLM models failed.
func (m *Metrics) ObserveLLMFailure(ragID string) {
	llmFailureTotal.WithLabelValues(ragID).Inc()
}
