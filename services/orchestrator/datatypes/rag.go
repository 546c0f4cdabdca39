// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request, response, and domain types shared
// across the query-serving dataplane: the Request Pipeline, Response Cache,
// Retrieval Layer, Prompt Assembler, and Session Store all exchange these
// shapes rather than ad-hoc maps.
package datatypes

import "time"

// QueryRequest is the decoded body of POST /query.
type QueryRequest struct {
	RAGID     string `json:"-"`
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

// Chunk is a single piece of retrieved context, carrying enough metadata to
// both rank it and cite it in the assembled prompt.
type Chunk struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// QueryResponse is the JSON body returned from a successful POST /query.
type QueryResponse struct {
	RAGID         string  `json:"rag_id"`
	Answer        string  `json:"answer"`
	ContextChunks []Chunk `json:"context_chunks"`
	LatencyMS     int64   `json:"latency_ms"`
	CacheHit      bool    `json:"cache_hit"`
	SessionID     string  `json:"session_id,omitempty"`
}

// SessionTurn is one exchange in a session's conversation history.
type SessionTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricsSnapshot is the JSON body returned from GET /metrics, matching the
// spec's seven scalar fields exactly: requests_total, errors_total,
// cache_hits_total, rate_limited_total, avg_latency_ms, p95_latency_ms,
// latency_samples.
type MetricsSnapshot struct {
	RequestsTotal    int64   `json:"requests_total"`
	ErrorsTotal      int64   `json:"errors_total"`
	CacheHitsTotal   int64   `json:"cache_hits_total"`
	RateLimitedTotal int64   `json:"rate_limited_total"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	P95LatencyMS     float64 `json:"p95_latency_ms"`
	LatencySamples   int64   `json:"latency_samples"`
}

// CacheEntry is what the Response Cache stores per fingerprint.
type CacheEntry struct {
	Answer        string    `json:"answer"`
	ContextChunks []Chunk   `json:"context_chunks"`
	CreatedAt     time.Time `json:"created_at"`
}
