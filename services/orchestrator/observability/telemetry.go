// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the authoritative in-process telemetry
// surface (spec.md §4.9's counters and latency ring) plus a supplementary
// Prometheus instrumentation layer on the default registry, which no route
// of this service serves.
package observability

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
)

// ringSize caps the latency sample window, per spec.md §4.9's "last 1000
// samples."
const ringSize = 1000

// Telemetry is the authoritative process-scoped telemetry state: the four
// monotonic counters spec.md §4.9 names, plus a fixed-size latency ring.
// Prometheus histograms compute bucket-interpolated quantiles, not the
// nearest-rank-over-a-fixed-window percentile the spec requires, so this
// hand-rolled structure is the source of truth for GET /metrics; Metrics
// (metrics.go) mirrors these events into Prometheus counters that no route
// of this service exposes.
type Telemetry struct {
	requestsTotal int64
	errorsTotal   int64
	cacheHits     int64
	rateLimited   int64

	mu      sync.Mutex
	samples [ringSize]float64
	count   int // total samples ever recorded, may exceed ringSize
}

// New creates an empty Telemetry instance.
func New() *Telemetry {
	return &Telemetry{}
}

// RecordQuery increments requests_total and, if cacheHit, cache_hits_total.
func (t *Telemetry) RecordQuery(cacheHit bool) {
	atomic.AddInt64(&t.requestsTotal, 1)
	if cacheHit {
		atomic.AddInt64(&t.cacheHits, 1)
	}
}

// RecordError increments errors_total, once per non-success terminal
// answer (spec.md §4.1's telemetry contract).
func (t *Telemetry) RecordError() {
	atomic.AddInt64(&t.errorsTotal, 1)
}

// RecordRateLimited increments rate_limited_total.
func (t *Telemetry) RecordRateLimited() {
	atomic.AddInt64(&t.rateLimited, 1)
}

// RecordLatency appends latencyMS to the ring, overwriting the oldest
// sample once the ring is full.
func (t *Telemetry) RecordLatency(latencyMS float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[t.count%ringSize] = latencyMS
	t.count++
}

// Snapshot returns the current counters, the sample count and average over
// the latency ring's current contents, and their nearest-rank p95.
func (t *Telemetry) Snapshot() datatypes.MetricsSnapshot {
	t.mu.Lock()
	n := t.count
	if n > ringSize {
		n = ringSize
	}
	sorted := make([]float64, n)
	copy(sorted, t.samples[:n])
	t.mu.Unlock()

	var avg float64
	if n > 0 {
		var sum float64
		for _, s := range sorted {
			sum += s
		}
		avg = sum / float64(n)
	}

	sort.Float64s(sorted)
	var p95 float64
	if n > 0 {
		idx := int(0.95 * float64(n))
		p95 = sorted[idx]
	}

	return datatypes.MetricsSnapshot{
		RequestsTotal:    atomic.LoadInt64(&t.requestsTotal),
		ErrorsTotal:      atomic.LoadInt64(&t.errorsTotal),
		CacheHitsTotal:   atomic.LoadInt64(&t.cacheHits),
		RateLimitedTotal: atomic.LoadInt64(&t.rateLimited),
		AvgLatencyMS:     avg,
		P95LatencyMS:     p95,
		LatencySamples:   int64(n),
	}
}
