// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"
)

// ErrUnavailable is returned when both the primary and fallback models have
// exhausted their retries. The Request Pipeline maps this to the
// LLMUnavailable category (a degraded 200, not a 5xx).
var ErrUnavailable = errors.New("llm: primary and fallback both unavailable")

// RetryPolicy controls how PrimaryFallback retries a single model before
// giving up on it and, if configured, falling back.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Zero means no retries.
	MaxRetries int

	// BaseBackoff is the delay before the first retry; each subsequent
	// retry doubles it (exponential backoff).
	BaseBackoff time.Duration
}

// PrimaryFallback wraps a primary Client and an optional fallback Client,
// implementing the retry-then-fallback policy from the spec's LLM Invoker:
// retryable failures (network errors, timeouts, 429, 5xx) are retried up to
// MaxRetries times with exponential backoff; non-retryable 4xx failures and
// an exhausted primary both trigger an immediate attempt on the fallback, if
// one is configured.
type PrimaryFallback struct {
	Primary  Client
	Fallback Client // may be nil
	Policy   RetryPolicy
	Logger   *slog.Logger
}

// Chat attempts Primary first, retrying per Policy, then Fallback, retried
// under the same Policy, if Primary fails entirely. It returns ErrUnavailable only once every
// available model has been exhausted.
func (p *PrimaryFallback) Chat(ctx context.Context, messages []Message, params GenerationParams) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result, err := p.callWithRetry(ctx, p.Primary, messages, params, logger)
	if err == nil {
		return result, nil
	}
	logger.Warn("llm: primary model failed", "model", p.Primary.Model(), "error", err)

	if p.Fallback == nil {
		return Result{}, ErrUnavailable
	}

	result, err = p.callWithRetry(ctx, p.Fallback, messages, params, logger)
	if err == nil {
		return result, nil
	}
	logger.Warn("llm: fallback model failed", "model", p.Fallback.Model(), "error", err)
	return Result{}, ErrUnavailable
}

// Model reports the primary model's identity, matching the single-model
// Client contract for callers that don't care about fallback.
func (p *PrimaryFallback) Model() string {
	return p.Primary.Model()
}

func (p *PrimaryFallback) callWithRetry(ctx context.Context, client Client, messages []Message, params GenerationParams, logger *slog.Logger) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= p.Policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.Policy.BaseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := client.Chat(ctx, messages, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return Result{}, err
		}
		logger.Debug("llm: retrying", "model", client.Model(), "attempt", attempt+1, "error", err)
	}
	return Result{}, lastErr
}

// isRetryable classifies a Chat error per the spec's retry policy: network
// errors, timeouts, 429 and 5xx responses are retryable; other 4xx errors
// are not.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return true
	}
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server error") || strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") || strings.Contains(msg, "gateway timeout") {
		return true
	}
	return false
}

var _ Client = (*PrimaryFallback)(nil)
