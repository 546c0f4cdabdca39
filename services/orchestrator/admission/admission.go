// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package admission implements the per-RAG token-bucket admission
// controller. Bucket state lives in the shared key-value store and is
// mutated atomically via a Lua script, so concurrent requests against the
// same bucket never both observe tokens=0 and both get admitted.
package admission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinterlante1206/ragserve/services/kvstore"
)

// tokenBucketScript performs the read-modify-write described in spec.md
// §4.2 atomically: read {tokens, last_update}, refill by elapsed*rps
// capped at burst, subtract one token, and reject if negative. Only an
// admitted request writes {tokens, last_update} back; a rejected one leaves
// the stored bucket unchanged. Both paths refresh the idle TTL so abandoned
// buckets self-expire.
//
// KEYS[1] = bucket key
// ARGV[1] = rps, ARGV[2] = burst, ARGV[3] = now (unix seconds, float),
// ARGV[4] = idle TTL seconds
// returns 1 (admit) or 0 (reject)
const tokenBucketScript = `
local tokens_str = redis.call('HGET', KEYS[1], 'tokens')
local last_str = redis.call('HGET', KEYS[1], 'last_update')
local rps = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens
if tokens_str == false then
  tokens = burst - 1
else
  local last = tonumber(last_str)
  local elapsed = now - last
  if elapsed < 0 then elapsed = 0 end
  tokens = tonumber(tokens_str) + elapsed * rps
  if tokens > burst then tokens = burst end
  tokens = tokens - 1
end

if tokens < 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  return 0
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', KEYS[1], ttl)
return 1
`

// idleTTLSeconds bounds how long an untouched bucket survives in Redis, per
// spec.md §4.2's "e.g., 60 s" guidance.
const idleTTLSeconds = 60

// Clock returns the current time as unix seconds; overridable in tests.
type Clock func() float64

// Controller admits or rejects a request against a RAG's token bucket.
type Controller struct {
	Store  kvstore.Store
	Now    Clock
	Logger *slog.Logger
}

// Allow evaluates one request against client's bucket for ragID. On KV
// failure it degrades to admitting the request (spec.md §4.2's
// degrade-to-admit rule) rather than rejecting traffic because the rate
// limiter itself is unavailable.
func (c *Controller) Allow(ctx context.Context, ragID, client string, rps, burst float64) (bool, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	key := BucketKey(ragID, client)
	now := c.Now
	if now == nil {
		now = unixNow
	}

	result, err := c.Store.Eval(ctx, tokenBucketScript, []string{key}, rps, burst, now(), idleTTLSeconds)
	if err != nil {
		logger.Warn("admission: kv unavailable, degrading to admit", "rag_id", ragID, "error", err)
		return true, nil
	}

	admitted, ok := toInt64(result)
	if !ok {
		return true, fmt.Errorf("admission: unexpected script result %T", result)
	}
	return admitted == 1, nil
}

// BucketKey derives the deterministic per-(rag,client) bucket key, matching
// spec.md §6's "ratelimit:<rag_id>:<client>" prefix.
func BucketKey(ragID, client string) string {
	return "ratelimit:" + ragID + ":" + client
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
