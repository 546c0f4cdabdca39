// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the Response Cache: answers are keyed by a
// fingerprint of every input that can affect them (rag_id, normalized
// question, top_k), so an identical request is always a hit and no input
// that changes the answer is ever excluded from the key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinterlante1206/ragserve/services/kvstore"
	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
)

// digestLength is the number of hex characters the fingerprint hash is
// truncated to, per spec.md §4.3 ("32 hex characters").
const digestLength = 32

// Cache is the Response Cache, backed by the shared key-value store.
type Cache struct {
	Store kvstore.Store
}

// Key derives the cache key for a request, matching spec.md §4.3's
// construction exactly: "cache:" + rag_id + ":" + hash(rag_id + ":" +
// normalize(question) + ":" + top_k_or_default).
func Key(ragID, question string, topK int) string {
	normalized := normalize(question)
	payload := ragID + ":" + normalized + ":" + strconv.Itoa(topK)
	sum := sha256.Sum256([]byte(payload))
	digest := hex.EncodeToString(sum[:])[:digestLength]
	return "cache:" + ragID + ":" + digest
}

func normalize(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// Get returns the cached entry for a request, or (nil, false) on a miss.
// A KV failure is treated as a miss: the request falls through to the full
// pipeline rather than failing outright.
func (c *Cache) Get(ctx context.Context, ragID, question string, topK int) (*datatypes.CacheEntry, bool) {
	raw, err := c.Store.Get(ctx, Key(ragID, question, topK))
	if err != nil {
		return nil, false
	}
	var entry datatypes.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Set stores an entry for ttl. No touch-on-read happens elsewhere: hits
// never extend this TTL.
func (c *Cache) Set(ctx context.Context, ragID, question string, topK int, entry datatypes.CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	return c.Store.Set(ctx, Key(ragID, question, topK), raw, ttl)
}

// InvalidateRAG removes every cached entry for ragID, used for bulk
// invalidation when a RAG's underlying content changes.
func (c *Cache) InvalidateRAG(ctx context.Context, ragID string) (int64, error) {
	return c.Store.DeleteByPattern(ctx, "cache:"+ragID+":*")
}
