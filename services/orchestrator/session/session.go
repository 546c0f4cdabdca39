// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the short-lived conversational Session Store:
// a bounded per-session history with a sliding TTL, backed by a Redis list.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinterlante1206/ragserve/services/kvstore"
	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
)

// historyMultiple bounds the stored list to a small multiple of the
// configured history depth, per spec.md §4.7's "at most some small
// multiple of typical history depth."
const historyMultiple = 3

// Store is the Session Store.
type Store struct {
	KV kvstore.Store
}

// Key derives the deterministic session key, matching spec.md §6's
// "session:<session_id>" prefix.
func Key(sessionID string) string {
	return "session:" + sessionID
}

// GetHistory returns the last n turns (oldest first), or an empty slice if
// the session does not exist or is empty.
func (s *Store) GetHistory(ctx context.Context, sessionID string, n int) ([]datatypes.SessionTurn, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.KV.LRange(ctx, Key(sessionID), int64(-n), -1)
	if err != nil {
		return nil, fmt.Errorf("session: get history %q: %w", sessionID, err)
	}

	turns := make([]datatypes.SessionTurn, 0, len(raw))
	for _, entry := range raw {
		var turn datatypes.SessionTurn
		if err := json.Unmarshal(entry, &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AppendTurn appends a new turn to the tail, trims the stored list to a
// bounded multiple of depth, and resets the key's TTL (sliding window).
func (s *Store) AppendTurn(ctx context.Context, sessionID, question, answer string, depth int, ttl time.Duration) error {
	turn := datatypes.SessionTurn{Question: question, Answer: answer, Timestamp: time.Now()}
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("session: marshal turn: %w", err)
	}

	key := Key(sessionID)
	if err := s.KV.RPush(ctx, key, raw); err != nil {
		return fmt.Errorf("session: append turn %q: %w", sessionID, err)
	}

	maxLen := int64(depth * historyMultiple)
	if maxLen > 0 {
		if err := s.KV.LTrim(ctx, key, -maxLen, -1); err != nil {
			return fmt.Errorf("session: trim %q: %w", sessionID, err)
		}
	}

	if err := s.KV.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("session: renew ttl %q: %w", sessionID, err)
	}
	return nil
}
