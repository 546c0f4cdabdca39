// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements the Retrieval Layer: embed the question,
// search the RAG's vector collection, then apply the score-threshold and
// duplicate filters before handing chunks to the Prompt Assembler.
package retrieval

import (
	"context"
	"fmt"

	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
	"github.com/jinterlante1206/ragserve/services/orchestrator/embedding"
	"github.com/jinterlante1206/ragserve/services/vectorstore"
)

// Options configures a single retrieval call, sourced from the RAG's
// config and any per-request top_k override.
type Options struct {
	TopK             int
	ScoreThreshold   float32
	FilterDuplicates bool
}

// Layer retrieves context chunks for a question.
type Layer struct {
	Embedder    embedding.Provider
	VectorStore vectorstore.Store
}

// Retrieve embeds question, searches ragID's collection, and returns the
// filtered, ordered chunk list. An empty (or fully-filtered) result is not
// an error: the caller falls back to the RAG's no-context message.
func (l *Layer) Retrieve(ctx context.Context, ragID, question string, opts Options) ([]datatypes.Chunk, error) {
	vectors, err := l.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned no vector")
	}

	matches, err := l.VectorStore.Search(ctx, ragID, vectors[0], uint64(opts.TopK))
	if err != nil {
		return nil, fmt.Errorf("retrieval: search %q: %w", ragID, err)
	}

	seenText := make(map[string]bool, len(matches))
	chunks := make([]datatypes.Chunk, 0, len(matches))
	for _, m := range matches {
		if opts.ScoreThreshold > 0 && m.Score < opts.ScoreThreshold {
			continue
		}
		text := m.Payload["text"]
		if opts.FilterDuplicates && seenText[text] {
			continue
		}
		seenText[text] = true

		chunks = append(chunks, datatypes.Chunk{
			ID:     m.ID,
			Source: m.Payload["source"],
			Text:   text,
			Score:  m.Score,
		})
	}
	return chunks, nil
}
