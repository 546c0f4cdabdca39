// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the Request Pipeline: the public query
// operation, as the nine ordered, short-circuiting stages spec.md §4.1
// describes. It is the only component that constructs the terminal
// response object.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/ragserve/services/llm"
	"github.com/jinterlante1206/ragserve/services/orchestrator/admission"
	"github.com/jinterlante1206/ragserve/services/orchestrator/cache"
	"github.com/jinterlante1206/ragserve/services/orchestrator/config"
	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
	"github.com/jinterlante1206/ragserve/services/orchestrator/observability"
	"github.com/jinterlante1206/ragserve/services/orchestrator/prompt"
	"github.com/jinterlante1206/ragserve/services/orchestrator/retrieval"
	"github.com/jinterlante1206/ragserve/services/orchestrator/session"
)

// Pipeline wires every component the query operation needs, in the
// dependency order spec.md §2 lays out.
type Pipeline struct {
	RAGs      *config.Registry
	Admission *admission.Controller
	Cache     *cache.Cache
	Retrieval map[string]*retrieval.Layer // one Layer (its own embedder) per rag_id
	Assembler *prompt.Assembler
	Sessions  *session.Store
	LLM       map[string]llm.Client // one Client (typically a *llm.PrimaryFallback) per rag_id
	Telemetry *observability.Telemetry
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Execute runs the full query operation for one request. It never returns
// a bare Go error to an HTTP layer uninterpreted: every failure path is
// either a *datatypes.PipelineError or a populated, non-error response.
func (p *Pipeline) Execute(ctx context.Context, req datatypes.QueryRequest, clientID string) (resp datatypes.QueryResponse, rerr error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	// requests_total increments exactly once per received request
	// regardless of outcome, and latency_ms is recorded once per completed
	// request including error paths, per spec.md §4.1's telemetry contract.
	defer func() {
		resp.LatencyMS = time.Since(start).Milliseconds()
		p.Telemetry.RecordQuery(resp.CacheHit)
		p.Telemetry.RecordLatency(float64(resp.LatencyMS))
		if p.Metrics != nil {
			p.Metrics.ObserveQuery(req.RAGID, resp.CacheHit, time.Since(start).Seconds())
		}
	}()

	// 1. Resolve RAG config.
	ragCfg, ok := p.RAGs.Get(req.RAGID)
	if !ok {
		return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryRAGNotFound, "unknown rag_id: "+req.RAGID, nil)
	}

	// 2. Admission check.
	admitted, err := p.Admission.Allow(ctx, req.RAGID, clientID, ragCfg.RateLimit.RPS, ragCfg.RateLimit.Burst)
	if err != nil {
		logger.Warn("pipeline: admission check error", "rag_id", req.RAGID, "error", err)
	}
	if !admitted {
		p.Telemetry.RecordRateLimited()
		if p.Metrics != nil {
			p.Metrics.ObserveRateLimited(req.RAGID)
		}
		return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryRateLimited, "rate limit exceeded", nil)
	}

	// 3. Assign session_id.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	topK := req.TopK
	if topK <= 0 {
		topK = ragCfg.Retrieval.TopK
	}

	// 4. Cache lookup.
	if entry, hit := p.Cache.Get(ctx, req.RAGID, req.Question, topK); hit {
		return datatypes.QueryResponse{
			RAGID:         req.RAGID,
			Answer:        entry.Answer,
			ContextChunks: entry.ContextChunks,
			CacheHit:      true,
			SessionID:     sessionID,
		}, nil
	}

	// 5. Retrieval.
	retrievalLayer := p.Retrieval[req.RAGID]
	if retrievalLayer == nil {
		return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryEmbeddingMisconfigured, "no retrieval layer configured for rag", nil)
	}
	chunks, err := retrievalLayer.Retrieve(ctx, req.RAGID, req.Question, retrieval.Options{
		TopK:             topK,
		ScoreThreshold:   ragCfg.Retrieval.ScoreThreshold,
		FilterDuplicates: ragCfg.Retrieval.FilterDuplicates,
	})
	if err != nil {
		return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryDependencyDown, "retrieval failed", err)
	}

	var answer string
	var usedLLM bool
	if len(chunks) == 0 {
		answer = ragCfg.Messages.NoContext
	} else {
		// 6. Build messages.
		var history []datatypes.SessionTurn
		if ragCfg.Session.HistoryDepth > 0 {
			history, _ = p.Sessions.GetHistory(ctx, sessionID, ragCfg.Session.HistoryDepth)
		}
		messages, err := p.Assembler.Build(ragCfg.Prompting.SystemTemplatePath, ragCfg.Prompting.UserTemplatePath, req.Question, chunks, history)
		if err != nil {
			return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryInternal, "prompt assembly failed", err)
		}

		// 7. Invoke the LLM.
		client := p.LLM[req.RAGID]
		if client == nil {
			return datatypes.QueryResponse{}, datatypes.NewPipelineError(datatypes.CategoryEmbeddingMisconfigured, "no llm client configured for rag", nil)
		}
		result, err := client.Chat(ctx, messages, llm.GenerationParams{
			MaxTokens:   ragCfg.Prompting.MaxTokens,
			Temperature: ragCfg.Prompting.Temperature,
		})
		if err != nil {
			p.Telemetry.RecordError()
			if p.Metrics != nil {
				p.Metrics.ObserveLLMFailure(req.RAGID)
			}
			logger.Error("pipeline: llm invocation failed", "rag_id", req.RAGID, "error", err)
			answer = ragCfg.Messages.ProviderError
		} else {
			answer = result.Content
			usedLLM = true
			if p.Metrics != nil && result.Model != "" && result.Model != client.Model() {
				p.Metrics.ObserveLLMFallback(req.RAGID)
			}
		}
	}

	// 8. Cache and persist session, only on a usable answer.
	if usedLLM || len(chunks) == 0 {
		entry := datatypes.CacheEntry{Answer: answer, ContextChunks: chunks, CreatedAt: time.Now()}
		if err := p.Cache.Set(ctx, req.RAGID, req.Question, topK, entry, time.Duration(ragCfg.Cache.TTLSeconds)*time.Second); err != nil {
			logger.Warn("pipeline: cache write failed", "rag_id", req.RAGID, "error", err)
		}
	}
	if usedLLM {
		if err := p.Sessions.AppendTurn(ctx, sessionID, req.Question, answer, ragCfg.Session.HistoryDepth, time.Duration(ragCfg.Session.TTLSeconds)*time.Second); err != nil {
			logger.Warn("pipeline: session append failed", "session_id", sessionID, "error", err)
		}
	}

	// 9. Build terminal response.
	return datatypes.QueryResponse{
		RAGID:         req.RAGID,
		Answer:        answer,
		ContextChunks: chunks,
		CacheHit:      false,
		SessionID:     sessionID,
	}, nil
}
