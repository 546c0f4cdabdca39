// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator is the service's composition root: it builds every
// component the query-serving dataplane needs, wires them into a Pipeline,
// and exposes the resulting HTTP server.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jinterlante1206/ragserve/services/kvstore"
	"github.com/jinterlante1206/ragserve/services/llm"
	"github.com/jinterlante1206/ragserve/services/orchestrator/admission"
	"github.com/jinterlante1206/ragserve/services/orchestrator/cache"
	"github.com/jinterlante1206/ragserve/services/orchestrator/config"
	"github.com/jinterlante1206/ragserve/services/orchestrator/embedding"
	"github.com/jinterlante1206/ragserve/services/orchestrator/observability"
	"github.com/jinterlante1206/ragserve/services/orchestrator/pipeline"
	"github.com/jinterlante1206/ragserve/services/orchestrator/prompt"
	"github.com/jinterlante1206/ragserve/services/orchestrator/retrieval"
	"github.com/jinterlante1206/ragserve/services/orchestrator/routes"
	"github.com/jinterlante1206/ragserve/services/orchestrator/session"
	"github.com/jinterlante1206/ragserve/services/vectorstore"
)

// Config is the fully-bound, process-wide configuration the Service needs
// to start.
type Config struct {
	Port             int
	QdrantURL        string
	RedisURL         string
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	LocalEmbedURL    string
	RAGConfigDir     string
	OTelEndpoint     string
	RequestTimeout   time.Duration
}

// Service is the running orchestrator: an HTTP server plus the resources it
// owns and must release on shutdown.
type Service struct {
	cfg           Config
	router        http.Handler
	kv            kvstore.Store
	vectors       vectorstore.Store
	shutdownTrace func(context.Context) error
	logger        *slog.Logger
}

// New builds every component in this order (tracer, RAG config registry,
// KV store, vector store, telemetry and metrics, prompt assembler, session
// store, cache, admission, then per-RAG retrieval with its embedder and LLM
// invoker, then the request pipeline and router), and returns a
// ready-to-run Service.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTrace, err := initTracer(ctx, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init tracer: %w", err)
	}

	ragRegistry, err := config.LoadRAGRegistry(cfg.RAGConfigDir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load rag registry: %w", err)
	}

	kv, err := kvstore.New(kvstore.Config{URL: cfg.RedisURL})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init kv store: %w", err)
	}
	// Degraded-mode startup check: a transient connectivity failure here is
	// logged, not fatal — the pipeline's own components still treat the KV
	// store as required at request time per their individual degradation
	// rules.
	if pingErr := kv.Ping(ctx); pingErr != nil {
		logger.Warn("orchestrator: redis unreachable at startup, continuing in degraded mode", "error", pingErr)
	}

	vectors, err := vectorstore.New(vectorstore.Config{URL: cfg.QdrantURL})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init vector store: %w", err)
	}

	telemetry := observability.New()
	metrics := observability.NewMetrics()

	assembler := prompt.NewAssembler()
	sessionStore := &session.Store{KV: kv}
	responseCache := &cache.Cache{Store: kv}
	admissionController := &admission.Controller{Store: kv, Logger: logger}

	llmClients := make(map[string]llm.Client, len(ragRegistry.RAGs))
	retrievalLayers := make(map[string]*retrieval.Layer, len(ragRegistry.RAGs))
	for ragID, ragCfg := range ragRegistry.RAGs {
		if err := vectors.EnsureCollection(ctx, ragID, uint64(ragCfg.Embedding.Dimension)); err != nil {
			logger.Warn("orchestrator: ensure collection failed at startup", "rag_id", ragID, "error", err)
		}
		retrievalLayers[ragID] = &retrieval.Layer{
			VectorStore: vectors,
			Embedder:    embedding.Select(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, ragCfg.Embedding.Model, cfg.LocalEmbedURL, ragCfg.Embedding.Dimension),
		}

		timeout := time.Duration(ragCfg.LLM.TimeoutS * float64(time.Second))
		var fallbackClient llm.Client
		if ragCfg.LLM.FallbackModel != "" {
			fallbackClient = llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, "", ragCfg.LLM.FallbackModel, timeout)
		}
		llmClients[ragID] = &llm.PrimaryFallback{
			Primary:  llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, "", ragCfg.LLM.PrimaryModel, timeout),
			Fallback: fallbackClient,
			Policy: llm.RetryPolicy{
				MaxRetries:  ragCfg.LLM.MaxRetries,
				BaseBackoff: time.Second,
			},
			Logger: logger,
		}
	}

	pl := &pipeline.Pipeline{
		RAGs:      ragRegistry,
		Admission: admissionController,
		Cache:     responseCache,
		Retrieval: retrievalLayers,
		Assembler: assembler,
		Sessions:  sessionStore,
		LLM:       llmClients,
		Telemetry: telemetry,
		Metrics:   metrics,
		Logger:    logger,
	}

	router := routes.Register(pl, telemetry, logger)

	return &Service{
		cfg:           cfg,
		router:        router,
		kv:            kv,
		vectors:       vectors,
		shutdownTrace: shutdownTrace,
		logger:        logger,
	}, nil
}

// Router exposes the HTTP handler, primarily for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server itself fails, shutting down gracefully in the former case.
func (s *Service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("orchestrator: listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// Close releases every resource the Service owns.
func (s *Service) Close(ctx context.Context) error {
	if s.shutdownTrace != nil {
		_ = s.shutdownTrace(ctx)
	}
	_ = s.vectors.Close()
	return s.kv.Close()
}
