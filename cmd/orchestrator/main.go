// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the ragserve query-serving HTTP server.
//
// # Environment Variables
//
//   - QDRANT_URL: Qdrant gRPC endpoint (default: localhost:6334)
//   - REDIS_URL: Redis connection string (default: redis://localhost:6379/0)
//   - OPENROUTER_API_KEY: API key for LLM chat completions
//   - OPENAI_API_KEY: API key for the external embedding backend; if unset,
//     the local embedding backend is used instead
//   - LOG_LEVEL: slog level name (default: info)
//   - DEFAULT_RAG: logged at startup only; every request must carry a rag_id (optional)
//   - PORT: HTTP listen port (default: 8080)
//   - RAG_CONFIG_DIR: directory of per-RAG YAML configs (default: ./config/rags)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector gRPC endpoint
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jinterlante1206/ragserve/pkg/logging"
	"github.com/jinterlante1206/ragserve/services/orchestrator"
)

func main() {
	appLogger := logging.New(logging.Config{
		Level:   parseLogLevel(getEnv("LOG_LEVEL", "info")),
		Service: "orchestrator",
		JSON:    true,
	})
	defer appLogger.Close()
	logger := appLogger.Slog()

	cfg := orchestrator.Config{
		Port:             getEnvInt("PORT", 8080),
		QdrantURL:        getEnv("QDRANT_URL", "localhost:6334"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		LocalEmbedURL:    getEnv("LOCAL_EMBED_URL", "http://localhost:8081/embed"),
		RAGConfigDir:     getEnv("RAG_CONFIG_DIR", "./config/rags"),
		OTelEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_S", 30)) * time.Second,
	}

	logger.Info("starting ragserve orchestrator",
		"port", cfg.Port,
		"qdrant_url", cfg.QdrantURL,
		"default_rag", os.Getenv("DEFAULT_RAG"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}
	defer svc.Close(context.Background())

	if err := svc.Run(ctx); err != nil {
		logger.Error("orchestrator exited with error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(name string) logging.Level {
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
