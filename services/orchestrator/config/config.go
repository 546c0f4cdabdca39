// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config is the service's composition root: it binds environment
// variables and per-RAG YAML files into already-validated typed config,
// consumed read-only by every other component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds process-wide settings sourced from environment
// variables.
type ServerConfig struct {
	QdrantURL        string
	RedisURL         string
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	LogLevel         string
	DefaultRAG       string
	Port             int
	RequestTimeout   time.Duration
}

// RAGConfig holds the per-tenant configuration loaded from a RAG's YAML
// file, matching spec.md §3's RAG attribute list.
type RAGConfig struct {
	RAGID string `yaml:"-"`

	Embedding struct {
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`

	Retrieval struct {
		TopK             int     `yaml:"top_k"`
		MaxTopK          int     `yaml:"max_top_k"`
		ScoreThreshold   float32 `yaml:"score_threshold"`
		FilterDuplicates bool    `yaml:"filter_duplicates"`
	} `yaml:"retrieval"`

	Prompting struct {
		SystemTemplatePath string  `yaml:"system_template_path"`
		UserTemplatePath   string  `yaml:"user_template_path"`
		MaxTokens          int     `yaml:"max_tokens"`
		Temperature        float32 `yaml:"temperature"`
	} `yaml:"prompting"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst float64 `yaml:"burst"`
	} `yaml:"rate_limit"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Session struct {
		TTLSeconds   int `yaml:"ttl_seconds"`
		HistoryDepth int `yaml:"history_depth"`
	} `yaml:"session"`

	LLM struct {
		PrimaryModel  string  `yaml:"primary_model"`
		FallbackModel string  `yaml:"fallback_model"`
		MaxRetries    int     `yaml:"max_retries"`
		TimeoutS      float64 `yaml:"timeout_s"`
	} `yaml:"llm"`

	Messages struct {
		NoContext     string `yaml:"no_context"`
		ProviderError string `yaml:"provider_error"`
	} `yaml:"messages"`
}

// UnmarshalYAML applies field defaults after decoding, the same
// decode-then-default shape as the teacher's own config unmarshalers.
func (c *RAGConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain RAGConfig
	if err := value.Decode((*plain)(c)); err != nil {
		return fmt.Errorf("config: decode rag config: %w", err)
	}
	c.applyDefaults()
	return nil
}

func (c *RAGConfig) applyDefaults() {
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MaxTopK <= 0 {
		c.Retrieval.MaxTopK = 20
	}
	if c.Prompting.MaxTokens <= 0 {
		c.Prompting.MaxTokens = 512
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 1
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = c.RateLimit.RPS
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 60
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = 1800
	}
	if c.Session.HistoryDepth <= 0 {
		c.Session.HistoryDepth = 10
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}
	if c.LLM.TimeoutS <= 0 {
		c.LLM.TimeoutS = 30
	}
	if c.Messages.NoContext == "" {
		c.Messages.NoContext = "I don't have enough context to answer that question."
	}
	if c.Messages.ProviderError == "" {
		c.Messages.ProviderError = "The assistant is temporarily unavailable. Please try again shortly."
	}
}

// Registry holds every loaded RAG's configuration, keyed by rag_id.
type Registry struct {
	RAGs map[string]*RAGConfig
}

// NewRAGConfig builds a RAGConfig for ragID with every field defaulted,
// ready for callers (such as tests) that construct a RAG's config without a
// YAML file.
func NewRAGConfig(ragID string) *RAGConfig {
	cfg := &RAGConfig{RAGID: ragID}
	cfg.applyDefaults()
	return cfg
}

// Get returns the named RAG's config, or false if it is unknown — the
// Request Pipeline maps a miss to the RAGNotFound category (404).
func (r *Registry) Get(ragID string) (*RAGConfig, bool) {
	cfg, ok := r.RAGs[ragID]
	return cfg, ok
}

// LoadServerConfig binds process-wide settings from the environment. Env
// values always win; there is no file-based override for these.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		QdrantURL:        getEnv("QDRANT_URL", "localhost:6334"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DefaultRAG:       os.Getenv("DEFAULT_RAG"),
		Port:             getEnvInt("PORT", 8080),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_S", 30)) * time.Second,
	}
}

// LoadRAGRegistry reads a global defaults file and one file per RAG from
// dir. Each RAG file is named "<rag_id>.yaml"; its values are merged over
// the global defaults file (global.yaml), matching spec.md §6's "a global
// file for defaults" note. Missing dir is not an error: the registry is then
// empty and every rag_id is unknown.
func LoadRAGRegistry(dir string) (*Registry, error) {
	reg := &Registry{RAGs: map[string]*RAGConfig{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("config: read rag config dir %q: %w", dir, err)
	}

	var defaults RAGConfig
	if data, err := os.ReadFile(filepath.Join(dir, "global.yaml")); err == nil {
		if err := yaml.Unmarshal(data, &defaults); err != nil {
			return nil, fmt.Errorf("config: parse global.yaml: %w", err)
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "global.yaml" || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		ragID := entry.Name()[:len(entry.Name())-len(filepath.Ext(entry.Name()))]

		cfg := defaults
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", entry.Name(), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", entry.Name(), err)
		}
		cfg.RAGID = ragID
		reg.RAGs[ragID] = &cfg
	}

	return reg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}
