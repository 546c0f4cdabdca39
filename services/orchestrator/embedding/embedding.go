// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding provides the Embedding Provider abstraction: an
// external (OpenAI-compatible) backend and a local HTTP backend, one of
// which is selected per RAG at startup per spec.md §4.8's preference order.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider embeds one or more texts into fixed-dimension vectors.
type Provider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the vector size this provider was constructed with
	// (the RAG's configured dimension). Nothing compares it against the
	// vectors the backend returns or against the collection, so a mismatch
	// is not detected at boot.
	Dimension() int
}

// externalProvider embeds via an OpenAI-compatible /embeddings endpoint,
// batching every text into a single request.
type externalProvider struct {
	client *openai.Client
	model  string
	dim    int
}

// NewExternalProvider builds a Provider backed by go-openai's
// CreateEmbeddings, the preferred backend per spec.md §4.8.
func NewExternalProvider(apiKey, baseURL, model string, dim int) Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &externalProvider{client: openai.NewClientWithConfig(cfg), model: model, dim: dim}
}

func (p *externalProvider) Dimension() int { return p.dim }

func (p *externalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: external request failed: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// localRequest/localResponse mirror a minimal local embedding server's
// wire format: one text in, one vector out, batched.
type localRequest struct {
	Texts []string `json:"texts"`
}

type localResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// localProvider embeds via a plain HTTP POST to a self-hosted model
// server, used as a fallback when no external API key is configured.
type localProvider struct {
	httpClient *http.Client
	url        string
	dim        int
}

// NewLocalProvider builds a Provider backed by a local HTTP embedding
// service, with a 30s timeout matching the teacher's local-backend client.
func NewLocalProvider(url string, dim int) Provider {
	return &localProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		dim:        dim,
	}
}

func (p *localProvider) Dimension() int { return p.dim }

func (p *localProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(localRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: local request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: local server status %d: %s", resp.StatusCode, string(data))
	}

	var out localResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode local response: %w", err)
	}
	return out.Embeddings, nil
}

// Select chooses the external provider when an API key is configured,
// falling back to the local provider otherwise, per spec.md §4.8's
// "external preferred, local fallback" selection policy.
func Select(openAIAPIKey, openAIBaseURL, model string, localURL string, dim int) Provider {
	if openAIAPIKey != "" {
		return NewExternalProvider(openAIAPIKey, openAIBaseURL, model, dim)
	}
	return NewLocalProvider(localURL, dim)
}

var (
	_ Provider = (*externalProvider)(nil)
	_ Provider = (*localProvider)(nil)
)
