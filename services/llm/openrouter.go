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
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openRouterClient implements Client against an OpenRouter-compatible
// chat-completion endpoint via go-openai, bound to a single model and
// per-call timeout.
type openRouterClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenRouterClient creates a Client for a single model against an
// OpenRouter-compatible base URL. timeout bounds every Chat call
// (spec.md §4.6's timeout_s).
func NewOpenRouterClient(apiKey, baseURL, model string, timeout time.Duration) Client {
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &openRouterClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (c *openRouterClient) Model() string {
	return c.model
}

func (c *openRouterClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("llm: %s: chat completion failed: %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("llm: %s: no choices returned", c.model)
	}

	return Result{
		Content: resp.Choices[0].Message.Content,
		Model:   c.model,
	}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

var _ Client = (*openRouterClient)(nil)
