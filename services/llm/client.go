// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the chat-completion client used by the LLM Invoker:
// a small interface over an OpenRouter-compatible backend, plus a
// primary/fallback wrapper implementing the retry and failover policy.
//
// # Architecture
//
// The package follows the interface-first pattern the rest of the service
// uses: Client defines the contract, openRouterClient implements it against
// a single model, and PrimaryFallback composes two Clients into the
// retry+fallback behavior the Request Pipeline actually calls.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package llm

import "context"

// Message is one entry in a chat-completion conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// GenerationParams holds the parameters that shape a single completion
// call. All fields are required by the spec's primary-call contract
// (model, messages, max_tokens, temperature); Model is supplied separately
// per Client since a Client is already bound to one model.
type GenerationParams struct {
	MaxTokens   int
	Temperature float32
}

// Result is the outcome of a successful completion, including which model
// produced it so the Request Pipeline can surface that in the response
// (spec.md §8 scenario 4: "metadata, if surfaced, indicates fallback used").
type Result struct {
	Content string
	Model   string
}

// Client is the minimal surface the LLM Invoker needs from a single
// chat-completion backend.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; multiple goroutines may
// call Chat simultaneously.
type Client interface {
	// Chat sends messages to the backend and returns the first choice's
	// message content. It must respect ctx cancellation and the backend's
	// own configured timeout.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (Result, error)

	// Model identifies the model this client is bound to, used for
	// telemetry and the Result.Model field.
	Model() string
}
