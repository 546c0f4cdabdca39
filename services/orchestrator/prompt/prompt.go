// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt implements the Prompt Assembler: loads a RAG's system and
// user templates, substitutes {question} and {context}, and builds the
// final message list handed to the LLM Invoker.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jinterlante1206/ragserve/services/llm"
	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
)

// templateCache loads template files from disk once and keeps them
// in-process, per spec.md §4.5's "templates are cached in-process on
// first load."
type templateCache struct {
	mu    sync.RWMutex
	files map[string]string
}

func newTemplateCache() *templateCache {
	return &templateCache{files: make(map[string]string)}
}

func (c *templateCache) load(path string) (string, error) {
	c.mu.RLock()
	if content, ok := c.files[path]; ok {
		c.mu.RUnlock()
		return content, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt: read template %q: %w", path, err)
	}
	content := string(data)

	c.mu.Lock()
	c.files[path] = content
	c.mu.Unlock()
	return content, nil
}

// Assembler builds the message list sent to the LLM Invoker.
type Assembler struct {
	templates *templateCache
}

// NewAssembler creates an Assembler with its own template cache.
func NewAssembler() *Assembler {
	return &Assembler{templates: newTemplateCache()}
}

// Build loads systemTemplatePath/userTemplatePath, substitutes the
// question and formatted context into the user template, and returns the
// message list in the order spec.md §4.5 requires: system, then history
// turns (oldest first), then the substituted user message.
func (a *Assembler) Build(systemTemplatePath, userTemplatePath, question string, chunks []datatypes.Chunk, history []datatypes.SessionTurn) ([]llm.Message, error) {
	systemTemplate, err := a.templates.load(systemTemplatePath)
	if err != nil {
		return nil, err
	}
	userTemplate, err := a.templates.load(userTemplatePath)
	if err != nil {
		return nil, err
	}

	replacer := strings.NewReplacer(
		"{question}", question,
		"{context}", FormatChunks(chunks),
	)
	userMessage := replacer.Replace(userTemplate)

	messages := make([]llm.Message, 0, len(history)*2+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemTemplate})
	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.Question},
			llm.Message{Role: "assistant", Content: turn.Answer},
		)
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages, nil
}

// FormatChunks renders retrieved chunks into the "{context}" substitution
// value, one block per chunk: "[Source N: <source> (relevance: <score>)]"
// followed by the chunk text, matching spec.md §4.5 exactly. With no chunks
// it returns the placeholder "[No relevant context found]".
func FormatChunks(chunks []datatypes.Chunk) string {
	if len(chunks) == 0 {
		return "[No relevant context found]"
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d: %s (relevance: %.2f)]\n%s", i+1, c.Source, c.Score, c.Text)
	}
	return b.String()
}
