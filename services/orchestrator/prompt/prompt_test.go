// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
)

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatChunks(t *testing.T) {
	assert.Equal(t, "[No relevant context found]", FormatChunks(nil))

	chunks := []datatypes.Chunk{
		{Source: "docs/intro.md", Text: "FastAPI is a modern web framework.", Score: 0.912345},
	}
	got := FormatChunks(chunks)
	assert.Equal(t, "[Source 1: docs/intro.md (relevance: 0.91)]\nFastAPI is a modern web framework.", got)
}

func TestAssembler_Build(t *testing.T) {
	dir := t.TempDir()
	systemPath := writeTemplate(t, dir, "system.txt", "You are a helpful assistant.")
	userPath := writeTemplate(t, dir, "user.txt", "Context:\n{context}\n\nQuestion: {question}")

	a := NewAssembler()
	chunks := []datatypes.Chunk{{Source: "a", Text: "b", Score: 1.0}}
	history := []datatypes.SessionTurn{{Question: "Hi", Answer: "Hello!"}}

	messages, err := a.Build(systemPath, userPath, "What is FastAPI?", chunks, history)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "Hi", messages[1].Content)
	assert.Equal(t, "assistant", messages[2].Role)
	assert.Equal(t, "Hello!", messages[2].Content)
	assert.Equal(t, "user", messages[3].Role)
	assert.Contains(t, messages[3].Content, "What is FastAPI?")
	assert.Contains(t, messages[3].Content, "[Source 1: a (relevance: 1.00)]")
}

func TestAssembler_CachesTemplateAfterFirstLoad(t *testing.T) {
	dir := t.TempDir()
	systemPath := writeTemplate(t, dir, "system.txt", "v1")
	userPath := writeTemplate(t, dir, "user.txt", "{question}")

	a := NewAssembler()
	messages, err := a.Build(systemPath, userPath, "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", messages[0].Content)

	require.NoError(t, os.WriteFile(systemPath, []byte("v2"), 0o644))

	messages, err = a.Build(systemPath, userPath, "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", messages[0].Content, "template must be served from cache, not re-read from disk")
}
