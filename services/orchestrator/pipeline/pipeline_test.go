// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/ragserve/services/kvstore"
	"github.com/jinterlante1206/ragserve/services/llm"
	"github.com/jinterlante1206/ragserve/services/orchestrator/admission"
	"github.com/jinterlante1206/ragserve/services/orchestrator/cache"
	"github.com/jinterlante1206/ragserve/services/orchestrator/config"
	"github.com/jinterlante1206/ragserve/services/orchestrator/datatypes"
	"github.com/jinterlante1206/ragserve/services/orchestrator/embedding"
	"github.com/jinterlante1206/ragserve/services/orchestrator/observability"
	"github.com/jinterlante1206/ragserve/services/orchestrator/prompt"
	"github.com/jinterlante1206/ragserve/services/orchestrator/retrieval"
	"github.com/jinterlante1206/ragserve/services/orchestrator/session"
	"github.com/jinterlante1206/ragserve/services/vectorstore"
)

// memStore is a minimal in-memory kvstore.Store sufficient for the
// pipeline's cache, admission, and session packages.
type memStore struct {
	mu    sync.Mutex
	kv    map[string][]byte
	lists map[string][][]byte
}

func newMemStore() *memStore {
	return &memStore{kv: map[string][]byte{}, lists: map[string][][]byte{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *memStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) { return 0, nil }

func (m *memStore) Expire(ctx context.Context, key string, _ time.Duration) error { return nil }

func (m *memStore) RPush(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *memStore) LTrim(ctx context.Context, key string, start, stop int64) error { return nil }

func (m *memStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[key], nil
}

// Eval admits every request: pipeline tests exercise admission's own
// package separately with realistic bucket semantics.
func (m *memStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return int64(1), nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) Close() error { return nil }

var _ kvstore.Store = (*memStore)(nil)

type fakeVectorStore struct {
	matches []vectorstore.Match
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, ragID string, dim uint64) error {
	return nil
}
func (f *fakeVectorStore) Upsert(ctx context.Context, ragID string, points []vectorstore.Point) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, ragID string, queryVector []float32, topK uint64) ([]vectorstore.Match, error) {
	return f.matches, nil
}
func (f *fakeVectorStore) Close() error { return nil }

var _ vectorstore.Store = (*fakeVectorStore)(nil)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{0.1, 0.2, 0.3}}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }

var _ embedding.Provider = fakeEmbedder{}

type fakeLLMClient struct {
	content string
	err     error
}

func (f *fakeLLMClient) Model() string { return "fake-model" }
func (f *fakeLLMClient) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (llm.Result, error) {
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Content: f.content, Model: "fake-model"}, nil
}

var _ llm.Client = (*fakeLLMClient)(nil)

func newTestPipeline(t *testing.T, ragID string, matches []vectorstore.Match, llmClient llm.Client) (*Pipeline, *memStore) {
	t.Helper()
	store := newMemStore()
	reg := &config.Registry{RAGs: map[string]*config.RAGConfig{ragID: config.NewRAGConfig(ragID)}}

	dir := t.TempDir()
	systemPath := dir + "/system.txt"
	userPath := dir + "/user.txt"
	require.NoError(t, os.WriteFile(systemPath, []byte("You are helpful."), 0o644))
	require.NoError(t, os.WriteFile(userPath, []byte("Context:\n{context}\nQuestion: {question}"), 0o644))
	reg.RAGs[ragID].Prompting.SystemTemplatePath = systemPath
	reg.RAGs[ragID].Prompting.UserTemplatePath = userPath

	pl := &Pipeline{
		RAGs:      reg,
		Admission: &admission.Controller{Store: store},
		Cache:     &cache.Cache{Store: store},
		Retrieval: map[string]*retrieval.Layer{
			ragID: {VectorStore: &fakeVectorStore{matches: matches}, Embedder: fakeEmbedder{}},
		},
		Assembler: prompt.NewAssembler(),
		Sessions:  &session.Store{KV: store},
		LLM:       map[string]llm.Client{ragID: llmClient},
		Telemetry: observability.New(),
	}
	return pl, store
}

func TestPipeline_RAGNotFound(t *testing.T) {
	pl, _ := newTestPipeline(t, "demo", nil, &fakeLLMClient{content: "answer"})
	_, err := pl.Execute(context.Background(), datatypes.QueryRequest{RAGID: "missing", Question: "hi"}, "client-a")

	var pipeErr *datatypes.PipelineError
	require.True(t, errors.As(err, &pipeErr))
	assert.Equal(t, datatypes.CategoryRAGNotFound, pipeErr.Category)
}

func TestPipeline_NoContextSkipsLLM(t *testing.T) {
	pl, _ := newTestPipeline(t, "demo", nil, &fakeLLMClient{content: "should not be used"})
	resp, err := pl.Execute(context.Background(), datatypes.QueryRequest{RAGID: "demo", Question: "hi"}, "client-a")
	require.NoError(t, err)
	assert.NotEqual(t, "should not be used", resp.Answer)
	assert.Empty(t, resp.ContextChunks)
}

func TestPipeline_CacheHitOnSecondIdenticalRequest(t *testing.T) {
	matches := []vectorstore.Match{{ID: "1", Score: 0.9, Payload: map[string]string{"source": "doc", "text": "content"}}}
	pl, _ := newTestPipeline(t, "demo", matches, &fakeLLMClient{content: "the answer"})
	ctx := context.Background()
	req := datatypes.QueryRequest{RAGID: "demo", Question: "What is FastAPI?"}

	first, err := pl.Execute(ctx, req, "client-a")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "the answer", first.Answer)

	second, err := pl.Execute(ctx, req, "client-a")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Answer, second.Answer)
}

func TestPipeline_RateLimited(t *testing.T) {
	pl, store := newTestPipeline(t, "demo", nil, &fakeLLMClient{content: "answer"})
	_ = store
	pl.RAGs.RAGs["demo"].RateLimit.RPS = 1
	pl.RAGs.RAGs["demo"].RateLimit.Burst = 1
	// Force rejection regardless of the underlying store by swapping in a
	// controller whose Allow always rejects.
	pl.Admission = &admission.Controller{Store: rejectingStore{}}

	_, err := pl.Execute(context.Background(), datatypes.QueryRequest{RAGID: "demo", Question: "hi"}, "client-a")
	var pipeErr *datatypes.PipelineError
	require.True(t, errors.As(err, &pipeErr))
	assert.Equal(t, datatypes.CategoryRateLimited, pipeErr.Category)
}

type rejectingStore struct {
	kvstore.Store
}

func (rejectingStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return int64(0), nil
}

func TestPipeline_LLMFailureDegradesGracefully(t *testing.T) {
	matches := []vectorstore.Match{{ID: "1", Score: 0.9, Payload: map[string]string{"source": "doc", "text": "content"}}}
	pl, _ := newTestPipeline(t, "demo", matches, &fakeLLMClient{err: errors.New("500 internal")})

	resp, err := pl.Execute(context.Background(), datatypes.QueryRequest{RAGID: "demo", Question: "hi"}, "client-a")
	require.NoError(t, err, "llm failure must not escape as a Go error")
	assert.Equal(t, pl.RAGs.RAGs["demo"].Messages.ProviderError, resp.Answer)

	snap := pl.Telemetry.Snapshot()
	assert.Equal(t, int64(1), snap.ErrorsTotal)
}
