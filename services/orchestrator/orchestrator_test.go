// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// New's startup Redis ping only logs a warning on failure, and with an empty
// RAG registry it never contacts Qdrant, so these tests run without a live
// Redis or Qdrant.
func TestNew_BuildsServiceWithEmptyRAGRegistry(t *testing.T) {
	cfg := Config{
		Port:         8080,
		QdrantURL:    "localhost:6334",
		RedisURL:     "redis://localhost:6379/0",
		RAGConfigDir: t.TempDir(),
	}

	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.NotNil(t, svc.Router())
}

func TestNew_RouterServesHealthEndpoint(t *testing.T) {
	cfg := Config{
		Port:         8080,
		QdrantURL:    "localhost:6334",
		RedisURL:     "redis://localhost:6379/0",
		RAGConfigDir: t.TempDir(),
	}

	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_InvalidRedisURLFailsFast(t *testing.T) {
	cfg := Config{
		Port:         8080,
		QdrantURL:    "localhost:6334",
		RedisURL:     "not-a-valid-redis-url",
		RAGConfigDir: t.TempDir(),
	}

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestService_CloseReleasesResourcesWithoutError(t *testing.T) {
	cfg := Config{
		Port:         8080,
		QdrantURL:    "localhost:6334",
		RedisURL:     "redis://localhost:6379/0",
		RAGConfigDir: t.TempDir(),
	}

	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, svc.Close(context.Background()))
}
