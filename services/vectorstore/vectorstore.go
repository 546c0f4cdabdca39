// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore wraps the shared Qdrant vector database. One
// collection exists per RAG, named deterministically from its rag_id, and
// is never shared across tenants.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Point is a single vector + payload to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Match is a single search result.
type Match struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// Store is the surface the retrieval layer needs from the vector database:
// collection lifecycle, upsert, and cosine top-k search. Collections are
// named "<rag_id>_collection" per the spec's external vector-store
// contract.
type Store interface {
	// EnsureCollection creates the RAG's collection if it does not already
	// exist, using cosine similarity and the given dimension. Calling it
	// for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, ragID string, dim uint64) error

	// Upsert writes or replaces points in the RAG's collection.
	Upsert(ctx context.Context, ragID string, points []Point) error

	// Search returns the top-k nearest points to queryVector by cosine
	// similarity, descending by score.
	Search(ctx context.Context, ragID string, queryVector []float32, topK uint64) ([]Match, error)

	// Close releases the underlying gRPC connection.
	Close() error
}

// CollectionName derives the deterministic per-RAG collection name from its
// rag_id, matching the spec's "<rag_id>_collection" naming rule.
func CollectionName(ragID string) string {
	return ragID + "_collection"
}

type qdrantStore struct {
	client *qdrant.Client
}

// Config configures the Qdrant-backed Store.
type Config struct {
	// URL is a host:port pair for the Qdrant gRPC endpoint, e.g.
	// "localhost:6334". A "qdrant://" or "http(s)://" scheme prefix, if
	// present, is stripped.
	URL string

	// APIKey authenticates against a managed Qdrant instance. May be empty
	// for a local/unauthenticated deployment.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool
}

// New creates a Store backed by Qdrant. It does not verify connectivity;
// callers wanting a startup check should call a lightweight operation (e.g.
// listing collections) themselves and treat failure as non-fatal, per the
// degraded-mode boot behavior.
func New(cfg Config) (Store, error) {
	host, port := splitHostPort(cfg.URL)
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect to qdrant: %w", err)
	}
	return &qdrantStore{client: client}, nil
}

func (s *qdrantStore) EnsureCollection(ctx context.Context, ragID string, dim uint64) error {
	name := CollectionName(ragID)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %q: %w", name, err)
	}
	return nil
}

func (s *qdrantStore) Upsert(ctx context.Context, ragID string, points []Point) error {
	name := CollectionName(ragID)

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = qdrant.NewValueString(v)
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert into %q: %w", name, err)
	}
	return nil
}

func (s *qdrantStore) Search(ctx context.Context, ragID string, queryVector []float32, topK uint64) ([]Match, error) {
	name := CollectionName(ragID)

	withPayload := qdrant.NewWithPayloadInclude("source", "text")
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(topK),
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %q: %w", name, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		payload := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			payload[k] = v.GetStringValue()
		}
		matches = append(matches, Match{
			ID:      pointIDString(r.Id),
			Score:   r.Score,
			Payload: payload,
		})
	}
	return matches, nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// splitHostPort separates a "host:port" pair, stripping any scheme prefix
// Qdrant URLs are sometimes given with (qdrant://, http://, https://).
func splitHostPort(url string) (string, int) {
	host := url
	for _, prefix := range []string{"qdrant://", "https://", "http://"} {
		if len(host) > len(prefix) && host[:len(prefix)] == prefix {
			host = host[len(prefix):]
			break
		}
	}
	port := 6334
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			var parsedPort int
			if _, err := fmt.Sscanf(host[i+1:], "%d", &parsedPort); err == nil {
				port = parsedPort
			}
			host = host[:i]
			break
		}
	}
	return host, port
}

var _ Store = (*qdrantStore)(nil)
