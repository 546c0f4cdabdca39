// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kvstore wraps the shared Redis key-value backend used for the
// response cache, the admission controller's token buckets, and session
// history. It is the single point of contact with go-redis; every other
// orchestrator package depends on the Store interface, not on go-redis
// directly.
//
// # Key prefixes
//
// Reserved prefixes (see spec's External Interfaces section):
//
//	cache:<rag_id>:<hash>           response cache entries
//	session:<session_id>            ordered list of conversation turns
//	ratelimit:<rag_id>:<client>      token-bucket state
//
// ingest:queue, job:<job_id>:status and job:<job_id>:meta are owned by the
// (out of scope) ingestion worker and never touched here.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the narrow surface the orchestrator needs from the shared KV
// backend: byte get/set with TTL, list operations for session history, and
// Lua script evaluation for the admission controller's atomic bucket
// mutation. It exists so every consumer depends on an interface rather than
// *redis.Client directly, and so tests can supply a fake.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL. A zero TTL means no
	// expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every key matching a glob pattern (e.g.
	// "cache:demo:*"). Used for bulk cache invalidation by RAG prefix.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	// Expire resets the TTL on key without touching its value. Used for
	// the session store's sliding-TTL renewal on append.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// RPush appends value to the tail of the list at key.
	RPush(ctx context.Context, key string, value []byte) error

	// LTrim keeps only the elements in [start, stop] of the list at key,
	// discarding the rest. Negative indices count from the tail.
	LTrim(ctx context.Context, key string, start, stop int64) error

	// LRange returns elements [start, stop] of the list at key.
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// Eval runs a Lua script against the given keys and args, returning
	// its raw result. Used by the admission controller for an atomic
	// token-bucket read-modify-write.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Ping verifies connectivity. Used only for the startup degraded-mode
	// check; request-time code must never block on it.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// Config configures the Redis-backed Store.
type Config struct {
	// URL is a redis:// connection string, e.g. "redis://localhost:6379/0".
	URL string

	// DialTimeout bounds the initial connection attempt. Default 5s.
	DialTimeout time.Duration

	// PoolSize bounds the number of pooled connections. Default: go-redis's
	// own default (10 * GOMAXPROCS).
	PoolSize int
}

type redisStore struct {
	client *redis.Client
}

// New creates a Store backed by Redis. It does not ping the server; callers
// that want a startup connectivity check should call Ping explicitly and
// treat failure as non-fatal (spec's degraded-mode boot behavior).
func New(cfg Config) (Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("kvstore: invalid REDIS_URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return &redisStore{client: redis.NewClient(opts)}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: set %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// DeleteByPattern scans for matching keys rather than using KEYS, so it
// does not block the server on a large keyspace.
func (s *redisStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, pattern, 256).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		deleted += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 256 {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("kvstore: delete by pattern %q: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("kvstore: scan pattern %q: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("kvstore: delete by pattern %q: %w", pattern, err)
	}
	return deleted, nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: expire %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) RPush(ctx context.Context, key string, value []byte) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("kvstore: rpush %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := s.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("kvstore: ltrim %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: lrange %q: %w", key, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *redisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	res, err := redis.NewScript(script).Run(ctx, s.client, keys, args...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("kvstore: eval script: %w", err)
	}
	return res, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*redisStore)(nil)
