// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/jinterlante1206/ragserve/services/kvstore"
)

// fakeStore is a minimal in-memory kvstore.Store for package tests; it does
// not implement TTL expiry since these tests never depend on it.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.data {
		if matched, _ := filepath.Match(pattern, k); matched {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Expire(ctx context.Context, key string, _ time.Duration) error { return nil }

func (f *fakeStore) RPush(ctx context.Context, key string, value []byte) error { return nil }

func (f *fakeStore) LTrim(ctx context.Context, key string, start, stop int64) error { return nil }

func (f *fakeStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	return nil, nil
}

func (f *fakeStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

var _ kvstore.Store = (*fakeStore)(nil)
