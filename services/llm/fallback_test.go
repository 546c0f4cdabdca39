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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	model   string
	results []Result
	errs    []error
	calls   int
}

func (s *stubClient) Model() string { return s.model }

func (s *stubClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (Result, error) {
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	if s.errs[i] != nil {
		return Result{}, s.errs[i]
	}
	return s.results[i], nil
}

func TestPrimaryFallback_PrimarySucceedsImmediately(t *testing.T) {
	primary := &stubClient{model: "primary", results: []Result{{Content: "hi", Model: "primary"}}, errs: []error{nil}}
	pf := &PrimaryFallback{Primary: primary, Policy: RetryPolicy{MaxRetries: 2, BaseBackoff: time.Millisecond}}

	result, err := pf.Chat(context.Background(), nil, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content)
	assert.Equal(t, 1, primary.calls)
}

func TestPrimaryFallback_RetriesThenFallsBack(t *testing.T) {
	primary := &stubClient{
		model: "primary",
		errs:  []error{errors.New("429 too many requests"), errors.New("429 too many requests"), errors.New("429 too many requests")},
	}
	fallback := &stubClient{model: "fallback", results: []Result{{Content: "fallback answer", Model: "fallback"}}, errs: []error{nil}}

	pf := &PrimaryFallback{
		Primary:  primary,
		Fallback: fallback,
		Policy:   RetryPolicy{MaxRetries: 2, BaseBackoff: time.Millisecond},
	}

	result, err := pf.Chat(context.Background(), nil, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", result.Content)
	assert.Equal(t, 3, primary.calls, "max_retries=2 means 3 total attempts")
	assert.Equal(t, 1, fallback.calls)
}

func TestPrimaryFallback_NonRetryable4xxSkipsRetries(t *testing.T) {
	primary := &stubClient{model: "primary", errs: []error{errors.New("400 bad request")}}
	fallback := &stubClient{model: "fallback", results: []Result{{Content: "fallback", Model: "fallback"}}, errs: []error{nil}}

	pf := &PrimaryFallback{
		Primary:  primary,
		Fallback: fallback,
		Policy:   RetryPolicy{MaxRetries: 5, BaseBackoff: time.Millisecond},
	}

	_, err := pf.Chat(context.Background(), nil, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls, "non-retryable 4xx must not be retried")
}

func TestPrimaryFallback_BothExhaustedReturnsErrUnavailable(t *testing.T) {
	primary := &stubClient{model: "primary", errs: []error{errors.New("500 internal")}}
	fallback := &stubClient{model: "fallback", errs: []error{errors.New("500 internal")}}

	pf := &PrimaryFallback{
		Primary:  primary,
		Fallback: fallback,
		Policy:   RetryPolicy{MaxRetries: 0, BaseBackoff: time.Millisecond},
	}

	_, err := pf.Chat(context.Background(), nil, GenerationParams{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPrimaryFallback_NoFallbackConfiguredReturnsErrUnavailable(t *testing.T) {
	primary := &stubClient{model: "primary", errs: []error{errors.New("500 internal")}}
	pf := &PrimaryFallback{Primary: primary, Policy: RetryPolicy{MaxRetries: 0, BaseBackoff: time.Millisecond}}

	_, err := pf.Chat(context.Background(), nil, GenerationParams{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
