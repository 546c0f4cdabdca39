// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_InvalidURLReturnsError(t *testing.T) {
	_, err := New(Config{URL: "not-a-valid-redis-url"})
	assert.Error(t, err)
}

func TestNew_ValidURL(t *testing.T) {
	store, err := New(Config{URL: "redis://localhost:6379/0"})
	assert.NoError(t, err)
	assert.NotNil(t, store)
}
