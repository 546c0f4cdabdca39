// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// vector-store collection names and key-value store key prefixes. Using
// these validators prevents a malformed or adversarial rag_id from reaching
// a collection-naming or cache-key construction call.
package validation

import (
	"fmt"
	"regexp"
)

// ragIDPattern matches a valid RAG tenant identifier: spec.md §3 requires
// `[A-Za-z0-9_]+`.
var ragIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateRAGID validates a rag_id against the spec's required format.
//
// Example:
//
//	if err := validation.ValidateRAGID(ragID); err != nil {
//	    return nil, fmt.Errorf("invalid rag_id: %w", err)
//	}
func ValidateRAGID(ragID string) error {
	if ragID == "" {
		return fmt.Errorf("rag_id cannot be empty")
	}
	if !ragIDPattern.MatchString(ragID) {
		return fmt.Errorf("invalid rag_id format: %q (must match [A-Za-z0-9_]+)", ragID)
	}
	return nil
}
