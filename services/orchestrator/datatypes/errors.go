// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "fmt"

// Category classifies a pipeline failure for the purpose of choosing an HTTP
// status code, matching the spec's error taxonomy table.
type Category int

const (
	// CategoryValidation maps to 400.
	CategoryValidation Category = iota
	// CategoryRAGNotFound maps to 404.
	CategoryRAGNotFound
	// CategoryRateLimited maps to 429.
	CategoryRateLimited
	// CategoryNoContext maps to 200 with an empty context_chunks list.
	CategoryNoContext
	// CategoryLLMUnavailable maps to 200 with a degraded answer.
	CategoryLLMUnavailable
	// CategoryEmbeddingMisconfigured maps to 500.
	CategoryEmbeddingMisconfigured
	// CategoryDependencyDown maps to 503.
	CategoryDependencyDown
	// CategoryTimeout maps to 504.
	CategoryTimeout
	// CategoryInternal maps to 500.
	CategoryInternal
)

// categoryNames gives each Category a machine-readable code, matching the
// spec's error taxonomy table naming exactly (e.g. "RAGNotFound").
var categoryNames = map[Category]string{
	CategoryValidation:             "ValidationError",
	CategoryRAGNotFound:            "RAGNotFound",
	CategoryRateLimited:            "RateLimited",
	CategoryNoContext:              "NoContext",
	CategoryLLMUnavailable:         "LLMUnavailable",
	CategoryEmbeddingMisconfigured: "EmbeddingMisconfigured",
	CategoryDependencyDown:         "DependencyDown",
	CategoryTimeout:                "Timeout",
	CategoryInternal:               "Internal",
}

// String returns the category's machine-readable code, used as the "code"
// field of an error response.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Internal"
}

// PipelineError is a classified failure raised by any dataplane component.
// The Request Pipeline inspects Category to choose the response's HTTP
// status; Err carries the underlying cause for logging.
type PipelineError struct {
	Category Category
	Message  string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError constructs a PipelineError, wrapping cause if non-nil.
func NewPipelineError(category Category, message string, cause error) *PipelineError {
	return &PipelineError{Category: category, Message: message, Err: cause}
}
