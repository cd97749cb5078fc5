package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound signals a missing vector index collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch signals that a collection was created with a
	// different vector dimension than the one requested. Changing embedding
	// models without rebuilding the index from scratch triggers this.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailed signals that the LLM transport gave up after retries.
	ErrGenerationFailed = errors.New("generation failed")
)
