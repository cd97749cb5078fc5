// Package vectorindex defines the backend-agnostic vector index contract.
//
// Two implementations exist: sqliteindex (embedded, disk-persisted, in-process
// brute-force cosine) and redisindex (networked, Redis 8 FT.SEARCH). They
// disagree on similarity convention (Redis reports cosine distance, the
// embedded store computes similarity directly) and on filtering syntax; the
// adapters normalize both so callers only ever see cosine similarity in
// [-1, 1] (higher = more relevant) and a single equality-filter semantics.
//
// Backend selection is a startup-time configuration choice injected once in
// main; nothing in the core re-checks it per call.
package vectorindex

import (
	"context"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// Index is the dual-backend vector index contract.
type Index interface {
	// EnsureCollection idempotently provisions a collection for vectors of
	// the given dimension. Calling it for an existing collection with a
	// different dimension returns domain.ErrDimensionMismatch: silently
	// reusing an index built by another embedding model corrupts every
	// subsequent similarity search.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert writes records into a collection. An existing id is replaced in
	// place; fresh ids are inserted.
	Upsert(ctx context.Context, collection string, records []domain.Record) error

	// Search returns up to k nearest records by cosine similarity, ranked
	// descending, optionally restricted to records whose payload matches the
	// equality filter. Fewer than k candidates is not an error: the result is
	// simply shorter, possibly empty.
	Search(ctx context.Context, collection string, vector []float32, k int, filter *domain.Filter) ([]domain.Match, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}
