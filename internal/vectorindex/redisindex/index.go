package redisindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// EnsureCollection provisions the metadata hash and the FT index for a
// collection. Idempotent: an existing collection with the same dimension is a
// no-op; a different dimension is domain.ErrDimensionMismatch.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive, got %d", name, dim)
	}

	meta, err := s.do(ctx, s.b().Hgetall().Key(metaKey(name)).Build()).AsStrMap()
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w", name, err)
	}

	if stored, ok := meta["dim"]; ok {
		existing, err := strconv.Atoi(stored)
		if err != nil {
			return fmt.Errorf("collection %s has corrupt dim %q", name, stored)
		}
		if existing != dim {
			return fmt.Errorf("collection %s has dim %d, requested %d: %w",
				name, existing, dim, domain.ErrDimensionMismatch)
		}
		return nil
	}

	hset := s.b().Hset().Key(metaKey(name)).
		FieldValue().FieldValue("dim", strconv.Itoa(dim)).
		Build()
	if err := s.do(ctx, hset).Error(); err != nil {
		return fmt.Errorf("hset collection %s: %w", name, err)
	}

	create := s.b().Arbitrary("FT.CREATE").Args(indexCreateArgs(name, dim)...).Build()
	if err := s.do(ctx, create).Error(); err != nil {
		// A concurrent EnsureCollection may have won the race; that is fine.
		if isRedisErr(err, "index already exists") {
			return nil
		}
		// Roll back the metadata hash so a later call retries FT.CREATE.
		cleanupErr := s.do(ctx, s.b().Del().Key(metaKey(name)).Build()).Error()
		return errors.Join(fmt.Errorf("ft.create %s: %w", name, err), cleanupErr)
	}

	return nil
}

// indexCreateArgs builds the FT.CREATE arguments for a collection index.
// Records are hashes with a FLAT cosine vector field plus the payload fields
// the core filters and attributes on: source/user_id as TAG, chunk NUMERIC.
func indexCreateArgs(collection string, dim int) []string {
	return []string{
		indexName(collection),
		"ON", "HASH",
		"PREFIX", "1", collectionPrefix(collection),
		"SCHEMA",
		"vector", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		domain.FieldSource, "TAG",
		domain.FieldUserID, "TAG",
		domain.FieldChunk, "NUMERIC",
	}
}
