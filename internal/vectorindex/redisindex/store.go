package redisindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// Upsert writes records as hashes in a single pipelined round-trip. HSET with
// an existing key replaces its fields, so deterministic ids overwrite in place.
func (s *Store) Upsert(ctx context.Context, collection string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := s.collectionDim(ctx, collection)
	if err != nil {
		return err
	}

	cmds := make([]rueidis.Completed, len(records))
	for i, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("record %s has %d dimensions, collection %s wants %d: %w",
				rec.ID, len(rec.Vector), collection, dim, domain.ErrDimensionMismatch)
		}
		cmd := s.b().Hset().Key(recordKey(collection, rec.ID)).FieldValue().
			FieldValue(fieldContent, rec.Text).
			FieldValue(fieldVector, vectorToBytes(rec.Vector))
		for k, v := range rec.Payload {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("hset %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// Count returns the number of records via FT.SEARCH with LIMIT 0 0.
// A collection that was never provisioned counts as empty.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(indexName(collection), "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndexErr(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("ft.search count %s: %w", collection, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (s *Store) collectionDim(ctx context.Context, collection string) (int, error) {
	meta, err := s.do(ctx, s.b().Hgetall().Key(metaKey(collection)).Build()).AsStrMap()
	if err != nil {
		return 0, fmt.Errorf("hgetall collection %s: %w", collection, err)
	}
	stored, ok := meta["dim"]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}
	dim, err := strconv.Atoi(stored)
	if err != nil {
		return 0, fmt.Errorf("collection %s has corrupt dim %q", collection, stored)
	}
	return dim, nil
}

// isUnknownIndexErr matches the two spellings Redis uses for a missing index.
func isUnknownIndexErr(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}
