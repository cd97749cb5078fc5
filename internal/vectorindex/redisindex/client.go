// Package redisindex is the networked vector index backend, speaking to a
// Redis 8+ instance via rueidis: FT.CREATE cosine vector indexes, pipelined
// HSET writes, FT.SEARCH KNN queries. Redis reports cosine *distance*; this
// adapter converts to similarity so callers never see the difference from
// the embedded backend.
package redisindex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/andar-cloud/ragkit/internal/vectorindex"
)

// Compile-time check: Store implements vectorindex.Index.
var _ vectorindex.Index = (*Store)(nil)

// keyPrefix namespaces every ragkit key in the shared Redis instance.
const keyPrefix = "ragkit:"

// Config holds connection parameters for the Redis backend.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements vectorindex.Index on Redis via rueidis.
type Store struct {
	client rueidis.Client
}

// New connects to Redis.
func New(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreForTest wraps an existing client. Used by tests with a mock client.
func NewStoreForTest(client rueidis.Client) *Store {
	return &Store{client: client}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr
// (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// Key layout: ragkit:collection:{name} (metadata hash),
// ragkit:{name}:idx (FT index), ragkit:{name}:{record id} (record hashes).

func metaKey(collection string) string {
	return keyPrefix + "collection:" + collection
}

func indexName(collection string) string {
	return keyPrefix + collection + ":idx"
}

func collectionPrefix(collection string) string {
	return keyPrefix + collection + ":"
}

func recordKey(collection, id string) string {
	return collectionPrefix(collection) + id
}
