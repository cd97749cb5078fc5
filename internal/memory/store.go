// Package memory persists per-user conversation facts in a vector collection
// so later questions can recall them semantically.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/vectorindex"
)

// Dimensioner reports the embedding vector dimension.
type Dimensioner interface {
	Dimension(ctx context.Context) (int, error)
}

// Entry is one recalled memory.
type Entry struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store writes and recalls memories. Every operation is scoped to a user id:
// one user's memories are invisible to another's searches.
type Store struct {
	embedder   domain.Embedder
	index      vectorindex.Index
	dims       Dimensioner
	collection string

	mu      sync.Mutex
	ensured bool
}

// NewStore creates a memory store over the given collection. The collection
// is created lazily on first use.
func NewStore(embedder domain.Embedder, index vectorindex.Index, dims Dimensioner, collection string) *Store {
	return &Store{
		embedder:   embedder,
		index:      index,
		dims:       dims,
		collection: collection,
	}
}

// ensure creates the collection once. A failed attempt is retried on the
// next call rather than cached.
func (s *Store) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	dim, err := s.dims.Dimension(ctx)
	if err != nil {
		return err
	}
	if err := s.index.EnsureCollection(ctx, s.collection, dim); err != nil {
		return fmt.Errorf("ensuring collection %s: %w", s.collection, err)
	}

	s.ensured = true
	return nil
}

// Add stores one memory for userID and returns its generated id.
func (s *Store) Add(ctx context.Context, userID, text string) (string, error) {
	if err := s.ensure(ctx); err != nil {
		return "", err
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding memory: %w", err)
	}

	id := "mem-" + uuid.NewString()
	record := domain.Record{
		ID:     id,
		Text:   text,
		Vector: emb.Embedding,
		Payload: map[string]string{
			domain.FieldUserID: userID,
		},
	}
	if err := s.index.Upsert(ctx, s.collection, []domain.Record{record}); err != nil {
		return "", fmt.Errorf("storing memory: %w", err)
	}

	return id, nil
}

// Search recalls up to k of userID's memories closest to query. A user with
// no memories gets an empty result.
func (s *Store) Search(ctx context.Context, userID, query string, k int) ([]Entry, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := &domain.Filter{Field: domain.FieldUserID, Value: userID}
	matches, err := s.index.Search(ctx, s.collection, emb.Embedding, k, filter)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.collection, err)
	}

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, Entry{ID: m.ID, Text: m.Text, Score: m.Score})
	}
	return entries, nil
}
