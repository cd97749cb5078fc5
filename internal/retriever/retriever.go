// Package retriever answers "which indexed chunks are closest to this query".
package retriever

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/metrics"
	"github.com/andar-cloud/ragkit/internal/vectorindex"
)

// Result is one retrieved chunk with provenance.
type Result struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Chunk  int     `json:"chunk"`
}

// Retriever embeds a query and searches one collection.
type Retriever struct {
	embedder   domain.Embedder
	index      vectorindex.Index
	collection string
}

// New creates a Retriever over the given collection.
func New(embedder domain.Embedder, index vectorindex.Index, collection string) *Retriever {
	return &Retriever{embedder: embedder, index: index, collection: collection}
}

// Search returns up to k chunks ordered by descending similarity. A search
// before any ingestion returns an empty result, not an error.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(r.collection, "error").Inc()
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Search(ctx, r.collection, emb.Embedding, k, nil)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(r.collection, "error").Inc()
		return nil, fmt.Errorf("searching %s: %w", r.collection, err)
	}
	metrics.SearchesTotal.WithLabelValues(r.collection, "success").Inc()

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, fromMatch(m))
	}
	return results, nil
}

// fromMatch converts an index match, defaulting provenance when a record was
// written without it.
func fromMatch(m domain.Match) Result {
	res := Result{
		Text:   m.Text,
		Score:  m.Score,
		Source: domain.SourceUnknown,
	}
	if s, ok := m.Payload[domain.FieldSource]; ok && s != "" {
		res.Source = s
	}
	if c, ok := m.Payload[domain.FieldChunk]; ok {
		if n, err := strconv.Atoi(c); err == nil {
			res.Chunk = n
		}
	}
	return res
}
