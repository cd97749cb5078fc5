// Package indexer turns a corpus directory into a populated vector
// collection.
package indexer

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/corpus"
	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/metrics"
	"github.com/andar-cloud/ragkit/internal/vectorindex"
)

// Dimensioner reports the embedding vector dimension, probing the provider
// when it is not pinned in config.
type Dimensioner interface {
	Dimension(ctx context.Context) (int, error)
}

// Builder loads, chunks, embeds and upserts a corpus into one collection.
type Builder struct {
	loader     *corpus.Loader
	splitter   *corpus.Splitter
	embedder   domain.BatchEmbedder
	dims       Dimensioner
	index      vectorindex.Index
	collection string
	root       string
	logger     *zap.Logger
}

// Config wires a Builder.
type Config struct {
	Loader     *corpus.Loader
	Splitter   *corpus.Splitter
	Embedder   domain.BatchEmbedder
	Dims       Dimensioner
	Index      vectorindex.Index
	Collection string
	Root       string
	Logger     *zap.Logger
}

// NewBuilder creates a Builder from its wired dependencies.
func NewBuilder(cfg *Config) *Builder {
	return &Builder{
		loader:     cfg.Loader,
		splitter:   cfg.Splitter,
		embedder:   cfg.Embedder,
		dims:       cfg.Dims,
		index:      cfg.Index,
		collection: cfg.Collection,
		root:       cfg.Root,
		logger:     cfg.Logger,
	}
}

// Build runs one full ingestion pass and returns the number of chunks
// indexed. Rebuilding over the same corpus overwrites chunk ids in place, so
// the pass is idempotent. An empty corpus yields (0, nil).
func (b *Builder) Build(ctx context.Context) (int, error) {
	dim, err := b.dims.Dimension(ctx)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if err := b.index.EnsureCollection(ctx, b.collection, dim); err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("ensuring collection %s: %w", b.collection, err)
	}

	docs, err := b.loader.Load(ctx, b.root)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		for i, text := range b.splitter.Split(doc.Text) {
			chunks = append(chunks, domain.Chunk{
				Source:  doc.Path,
				Ordinal: i,
				Text:    text,
			})
		}
	}
	if len(chunks) == 0 {
		b.logger.Info("nothing to index", zap.String("root", b.root))
		metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// One batch call for the whole corpus.
	batch, err := b.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		records[i] = domain.Record{
			ID:     c.ID(),
			Text:   c.Text,
			Vector: batch.Embeddings[i],
			Payload: map[string]string{
				domain.FieldSource: c.Source,
				domain.FieldChunk:  strconv.Itoa(c.Ordinal),
			},
		}
	}

	if err := b.index.Upsert(ctx, b.collection, records); err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexedChunksTotal.Add(float64(len(records)))

	b.logger.Info("index build complete",
		zap.String("collection", b.collection),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(records)),
		zap.Int("tokens", batch.TotalTokens),
	)

	return len(records), nil
}
