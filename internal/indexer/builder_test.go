package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/corpus"
	"github.com/andar-cloud/ragkit/internal/domain"
)

type mockBatchEmbedder struct {
	batchEmbedFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	calls        int
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	return m.batchEmbedFn(ctx, texts)
}

type fixedDims int

func (d fixedDims) Dimension(context.Context) (int, error) { return int(d), nil }

type mockIndex struct {
	ensureFn func(ctx context.Context, name string, dim int) error
	upsertFn func(ctx context.Context, collection string, records []domain.Record) error

	upserted []domain.Record
}

func (m *mockIndex) EnsureCollection(ctx context.Context, name string, dim int) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, name, dim)
	}
	return nil
}

func (m *mockIndex) Upsert(ctx context.Context, collection string, records []domain.Record) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, records)
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockIndex) Search(context.Context, string, []float32, int, *domain.Filter) ([]domain.Match, error) {
	return nil, nil
}

func (m *mockIndex) Count(context.Context, string) (int, error) { return len(m.upserted), nil }
func (m *mockIndex) Close() error                               { return nil }

// identityEmbeddings returns one fixed unit vector per text.
func identityEmbeddings(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		res.Embeddings[i] = []float32{1, 0}
	}
	return res, nil
}

func newTestBuilder(t *testing.T, root string, embedder *mockBatchEmbedder, index *mockIndex) *Builder {
	t.Helper()
	splitter, err := corpus.NewSplitter(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	return NewBuilder(&Config{
		Loader:     corpus.NewLoader("", zap.NewNop()),
		Splitter:   splitter,
		Embedder:   embedder,
		Dims:       fixedDims(2),
		Index:      index,
		Collection: "docs",
		Root:       root,
		Logger:     zap.NewNop(),
	})
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild_CountsChunks(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "abcdefghijklmnop") // 16 chars, windows of 10 step 8

	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}
	index := &mockIndex{}

	n, err := newTestBuilder(t, dir, embedder, index).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d chunks, expected 2", n)
	}
	if len(index.upserted) != 2 {
		t.Errorf("upserted %d records, expected 2", len(index.upserted))
	}
}

func TestBuild_EmptyCorpusIsZeroNotError(t *testing.T) {
	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}
	index := &mockIndex{}

	n, err := newTestBuilder(t, t.TempDir(), embedder, index).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 0 {
		t.Errorf("indexed %d, expected 0", n)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty corpus, expected 0", embedder.calls)
	}
}

func TestBuild_SingleBatchCall(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "abcdefghijklmnopqrstuvwxyz")
	writeCorpusFile(t, dir, "b.txt", "0123456789012345678901234567890")

	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}
	index := &mockIndex{}

	if _, err := newTestBuilder(t, dir, embedder, index).Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if embedder.calls != 1 {
		t.Errorf("embedder called %d times, expected exactly 1 batch call", embedder.calls)
	}
}

func TestBuild_DeterministicIDsAndPayload(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "abcdefghijklmnop")

	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}
	index := &mockIndex{}

	if _, err := newTestBuilder(t, dir, embedder, index).Build(context.Background()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	path := filepath.Join(dir, "a.txt")
	wantIDs := []string{path + "::0", path + "::1"}
	for i, rec := range index.upserted {
		if rec.ID != wantIDs[i] {
			t.Errorf("record[%d].ID = %q, expected %q", i, rec.ID, wantIDs[i])
		}
		if rec.Payload[domain.FieldSource] != path {
			t.Errorf("record[%d] source = %q, expected %q", i, rec.Payload[domain.FieldSource], path)
		}
	}
	if index.upserted[0].Payload[domain.FieldChunk] != "0" ||
		index.upserted[1].Payload[domain.FieldChunk] != "1" {
		t.Error("chunk ordinals not recorded in payload")
	}
}

func TestBuild_RerunProducesSameIDs(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "abcdefghijklmnop")

	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}

	first := &mockIndex{}
	if _, err := newTestBuilder(t, dir, embedder, first).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := &mockIndex{}
	if _, err := newTestBuilder(t, dir, embedder, second).Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(first.upserted) != len(second.upserted) {
		t.Fatalf("rebuild produced %d records, first %d", len(second.upserted), len(first.upserted))
	}
	for i := range first.upserted {
		if first.upserted[i].ID != second.upserted[i].ID {
			t.Errorf("record[%d] id changed across rebuilds: %q vs %q",
				i, first.upserted[i].ID, second.upserted[i].ID)
		}
	}
}

func TestBuild_EmbedFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "some text")

	wantErr := errors.New("provider down")
	embedder := &mockBatchEmbedder{
		batchEmbedFn: func(context.Context, []string) (domain.BatchEmbeddingResult, error) {
			return domain.BatchEmbeddingResult{}, wantErr
		},
	}
	index := &mockIndex{}

	_, err := newTestBuilder(t, dir, embedder, index).Build(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected embed error to propagate, got %v", err)
	}
	if len(index.upserted) != 0 {
		t.Error("records upserted despite embed failure")
	}
}

func TestBuild_EnsureCollectionUsesProbedDim(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "text")

	embedder := &mockBatchEmbedder{batchEmbedFn: identityEmbeddings}
	var gotDim int
	index := &mockIndex{
		ensureFn: func(_ context.Context, name string, dim int) error {
			if name != "docs" {
				t.Errorf("collection = %q, expected docs", name)
			}
			gotDim = dim
			return nil
		},
	}

	if _, err := newTestBuilder(t, dir, embedder, index).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotDim != 2 {
		t.Errorf("EnsureCollection dim = %d, expected 2", gotDim)
	}
}
