// Package sqliteindex is the embedded vector index backend: a single SQLite
// file holding collections and their records, with brute-force cosine
// scoring computed in-process. Suitable for corpora that fit comfortably in
// memory during a search scan; the networked backend covers the rest.
package sqliteindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/vectorindex"
)

// Compile-time check: Store implements vectorindex.Index.
var _ vectorindex.Index = (*Store)(nil)

// Store is a disk-persisted vector index backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the index database at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL mode: concurrent readers may observe a collection mid-build.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			dim        INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    TEXT NOT NULL,
			payload    TEXT NOT NULL DEFAULT '{}',
			embedding  BLOB NOT NULL,
			PRIMARY KEY (collection, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureCollection creates the collection if absent. An existing collection
// with a different dimension is a hard error, not a silent reuse.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive, got %d", name, dim)
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT dim FROM collections WHERE name = ?", name).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO collections (name, dim, created_at) VALUES (?, ?, ?)",
			name, dim, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading collection %s: %w", name, err)
	case existing != dim:
		return fmt.Errorf("collection %s has dim %d, requested %d: %w",
			name, existing, dim, domain.ErrDimensionMismatch)
	default:
		return nil
	}
}

// Upsert writes records in one transaction. Existing ids are replaced.
func (s *Store) Upsert(ctx context.Context, collection string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := s.collectionDim(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, content, payload, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			content   = excluded.content,
			payload   = excluded.payload,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("record %s has %d dimensions, collection %s wants %d: %w",
				rec.ID, len(rec.Vector), collection, dim, domain.ErrDimensionMismatch)
		}
		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshalling payload for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, rec.ID, rec.Text,
			string(payloadJSON), vectorToBytes(rec.Vector)); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search scans the collection, scores every candidate by dot product (vectors
// are unit length, so this is cosine similarity) and returns the top k.
// A collection that does not exist yet yields an empty result, not an error.
func (s *Store) Search(
	ctx context.Context, collection string, vector []float32, k int, filter *domain.Filter,
) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	query := "SELECT id, content, payload, embedding FROM records WHERE collection = ?"
	args := []any{collection}
	if filter != nil {
		// Filter fields are fixed payload keys chosen by the core, never
		// caller input; only the value is parameterized.
		query += fmt.Sprintf(" AND json_extract(payload, '$.%s') = ?", filter.Field)
		args = append(args, filter.Value)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			id, content, payloadJSON string
			blob                     []byte
		)
		if err := rows.Scan(&id, &content, &payloadJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		candidate := bytesToVector(blob)
		var payload map[string]string
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshalling payload for %s: %w", id, err)
		}

		matches = append(matches, domain.Match{
			ID:      id,
			Text:    content,
			Score:   dot(candidate, vector),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (s *Store) collectionDim(ctx context.Context, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dim FROM collections WHERE name = ?", name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("collection %s: %w", name, domain.ErrCollectionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection %s: %w", name, err)
	}
	return dim, nil
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
