package domain

import "fmt"

// SourceUnknown is the sentinel source for records whose payload lacks one.
const SourceUnknown = "unknown"

// Payload field names shared between the indexer, retriever and memory store.
const (
	FieldSource = "source"
	FieldChunk  = "chunk"
	FieldUserID = "user_id"
)

// Document is a filesystem-backed text source produced by the corpus loader.
// Immutable once read; never persisted independently of its chunks.
type Document struct {
	Path string
	Text string
}

// Chunk is a bounded, overlapping substring of a document used as the unit
// of retrieval.
type Chunk struct {
	Source  string // owning document path
	Ordinal int    // position within the document
	Text    string
}

// ID returns the deterministic chunk identifier. Re-ingesting the same file
// produces the same ids, so upserts overwrite in place.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s::%d", c.Source, c.Ordinal)
}

// Record is an indexed (text, vector, payload) triple stored in a vector
// index collection.
type Record struct {
	ID      string
	Text    string
	Vector  []float32
	Payload map[string]string
}

// Match is a single search hit: chunk or memory text with its cosine
// similarity score. Scores are always similarity (higher = more relevant),
// regardless of which backend produced them.
type Match struct {
	ID      string
	Text    string
	Score   float64
	Payload map[string]string
}

// Filter restricts search candidates to records whose payload field equals
// the given value. Exactly one field; used for per-user memory scoping.
type Filter struct {
	Field string
	Value string
}
