// Package answer assembles retrieved context and asks the model for a
// grounded response.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/andar-cloud/ragkit/internal/memory"
	"github.com/andar-cloud/ragkit/internal/retriever"
)

// DocSearcher retrieves document chunks for a query.
type DocSearcher interface {
	Search(ctx context.Context, query string, k int) ([]retriever.Result, error)
}

// MemorySearcher recalls a user's memories for a query.
type MemorySearcher interface {
	Search(ctx context.Context, userID, query string, k int) ([]memory.Entry, error)
}

// Assembler merges document retrieval and memory recall into one context
// block the model can cite from.
type Assembler struct {
	docs     DocSearcher
	memories MemorySearcher
	kDocs    int
	kMem     int
}

// NewAssembler creates an Assembler. kDocs and kMem bound how many chunks and
// memories each question pulls in.
func NewAssembler(docs DocSearcher, memories MemorySearcher, kDocs, kMem int) *Assembler {
	return &Assembler{docs: docs, memories: memories, kDocs: kDocs, kMem: kMem}
}

// BuildContext retrieves for query and renders the context block. Document
// chunks come first as numbered, source-attributed sections; the user's
// memories follow as a bulleted list. userID empty skips memory recall.
// Nothing retrieved yields an empty string.
func (a *Assembler) BuildContext(ctx context.Context, query, userID string) (string, error) {
	docs, err := a.docs.Search(ctx, query, a.kDocs)
	if err != nil {
		return "", err
	}

	var mems []memory.Entry
	if userID != "" {
		mems, err = a.memories.Search(ctx, userID, query, a.kMem)
		if err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n[#%d] Source: %s\n%s\n", i+1, d.Source, d.Text)
	}
	if len(mems) > 0 {
		sb.WriteString("\n[M] User memories:\n")
		for _, m := range mems {
			fmt.Fprintf(&sb, "- %s\n", m.Text)
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
