package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/domain"
	"github.com/andar-cloud/ragkit/internal/metrics"
)

// Runner executes an external command and returns its stdout. Text extraction
// from PDFs shells out to pdftotext through this seam so tests can fake it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}
	return out, nil
}

// Loader walks a corpus directory and yields raw documents. Plain text and
// markdown are read directly; PDFs go through pdftotext. One corrupt file
// never aborts the whole ingestion: extraction failures are logged with path
// and cause, counted, and skipped.
type Loader struct {
	pdfBin string
	runner Runner
	logger *zap.Logger
}

// NewLoader creates a corpus loader. pdfBin is the pdftotext binary name or
// path; empty means "pdftotext" from PATH.
func NewLoader(pdfBin string, logger *zap.Logger) *Loader {
	if pdfBin == "" {
		pdfBin = "pdftotext"
	}
	return &Loader{pdfBin: pdfBin, runner: execRunner{}, logger: logger}
}

// WithRunner replaces the command runner. Used by tests.
func (l *Loader) WithRunner(r Runner) *Loader {
	l.runner = r
	return l
}

// Load walks root recursively and returns every document with extractable,
// non-blank text. Unsupported extensions are silently ignored; an empty
// corpus is a valid empty result.
func (l *Loader) Load(ctx context.Context, root string) ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		var (
			text    string
			extract error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			text, extract = readText(path)
		case ".pdf":
			text, extract = l.extractPDF(ctx, path)
		default:
			return nil
		}

		if extract != nil {
			l.logger.Warn("skipping file, extraction failed",
				zap.String("path", path),
				zap.Error(extract),
			)
			metrics.SkippedFilesTotal.Inc()
			return nil
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}

		docs = append(docs, domain.Document{Path: path, Text: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus %s: %w", root, err)
	}

	return docs, nil
}

// readText reads a file as UTF-8, replacing invalid byte sequences instead of
// failing on them.
func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// extractPDF extracts text via pdftotext. Page breaks (form feeds) become
// newlines so chunk windows can span pages.
func (l *Loader) extractPDF(ctx context.Context, path string) (string, error) {
	out, err := l.runner.Run(ctx, l.pdfBin, "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return strings.ToValidUTF8(text, "�"), nil
}
