package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// Lazy defers client construction until the first embedding call and shares
// one client afterwards. The service can start, serve health checks, and read
// config without touching the provider; the first ingest or query pays the
// construction cost exactly once.
type Lazy struct {
	cfg *Config

	once   sync.Once
	client *Client

	dimOnce sync.Once
	dim     int
	dimErr  error
}

// NewLazy wraps cfg without constructing a client yet.
func NewLazy(cfg *Config) *Lazy {
	return &Lazy{cfg: cfg}
}

func (l *Lazy) get() *Client {
	l.once.Do(func() {
		l.client = NewClient(l.cfg)
	})
	return l.client
}

// Embed implements domain.Embedder.
func (l *Lazy) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return l.get().Embed(ctx, text)
}

// BatchEmbed implements domain.BatchEmbedder.
func (l *Lazy) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return l.get().BatchEmbed(ctx, texts)
}

// HealthCheck implements domain.HealthChecker.
func (l *Lazy) HealthCheck(ctx context.Context) error {
	return l.get().HealthCheck(ctx)
}

// Dimension reports the provider's vector dimension. When config pins it, the
// pinned value wins; otherwise the first call probes the API once and caches
// the answer. A failed probe is cached too, so callers see a stable error.
func (l *Lazy) Dimension(ctx context.Context) (int, error) {
	if l.cfg.Dimensions > 0 {
		return l.cfg.Dimensions, nil
	}

	l.dimOnce.Do(func() {
		res, err := l.get().Embed(ctx, "dimension probe")
		if err != nil {
			l.dimErr = fmt.Errorf("probing embedding dimension: %w", err)
			return
		}
		l.dim = len(res.Embedding)
	})

	return l.dim, l.dimErr
}
