package ragkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
}

// WithHTTPClient supplies a custom *http.Client, e.g. with a proxy or
// custom transport. Overrides WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithTimeout sets the per-request timeout. Ingest and Ask can take a
// while on large corpora, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// Client is the ragkit API entry point.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	cfg := clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(&cfg)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
	}, nil
}

type askRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type memoryRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Ingest rebuilds the document index from the server's corpus directory
// and returns the number of chunks indexed.
func (c *Client) Ingest(ctx context.Context) (int, error) {
	var out struct {
		Indexed int `json:"indexed"`
	}
	if err := c.post(ctx, "/api/ingest", nil, &out); err != nil {
		return 0, err
	}
	return out.Indexed, nil
}

// Ask answers a question grounded in the indexed corpus. userID may be
// empty for an anonymous question; when set, the user's stored memories
// are folded into the context and the exchange is remembered.
func (c *Client) Ask(ctx context.Context, query, userID string) (string, error) {
	var out askResponse
	if err := c.post(ctx, "/api/ask", askRequest{Query: query, UserID: userID}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// AddMemory stores a fact about a user and returns the memory id.
func (c *Client) AddMemory(ctx context.Context, userID, text string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/memory", memoryRequest{UserID: userID, Text: text}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Health reports whether the server and its embedding provider are reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("healthz: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
