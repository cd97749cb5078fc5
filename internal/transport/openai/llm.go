// Package openai is the chat completion client for OpenAI-compatible APIs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// LLM generates chat completions with retry on transient transport failures.
// This is the only retry loop in the service: embedding and index calls fail
// fast, generation is the one hop worth waiting out.
type LLM struct {
	client      *openai.Client
	model       string
	temperature float32
	retry       RetryConfig
	logger      *zap.Logger
}

// Config holds the LLM provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxRetries  int
	Logger      *zap.Logger
}

// RetryConfig configures the retry behavior for chat calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      4,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// NewLLM creates a chat completion client.
func NewLLM(cfg *Config) *LLM {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &LLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retry:       retry,
		logger:      cfg.Logger,
	}
}

// Generate sends prompt as a single user message and returns the completion.
func (l *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var lastErr error
	delay := l.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= l.retry.MaxRetries; attempt++ {
		resp, err := l.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationFailed)
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("chat completion: %w: %w", err, domain.ErrGenerationFailed)
		}
		if attempt == l.retry.MaxRetries {
			break
		}

		l.logger.Warn("retrying chat completion",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, l.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("chat completion after %d retries (elapsed %v): %w: %w",
		l.retry.MaxRetries, time.Since(start), lastErr, domain.ErrGenerationFailed)
}

// retryablePatterns groups transient error substrings by category. The SDK
// does not expose sentinel errors for these, so string matching it is.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable", "overloaded"},
	{"connection reset", "connection refused", "timeout", "temporary"},
}

// retryableError reports whether err is transient and worth another attempt.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return true
		}
	}

	lower := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}
