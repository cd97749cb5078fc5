package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/domain"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func newTestLLM(baseURL string, maxRetries int) *LLM {
	llm := NewLLM(&Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "test-model",
		MaxRetries: maxRetries,
		Logger:     zap.NewNop(),
	})
	// Keep the test fast
	llm.retry.InitialInterval = time.Millisecond
	llm.retry.MaxInterval = 5 * time.Millisecond
	return llm
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("the sky is blue"))
	}))
	defer server.Close()

	got, err := newTestLLM(server.URL, 2).Generate(context.Background(), "what color is the sky?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "the sky is blue" {
		t.Errorf("answer = %q", got)
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "temporarily unavailable", "type": "server_error"},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("recovered"))
	}))
	defer server.Close()

	got, err := newTestLLM(server.URL, 4).Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate failed after transient errors: %v", err)
	}
	if got != "recovered" {
		t.Errorf("answer = %q", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d calls, expected 3 (two failures, one success)", n)
	}
}

func TestGenerate_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	_, err := newTestLLM(server.URL, 2).Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("error %v should wrap ErrGenerationFailed", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d calls, expected 3 (initial + 2 retries)", n)
	}
}

func TestGenerate_NonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	_, err := newTestLLM(server.URL, 4).Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, expected 1 (no retries on auth errors)", n)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit text", errors.New("429 rate limit exceeded"), true},
		{"bad gateway", errors.New("unexpected status 502"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded: request timeout"), true},
		{"auth", errors.New("invalid api key"), false},
		{"validation", errors.New("messages is required"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
