package ragkit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrCollectionNotFound     = domain.ErrCollectionNotFound
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrGenerationFailed       = domain.ErrGenerationFailed
)

// codeSentinels maps wire error codes back to sentinel errors, mirroring
// the server's error handlers.
var codeSentinels = map[string]error{
	"not_found":                ErrNotFound,
	"collection_not_found":     ErrCollectionNotFound,
	"dimension_mismatch":       ErrDimensionMismatch,
	"embedding_provider_error": ErrEmbeddingProviderError,
	"generation_failed":        ErrGenerationFailed,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragkit: %s (%s, HTTP %d)", e.Message, e.Code, e.Status)
}

// Unwrap maps the wire error code to its sentinel so errors.Is works.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Code = "unknown"
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
