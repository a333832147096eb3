// Shared HTTP plumbing for the concrete service clients
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/spondex/internal/shared"
	"golang.org/x/time/rate"
)

// apiClient performs authenticated JSON requests against one service's REST
// API. Every request passes through the rate limiter and the retry policy, so
// concrete clients never deal with pacing or transient failures themselves.
type apiClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
	authorize  func(*http.Request)
}

// do performs a request with retries. body may be nil, url.Values (sent as a
// form) or any JSON-marshalable value. A non-nil result receives the decoded
// JSON response body.
func (a *apiClient) do(ctx context.Context, method, endpoint string, body, result any) error {
	return Retry(ctx, a.retry, func() error {
		return a.once(ctx, method, endpoint, body, result)
	})
}

func (a *apiClient) once(ctx context.Context, method, endpoint string, body, result any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.authorize != nil {
		a.authorize(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s API rejected credentials (status %d): %w", a.service, resp.StatusCode, shared.ErrNotAuthenticated)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if message := errorMessage(resp.Body); message != "" {
			return fmt.Errorf("%s API error (status %d): %s: %w", a.service, resp.StatusCode, message, shared.ErrAPIRequest)
		}
		return fmt.Errorf("%s API error: status %d: %w", a.service, resp.StatusCode, shared.ErrAPIRequest)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts a human-readable message from an error response body.
// Both services use an {"error": {"message": ...}} envelope.
func errorMessage(body io.Reader) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}

	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}
