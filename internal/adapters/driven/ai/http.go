// Package ai adapts external embedding and LLM providers to the driven ports.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const (
	defaultTimeout = 60 * time.Second

	// maxErrorBody bounds how much of an error response is kept in messages
	maxErrorBody = 512
)

// apiCall describes one JSON request to a provider.
type apiCall struct {
	provider domain.AIProvider
	// kind is the sentinel non-throttling failures unwrap to
	kind    error
	url     string
	headers map[string]string
	body    any
}

// doJSON posts call.body as JSON and decodes a 2xx response into out.
// Failures are returned as *domain.ProviderError.
func doJSON(ctx context.Context, client *http.Client, call apiCall, out any) error {
	payload, err := json.Marshal(call.body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range call.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.ProviderError{Provider: call.provider, Message: err.Error(), Err: call.kind}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Provider: call.provider, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: call.kind}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &domain.ProviderError{
			Provider:   call.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Err:        call.kind,
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			perr.Err = domain.ErrRateLimited
			perr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return perr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &domain.ProviderError{Provider: call.provider, StatusCode: resp.StatusCode, Message: "parse response: " + err.Error(), Err: call.kind}
	}
	return nil
}

// errorMessage pulls a message out of the common provider error shapes.
func errorMessage(body []byte) string {
	var shaped struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &shaped) == nil && len(shaped.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(shaped.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func trimSlash(url string) string {
	return strings.TrimRight(url, "/")
}
