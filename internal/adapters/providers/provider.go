// Package providers contains the outbound HTTP adapters for the external
// generation providers: text (LLM), image (Midjourney-style webhook flow),
// and voice synthesis. Each adapter implements core.Provider.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Doer abstracts *http.Client for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxResponseBody caps how much of a provider response is read. Provider
// answers are small JSON documents; anything larger is a misbehaving peer.
const maxResponseBody = 1 << 20

// client wraps the shared outbound plumbing: JSON encode, send, status
// check, bounded JSON decode.
type client struct {
	http Doer
}

func newClient(doer Doer, timeout time.Duration) client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return client{http: doer}
}

// postJSON sends the request body as JSON and decodes the response into out.
// Headers are applied verbatim; a non-2xx status is an error carrying the
// response body for the job's error message.
func (c client) postJSON(
	ctx context.Context,
	url string,
	headers map[string]string,
	body, out any,
) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
